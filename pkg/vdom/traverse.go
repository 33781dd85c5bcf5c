package vdom

import "iter"

// Traversal visits a sequence of items in a fixed, render-to-render stable
// order. Traverse stops at the first error returned by visit and returns it
// unchanged; no item after the failing one is visited.
type Traversal[T any] interface {
	Traverse(visit func(T) error) error
}

// Nodes is a traversal over child nodes. A single Node, a Slice of nodes and
// a Group of differently-typed traversals are all Nodes.
type Nodes = Traversal[Node]

// TraverseFunc adapts a function to a Traversal. It is the hook for lazily
// produced children that may fail while being enumerated.
type TraverseFunc[T any] func(visit func(T) error) error

// Traverse implements Traversal.
func (f TraverseFunc[T]) Traverse(visit func(T) error) error {
	if f == nil {
		return nil
	}
	return f(visit)
}

// Slice is a traversal over a slice, in index order.
type Slice[T any] []T

// Traverse implements Traversal.
func (s Slice[T]) Traverse(visit func(T) error) error {
	for _, item := range s {
		if err := visit(item); err != nil {
			return err
		}
	}
	return nil
}

// Empty returns a traversal that visits nothing.
func Empty[T any]() Traversal[T] {
	return Slice[T](nil)
}

// group concatenates traversals.
type group[T any] []Traversal[T]

func (g group[T]) Traverse(visit func(T) error) error {
	for _, part := range g {
		if part == nil {
			continue
		}
		if err := part.Traverse(visit); err != nil {
			return err
		}
	}
	return nil
}

// Group concatenates traversals in argument order. Nil parts are skipped.
// This is how a fixed, heterogeneous set of children (a heading, a list and
// a conditional footer, say) is walked as one ordered sequence.
func Group[T any](parts ...Traversal[T]) Traversal[T] {
	switch len(parts) {
	case 0:
		return Empty[T]()
	case 1:
		if parts[0] == nil {
			return Empty[T]()
		}
		return parts[0]
	}
	return group[T](parts)
}

// Maybe returns n when cond is true and an empty traversal otherwise.
func Maybe(cond bool, n Node) Nodes {
	if !cond || IsNil(n) {
		return Empty[Node]()
	}
	return n
}

// Optional returns n, or an empty traversal when n is nil.
func Optional(n Node) Nodes {
	return Maybe(true, n)
}

// Map lazily maps items to nodes, in slice order. The mapping runs each
// time the result is traversed; nil results are skipped.
func Map[S any](items []S, render func(int, S) Node) Nodes {
	return TraverseFunc[Node](func(visit func(Node) error) error {
		for i, item := range items {
			n := render(i, item)
			if IsNil(n) {
				continue
			}
			if err := visit(n); err != nil {
				return err
			}
		}
		return nil
	})
}

// FromSeq adapts an iterator to a Traversal.
func FromSeq[T any](seq iter.Seq[T]) Traversal[T] {
	return TraverseFunc[T](func(visit func(T) error) error {
		var err error
		for item := range seq {
			if err = visit(item); err != nil {
				break
			}
		}
		return err
	})
}

// Fold threads acc through step for every item of t, in order. The first
// error aborts the fold; the accumulator reached so far is returned with it.
func Fold[T, A any](t Traversal[T], acc A, step func(A, T) (A, error)) (A, error) {
	if t == nil {
		return acc, nil
	}
	err := t.Traverse(func(item T) error {
		next, err := step(acc, item)
		if err != nil {
			return err
		}
		acc = next
		return nil
	})
	return acc, err
}

// Collect flattens t into a slice.
func Collect[T any](t Traversal[T]) ([]T, error) {
	return Fold(t, []T(nil), func(out []T, item T) ([]T, error) {
		return append(out, item), nil
	})
}

// Count returns the number of items in t.
func Count[T any](t Traversal[T]) (int, error) {
	return Fold(t, 0, func(n int, _ T) (int, error) { return n + 1, nil })
}
