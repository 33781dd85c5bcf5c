package keypath

import (
	"errors"
	"iter"
	"strings"
)

// Capacity is the maximum number of keys a Path can hold.
const Capacity = 32

// ErrCapacityExceeded is returned when pushing onto a full Path.
var ErrCapacityExceeded = errors.New("keypath: capacity exceeded")

// Key identifies a node among its siblings.
type Key string

// Path is an immutable, fixed-capacity sequence of keys from the root of a
// tree down to a node. The zero value is the empty path.
//
// Path is a comparable value type: two paths are == exactly when they hold
// the same keys in the same order. Slots past Len are always zero.
type Path struct {
	size  uint8
	stack [Capacity]Key
}

// Of builds a Path from the given keys, root first.
func Of(keys ...Key) (Path, error) {
	var p Path
	for _, k := range keys {
		next, err := p.Push(k)
		if err != nil {
			return Path{}, err
		}
		p = next
	}
	return p, nil
}

// Push returns a copy of p with k appended. p itself is not modified.
func (p Path) Push(k Key) (Path, error) {
	if int(p.size) >= Capacity {
		return p, ErrCapacityExceeded
	}
	p.stack[p.size] = k
	p.size++
	return p, nil
}

// MustPush is like Push but panics on overflow.
func (p Path) MustPush(k Key) Path {
	next, err := p.Push(k)
	if err != nil {
		panic(err)
	}
	return next
}

// Len returns the number of keys in the path.
func (p Path) Len() int { return int(p.size) }

// IsEmpty reports whether the path holds no keys.
func (p Path) IsEmpty() bool { return p.size == 0 }

// At returns the key at depth i (0 is the outermost key).
// It panics if i is out of range.
func (p Path) At(i int) Key {
	if i < 0 || i >= int(p.size) {
		panic("keypath: index out of range")
	}
	return p.stack[i]
}

// Last returns the innermost key, if any.
func (p Path) Last() (Key, bool) {
	if p.size == 0 {
		return "", false
	}
	return p.stack[p.size-1], true
}

// Equal reports whether p and other hold the same keys in order.
func (p Path) Equal(other Path) bool {
	return p == other
}

// All iterates the keys root first.
func (p Path) All() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for i := 0; i < int(p.size); i++ {
			if !yield(p.stack[i]) {
				return
			}
		}
	}
}

// Slice returns the keys as a new slice.
func (p Path) Slice() []Key {
	out := make([]Key, p.size)
	copy(out, p.stack[:p.size])
	return out
}

// String returns the keys joined by "/", e.g. "/list/3".
func (p Path) String() string {
	var b strings.Builder
	for i := 0; i < int(p.size); i++ {
		b.WriteByte('/')
		b.WriteString(string(p.stack[i]))
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
