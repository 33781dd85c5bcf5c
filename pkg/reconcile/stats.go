package reconcile

import (
	"fmt"
	"log/slog"
)

// Stats counts the changes a reconciliation pass made to the host.
type Stats struct {
	Created           int // Subtree roots created and inserted
	Reused            int // Nodes matched against the previous pass
	Moved             int // Reused nodes relocated among their siblings
	Removed           int // Subtree roots destroyed
	AttrsSet          int
	AttrsRemoved      int
	ListenersAttached int
	ListenersDetached int
}

// Mutations returns the number of changes that touched the host. A pass
// over an unchanged tree reports zero.
func (s Stats) Mutations() int {
	return s.Created + s.Moved + s.Removed +
		s.AttrsSet + s.AttrsRemoved +
		s.ListenersAttached + s.ListenersDetached
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Created:           s.Created + o.Created,
		Reused:            s.Reused + o.Reused,
		Moved:             s.Moved + o.Moved,
		Removed:           s.Removed + o.Removed,
		AttrsSet:          s.AttrsSet + o.AttrsSet,
		AttrsRemoved:      s.AttrsRemoved + o.AttrsRemoved,
		ListenersAttached: s.ListenersAttached + o.ListenersAttached,
		ListenersDetached: s.ListenersDetached + o.ListenersDetached,
	}
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("created=%d reused=%d moved=%d removed=%d attrs=+%d/-%d listeners=+%d/-%d",
		s.Created, s.Reused, s.Moved, s.Removed,
		s.AttrsSet, s.AttrsRemoved,
		s.ListenersAttached, s.ListenersDetached)
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("created", s.Created),
		slog.Int("reused", s.Reused),
		slog.Int("moved", s.Moved),
		slog.Int("removed", s.Removed),
		slog.Int("attrs_set", s.AttrsSet),
		slog.Int("attrs_removed", s.AttrsRemoved),
		slog.Int("listeners_attached", s.ListenersAttached),
		slog.Int("listeners_detached", s.ListenersDetached),
	)
}
