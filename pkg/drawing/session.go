// Package drawing turns pointer gestures into manual polygon annotations.
package drawing

import (
	"sync"

	"github.com/menta2k/image-annotator/pkg/palette"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/viewport"
)

// ManualLabel is the label given to every user-drawn polygon
const ManualLabel = "manual"

// State of a drawing session
type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// Session is the pointer state machine for one store. Pointer positions are
// given in stage space and stored in content space.
type Session struct {
	store  *store.Store
	colors *palette.Cycler

	mu        sync.Mutex
	state     State
	transform viewport.Transform
}

// New creates an idle session drawing into st
func New(st *store.Store, colors *palette.Cycler) *Session {
	if colors == nil {
		colors = palette.NewCycler(0)
	}
	return &Session{
		store:     st,
		colors:    colors,
		transform: viewport.Identity(),
	}
}

// SetTransform sets the content to stage mapping used for pointer input
func (s *Session) SetTransform(t viewport.Transform) {
	s.mu.Lock()
	s.transform = t
	s.mu.Unlock()
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) toContent(p types.Point) types.Point {
	return s.transform.Invert().Apply(p)
}

// resync drops a gesture the store no longer shows as in progress, e.g.
// after Clear.
func (s *Session) resync(snap store.State) {
	if s.state == Drawing && !snap.IsDrawing {
		s.state = Idle
	}
}

// PointerDown starts a polygon when edit mode is on. It reports whether a
// polygon was started.
func (s *Session) PointerDown(stage types.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	s.resync(snap)
	if s.state != Idle || !snap.Options.EditMode {
		return false
	}

	start := types.ManualAnnotation{
		Points:   []types.Point{s.toContent(stage)},
		Label:    ManualLabel,
		Selected: true,
		Color:    s.colors.Next(),
	}
	s.store.UpdateDrawing(true, func(manual []types.ManualAnnotation) []types.ManualAnnotation {
		return append(manual, start)
	})
	s.state = Drawing
	return true
}

// PointerMove extends the polygon being drawn by one point
func (s *Session) PointerMove(stage types.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resync(s.store.Snapshot())
	if s.state != Drawing {
		return false
	}

	p := s.toContent(stage)
	s.store.UpdateManual(func(manual []types.ManualAnnotation) []types.ManualAnnotation {
		if len(manual) == 0 {
			return manual
		}
		last := manual[len(manual)-1].Clone()
		last.Points = append(last.Points, p)
		manual[len(manual)-1] = last
		return manual
	})
	return true
}

// PointerUp finishes the polygon. Polygons with fewer than three points are
// discarded. It reports whether a polygon was kept.
func (s *Session) PointerUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resync(s.store.Snapshot())
	if s.state != Drawing {
		return false
	}

	committed := false
	s.store.UpdateDrawing(false, func(manual []types.ManualAnnotation) []types.ManualAnnotation {
		if len(manual) == 0 {
			return manual
		}
		if !manual[len(manual)-1].Valid() {
			return manual[:len(manual)-1]
		}
		committed = true
		return manual
	})
	s.state = Idle
	return committed
}
