// Package store holds the annotation state of one editing session.
//
// Every mutation replaces the current State with a new value under a mutex
// and then notifies subscribers synchronously, outside the lock, with a copy
// of the new state. Subscribers may call back into the store.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/menta2k/image-annotator/pkg/probe"
	"github.com/menta2k/image-annotator/pkg/types"
)

var (
	// ErrIndexOutOfRange is returned when an index does not address an
	// existing annotation. The state is left untouched.
	ErrIndexOutOfRange = errors.New("annotation index out of range")
	// ErrNoProber is returned by measurements on a store built without one
	ErrNoProber = errors.New("no image prober configured")
	// ErrStaleImage marks a measurement whose image was replaced before the
	// probe finished.
	ErrStaleImage = errors.New("image replaced before measurement finished")
)

// State is an immutable snapshot of a session
type State struct {
	Version             uint64                   `json:"version"`
	ImageURL            string                   `json:"image_url"`
	ImageSize           types.Size               `json:"image_size"`
	Annotations         []types.Annotation       `json:"annotations"`
	ManualAnnotations   []types.ManualAnnotation `json:"manual_annotations"`
	Options             types.Options            `json:"options"`
	IsDrawing           bool                     `json:"is_drawing"`
	IsLoadingServerData bool                     `json:"is_loading_server_data"`
}

func initialState() State {
	return State{
		Annotations:       []types.Annotation{},
		ManualAnnotations: []types.ManualAnnotation{},
		Options:           types.DefaultOptions(),
	}
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	out := s
	out.Annotations = append(make([]types.Annotation, 0, len(s.Annotations)), s.Annotations...)
	out.ManualAnnotations = make([]types.ManualAnnotation, len(s.ManualAnnotations))
	for i, m := range s.ManualAnnotations {
		out.ManualAnnotations[i] = m.Clone()
	}
	return out
}

// Option configures a Store
type Option func(*Store)

// WithProbeTimeout bounds each image measurement
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.probeTimeout = d
	}
}

// Store is the session state container
type Store struct {
	prober       probe.Prober
	probeTimeout time.Duration

	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]func(State)
}

// New creates a store that measures images with prober
func New(prober probe.Prober, opts ...Option) *Store {
	s := &Store{
		prober:       prober,
		probeTimeout: 30 * time.Second,
		state:        initialState(),
		subs:         make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for state changes. The returned function removes
// the subscription and is safe to call repeatedly.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// update applies fn to a copy of the state. When fn reports a change the
// copy becomes the current state and subscribers are notified.
func (s *Store) update(fn func(*State) error) error {
	s.mu.Lock()
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.Version = s.state.Version + 1
	s.state = next

	snap := next.Clone()
	fns := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if sub, ok := s.subs[id]; ok {
			fns = append(fns, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range fns {
		sub(snap)
	}
	return nil
}

func (s *Store) mutate(fn func(*State)) {
	_ = s.update(func(st *State) error {
		fn(st)
		return nil
	})
}

// SetAnnotations replaces the server annotations
func (s *Store) SetAnnotations(anns []types.Annotation) {
	s.mutate(func(st *State) {
		st.Annotations = append(make([]types.Annotation, 0, len(anns)), anns...)
	})
}

// SetManualAnnotations replaces the user-drawn annotations
func (s *Store) SetManualAnnotations(manual []types.ManualAnnotation) {
	s.mutate(func(st *State) {
		st.ManualAnnotations = cloneManual(manual)
	})
}

// UpdateManual replaces the manual list with fn applied to a copy of it
func (s *Store) UpdateManual(fn func([]types.ManualAnnotation) []types.ManualAnnotation) {
	s.mutate(func(st *State) {
		st.ManualAnnotations = cloneManual(fn(st.ManualAnnotations))
	})
}

// UpdateDrawing replaces the manual list with fn applied to a copy of it and
// sets the drawing flag, as a single change.
func (s *Store) UpdateDrawing(drawing bool, fn func([]types.ManualAnnotation) []types.ManualAnnotation) {
	s.mutate(func(st *State) {
		st.ManualAnnotations = cloneManual(fn(st.ManualAnnotations))
		st.IsDrawing = drawing
	})
}

// SetSelected sets the selection flag of one server annotation
func (s *Store) SetSelected(index int, selected bool) error {
	return s.update(func(st *State) error {
		if index < 0 || index >= len(st.Annotations) {
			return fmt.Errorf("annotation %d: %w", index, ErrIndexOutOfRange)
		}
		st.Annotations[index].Selected = selected
		return nil
	})
}

// SetManualSelected sets the selection flag of one manual annotation
func (s *Store) SetManualSelected(index int, selected bool) error {
	return s.update(func(st *State) error {
		if index < 0 || index >= len(st.ManualAnnotations) {
			return fmt.Errorf("manual annotation %d: %w", index, ErrIndexOutOfRange)
		}
		st.ManualAnnotations[index].Selected = selected
		return nil
	})
}

// EditLabel renames one server annotation
func (s *Store) EditLabel(index int, label string) error {
	return s.update(func(st *State) error {
		if index < 0 || index >= len(st.Annotations) {
			return fmt.Errorf("annotation %d: %w", index, ErrIndexOutOfRange)
		}
		st.Annotations[index].Label = label
		return nil
	})
}

// ClearAnnotations empties both annotation lists
func (s *Store) ClearAnnotations() {
	s.mutate(func(st *State) {
		st.Annotations = []types.Annotation{}
		st.ManualAnnotations = []types.ManualAnnotation{}
	})
}

// Clear resets the session to its initial state. An upload that is still
// in flight keeps its loading flag.
func (s *Store) Clear() {
	s.mutate(func(st *State) {
		loading := st.IsLoadingServerData
		*st = initialState()
		st.IsLoadingServerData = loading
	})
}

// ToggleShowImageUnder flips the image background flag
func (s *Store) ToggleShowImageUnder() {
	s.mutate(func(st *State) {
		st.Options.ShowImageUnder = !st.Options.ShowImageUnder
	})
}

// ToggleEditMode flips manual drawing mode
func (s *Store) ToggleEditMode() {
	s.mutate(func(st *State) {
		st.Options.EditMode = !st.Options.EditMode
	})
}

// ToggleIsDrawing flips the drawing-in-progress flag
func (s *Store) ToggleIsDrawing() {
	s.mutate(func(st *State) {
		st.IsDrawing = !st.IsDrawing
	})
}

// SetDrawing sets the drawing-in-progress flag
func (s *Store) SetDrawing(drawing bool) {
	s.mutate(func(st *State) {
		st.IsDrawing = drawing
	})
}

// SetLoading sets the upload-in-flight flag
func (s *Store) SetLoading(loading bool) {
	s.mutate(func(st *State) {
		st.IsLoadingServerData = loading
	})
}

// BeginLoading marks an upload as in flight. It returns false, without
// changing anything, when another upload is already pending.
func (s *Store) BeginLoading() bool {
	err := s.update(func(st *State) error {
		if st.IsLoadingServerData {
			return errLoadingPending
		}
		st.IsLoadingServerData = true
		return nil
	})
	return err == nil
}

var errLoadingPending = errors.New("upload pending")

// CompleteLoading stores the annotations of a finished upload and clears the
// loading flag. The annotations are dropped when the session no longer
// shows imageURL; the flag is cleared either way.
func (s *Store) CompleteLoading(imageURL string, anns []types.Annotation) bool {
	applied := false
	s.mutate(func(st *State) {
		st.IsLoadingServerData = false
		if st.ImageURL != imageURL {
			return
		}
		st.Annotations = append(make([]types.Annotation, 0, len(anns)), anns...)
		applied = true
	})
	return applied
}

func cloneManual(manual []types.ManualAnnotation) []types.ManualAnnotation {
	out := make([]types.ManualAnnotation, len(manual))
	for i, m := range manual {
		out[i] = m.Clone()
	}
	return out
}

// Measurement is the pending natural size of an image set on the store
type Measurement struct {
	done chan struct{}
	size types.Size
	err  error
}

func newMeasurement() *Measurement {
	return &Measurement{done: make(chan struct{})}
}

func (m *Measurement) resolve(size types.Size, err error) {
	m.size, m.err = size, err
	close(m.done)
}

// Done is closed once the measurement finished
func (m *Measurement) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the measurement finished or ctx is done
func (m *Measurement) Wait(ctx context.Context) (types.Size, error) {
	select {
	case <-m.done:
		return m.size, m.err
	case <-ctx.Done():
		return types.Size{}, ctx.Err()
	}
}

// SetImage shows a new image and measures it in the background. ImageSize
// keeps its previous value until the probe succeeds, and a probe result is
// only applied if the store still shows the same image.
func (s *Store) SetImage(ctx context.Context, imageURL string) *Measurement {
	m := newMeasurement()

	s.mutate(func(st *State) {
		st.ImageURL = imageURL
		if imageURL == "" {
			st.ImageSize = types.Size{}
		}
	})

	if imageURL == "" {
		m.resolve(types.Size{}, fmt.Errorf("set image: empty image reference"))
		return m
	}
	if s.prober == nil {
		m.resolve(types.Size{}, ErrNoProber)
		return m
	}

	go s.measure(ctx, imageURL, m)
	return m
}

func (s *Store) measure(ctx context.Context, imageURL string, m *Measurement) {
	if s.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()
	}

	size, err := s.prober.Probe(ctx, imageURL)
	if err != nil {
		log.Printf("store: failed to measure image: %v", err)
		m.resolve(types.Size{}, fmt.Errorf("measure image: %w", err))
		return
	}

	err = s.update(func(st *State) error {
		if st.ImageURL != imageURL {
			return ErrStaleImage
		}
		st.ImageSize = size
		return nil
	})
	m.resolve(size, err)
}
