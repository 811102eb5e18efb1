package viewport

import (
	"sync"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Observer recomputes the contain layout whenever the container box or the
// content size changes, and pushes the result to subscribers.
type Observer struct {
	scaler *Scaler

	mu        sync.Mutex
	content   types.Size
	container Box
	nextID    int
	listeners map[int]func(Layout)
}

// NewObserver creates an observer for content using scaler
func NewObserver(scaler *Scaler, content types.Size) *Observer {
	if scaler == nil {
		scaler = New()
	}
	return &Observer{
		scaler:    scaler,
		content:   content,
		listeners: make(map[int]func(Layout)),
	}
}

// Subscribe registers fn for layout updates. The returned function removes
// the subscription and may be called more than once.
func (o *Observer) Subscribe(fn func(Layout)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Notify records a new container box and fans out the recomputed layout
func (o *Observer) Notify(container Box) Layout {
	o.mu.Lock()
	o.container = container
	o.mu.Unlock()
	return o.publish()
}

// SetContent records a new content size and fans out the recomputed layout
func (o *Observer) SetContent(content types.Size) Layout {
	o.mu.Lock()
	o.content = content
	o.mu.Unlock()
	return o.publish()
}

// Current returns the layout for the last observed box without notifying
func (o *Observer) Current() Layout {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scaler.Resize(o.content, o.container)
}

func (o *Observer) publish() Layout {
	o.mu.Lock()
	layout := o.scaler.Resize(o.content, o.container)
	fns := make([]func(Layout), 0, len(o.listeners))
	for id := 0; id < o.nextID; id++ {
		if fn, ok := o.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(layout)
	}
	return layout
}
