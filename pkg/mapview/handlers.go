package mapview

import (
	"sort"
	"sync"
)

// Handler names a native map interaction.
type Handler string

const (
	HandlerDragging        Handler = "dragging"
	HandlerTouchZoom       Handler = "touchZoom"
	HandlerScrollWheelZoom Handler = "scrollWheelZoom"
	HandlerDoubleClickZoom Handler = "doubleClickZoom"
	HandlerBoxZoom         Handler = "boxZoom"
	HandlerKeyboard        Handler = "keyboard"
	// HandlerTouchScroll is the touch-action affordance on the map element.
	HandlerTouchScroll Handler = "touchScroll"
)

// AllHandlers lists every interaction a drag has to silence.
var AllHandlers = []Handler{
	HandlerDragging,
	HandlerTouchZoom,
	HandlerScrollWheelZoom,
	HandlerDoubleClickZoom,
	HandlerBoxZoom,
	HandlerKeyboard,
	HandlerTouchScroll,
}

// Handlers is a registry of interaction toggles that surfaces use to
// implement SuspendInteractions. apply performs the actual enable/disable
// on the widget.
type Handlers struct {
	mu        sync.Mutex
	enabled   map[Handler]bool
	apply     func(h Handler, on bool)
	suspended int
}

// NewHandlers registers every handler in AllHandlers, enabling the listed ones.
func NewHandlers(apply func(Handler, bool), enabled ...Handler) *Handlers {
	hs := &Handlers{enabled: make(map[Handler]bool), apply: apply}
	for _, h := range AllHandlers {
		hs.enabled[h] = false
	}
	for _, h := range enabled {
		hs.enabled[h] = true
	}
	return hs
}

// Set toggles one handler outside of a suspension.
func (hs *Handlers) Set(h Handler, on bool) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.enabled[h] = on
	if hs.apply != nil {
		hs.apply(h, on)
	}
}

// Enabled reports whether h is currently on.
func (hs *Handlers) Enabled(h Handler) bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.enabled[h]
}

// Suspended reports whether a suspension is outstanding.
func (hs *Handlers) Suspended() bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.suspended > 0
}

// Suspend disables every enabled handler and returns a func restoring
// exactly those. The restore func is safe to call more than once.
func (hs *Handlers) Suspend() (restore func()) {
	hs.mu.Lock()
	var off []Handler
	for h, on := range hs.enabled {
		if on {
			off = append(off, h)
		}
	}
	sort.Slice(off, func(i, j int) bool { return off[i] < off[j] })
	for _, h := range off {
		hs.enabled[h] = false
		if hs.apply != nil {
			hs.apply(h, false)
		}
	}
	hs.suspended++
	hs.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			hs.mu.Lock()
			defer hs.mu.Unlock()
			for _, h := range off {
				hs.enabled[h] = true
				if hs.apply != nil {
					hs.apply(h, true)
				}
			}
			hs.suspended--
		})
	}
}
