// Package drag implements the press-drag-release gesture that relocates the
// anchor from a fixed on-screen handle.
//
// While a drag is in progress the controller owns pointer input: it holds a
// viewport-wide pointer capture (the pointer may leave the map mid-drag)
// and a suspension of the map's own pan/zoom handlers. Both are scoped
// acquisitions released on every way out of Dragging.
package drag

import (
	"github.com/rubiojr/walkmap/pkg/geo"
)

// Phase is the gesture state.
type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// State is the gesture record. Pointer is only meaningful while Dragging.
type State struct {
	Phase   Phase
	Pointer *geo.ScreenPoint
}

// PointerHandler receives captured pointer events.
type PointerHandler interface {
	PointerMove(p geo.ScreenPoint)
	PointerUp(p geo.ScreenPoint)
}

// Surface is the slice of the map the gesture needs.
type Surface interface {
	// ScreenBounds is the map container rectangle in viewport pixels.
	ScreenBounds() geo.Rect
	// ContainerPointToLatLng converts under the current camera transform.
	ContainerPointToLatLng(p geo.ScreenPoint) geo.LatLng
	// SuspendInteractions disables native pan, zoom and touch scrolling;
	// calling the returned func restores exactly what was disabled.
	SuspendInteractions() (restore func())
	// CapturePointer routes viewport-wide move/up events to h until the
	// returned func is called.
	CapturePointer(h PointerHandler) (release func())
	ShowGhost(p geo.ScreenPoint)
	HideGhost()
}

// Controller is the Idle/Dragging state machine. It is driven from a single
// goroutine (the map session's event loop).
type Controller struct {
	surface Surface
	onDrop  func(geo.LatLng)

	state   State
	release func()
	restore func()
}

// New returns an idle controller calling onDrop for every in-bounds release.
func New(surface Surface, onDrop func(geo.LatLng)) *Controller {
	return &Controller{surface: surface, onDrop: onDrop}
}

// State returns the current gesture record.
func (c *Controller) State() State {
	s := c.state
	if s.Pointer != nil {
		p := *s.Pointer
		s.Pointer = &p
	}
	return s
}

// Capturing reports whether global pointer tracking is held.
func (c *Controller) Capturing() bool {
	return c.release != nil
}

// Press starts a drag from the handle. It is ignored unless Idle.
func (c *Controller) Press(p geo.ScreenPoint) bool {
	if c.state.Phase != Idle {
		return false
	}
	c.state = State{Phase: Dragging, Pointer: &p}
	c.restore = c.surface.SuspendInteractions()
	c.release = c.surface.CapturePointer(c)
	c.surface.ShowGhost(p)
	return true
}

// Move tracks the pointer while dragging.
func (c *Controller) Move(p geo.ScreenPoint) bool {
	if c.state.Phase != Dragging {
		return false
	}
	c.state.Pointer = &p
	c.surface.ShowGhost(p)
	return true
}

// Release ends the drag. When p is inside the map the drop callback runs
// once with the coordinate under p and dropped is true.
func (c *Controller) Release(p geo.ScreenPoint) (at geo.LatLng, dropped bool) {
	if c.state.Phase != Dragging {
		return geo.LatLng{}, false
	}
	if c.surface.ScreenBounds().Contains(p) {
		at = c.surface.ContainerPointToLatLng(p)
		dropped = true
	}
	c.end()
	if dropped && c.onDrop != nil {
		c.onDrop(at)
	}
	return at, dropped
}

// Cancel abandons a drag without dropping.
func (c *Controller) Cancel() {
	if c.state.Phase == Dragging {
		c.end()
	}
}

// end leaves Dragging and releases every scoped acquisition.
func (c *Controller) end() {
	c.state = State{Phase: Idle}
	if c.release != nil {
		c.release()
		c.release = nil
	}
	if c.restore != nil {
		c.restore()
		c.restore = nil
	}
	c.surface.HideGhost()
}

// PointerMove implements PointerHandler.
func (c *Controller) PointerMove(p geo.ScreenPoint) { c.Move(p) }

// PointerUp implements PointerHandler.
func (c *Controller) PointerUp(p geo.ScreenPoint) { c.Release(p) }
