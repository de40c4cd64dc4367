package mapview

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/rubiojr/walkmap/pkg/drag"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/selection"
)

// HeadlessSurface is an in-memory Surface. It keeps the camera and every
// drawable so the core can run without a widget (the watch command, tests)
// and logs what a real map would draw.
type HeadlessSurface struct {
	mu       sync.Mutex
	camera   Camera
	handlers *Handlers
	capture  drag.PointerHandler
	ghost    *geo.ScreenPoint
	nextID   int
	markers  map[int]*headlessMarker
	circles  map[int]*headlessCircle
	lines    map[int]*headlessLine
	z        int
}

// NewHeadlessSurface returns a width×height surface. Scroll-wheel zoom
// starts disabled.
func NewHeadlessSurface(width, height float64) *HeadlessSurface {
	h := &HeadlessSurface{
		camera:  Camera{Center: geo.LatLng{}, Zoom: 2, Size: geo.ScreenPoint{X: width, Y: height}},
		markers: make(map[int]*headlessMarker),
		circles: make(map[int]*headlessCircle),
		lines:   make(map[int]*headlessLine),
	}
	h.handlers = NewHandlers(func(name Handler, on bool) {
		log.Debug("handler %s enabled=%v", name, on)
	},
		HandlerDragging, HandlerTouchZoom, HandlerDoubleClickZoom,
		HandlerBoxZoom, HandlerKeyboard, HandlerTouchScroll,
	)
	return h
}

// Handlers exposes the interaction registry.
func (h *HeadlessSurface) Handlers() *Handlers { return h.handlers }

// Camera returns the current view.
func (h *HeadlessSurface) Camera() Camera {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.camera
}

func (h *HeadlessSurface) ScreenBounds() geo.Rect {
	return h.Camera().Bounds()
}

func (h *HeadlessSurface) ContainerPointToLatLng(p geo.ScreenPoint) geo.LatLng {
	return h.Camera().ContainerPointToLatLng(p)
}

func (h *HeadlessSurface) SuspendInteractions() func() {
	return h.handlers.Suspend()
}

func (h *HeadlessSurface) CapturePointer(ph drag.PointerHandler) func() {
	h.mu.Lock()
	h.capture = ph
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		if h.capture == ph {
			h.capture = nil
		}
		h.mu.Unlock()
	}
}

// Capturing reports whether a viewport-wide pointer capture is held.
func (h *HeadlessSurface) Capturing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.capture != nil
}

// PointerMove delivers a viewport pointer move; without a capture it is
// an ordinary hover and ignored.
func (h *HeadlessSurface) PointerMove(p geo.ScreenPoint) {
	h.mu.Lock()
	c := h.capture
	h.mu.Unlock()
	if c != nil {
		c.PointerMove(p)
	}
}

// PointerUp delivers a viewport pointer release.
func (h *HeadlessSurface) PointerUp(p geo.ScreenPoint) {
	h.mu.Lock()
	c := h.capture
	h.mu.Unlock()
	if c != nil {
		c.PointerUp(p)
	}
}

func (h *HeadlessSurface) ShowGhost(p geo.ScreenPoint) {
	h.mu.Lock()
	h.ghost = &p
	h.mu.Unlock()
}

func (h *HeadlessSurface) HideGhost() {
	h.mu.Lock()
	h.ghost = nil
	h.mu.Unlock()
}

// Ghost returns the drag ghost position, if shown.
func (h *HeadlessSurface) Ghost() (geo.ScreenPoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ghost == nil {
		return geo.ScreenPoint{}, false
	}
	return *h.ghost, true
}

func (h *HeadlessSurface) SetView(center geo.LatLng, zoom float64) {
	h.mu.Lock()
	h.camera.Center, h.camera.Zoom = center, zoom
	h.mu.Unlock()
	log.Debug("view %s z%.0f", center, zoom)
}

func (h *HeadlessSurface) SetCenter(center geo.LatLng) {
	h.mu.Lock()
	h.camera.Center = center
	h.mu.Unlock()
}

func (h *HeadlessSurface) FitBounds(b orb.Bound, padding float64) {
	h.mu.Lock()
	h.camera = h.camera.Fit(b, padding)
	c := h.camera
	h.mu.Unlock()
	log.Debug("fit to %v, view %s z%.0f", b, c.Center, c.Zoom)
}

func (h *HeadlessSurface) AddMarker(at geo.LatLng, icon Icon, draggable bool, ev MarkerEvents) Marker {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	m := &headlessMarker{s: h, id: h.nextID, at: at, icon: icon, draggable: draggable, ev: ev}
	h.markers[m.id] = m
	return m
}

func (h *HeadlessSurface) AddCircle(center geo.LatLng, radius float64, color string, fillOpacity float64) Circle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &headlessCircle{s: h, id: h.nextID, center: center, radius: radius}
	h.circles[c.id] = c
	return c
}

func (h *HeadlessSurface) AddPolyline(path []geo.LatLng, style selection.Style, ev PolylineEvents) Polyline {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.z++
	l := &headlessLine{s: h, id: h.nextID, path: path, style: style, ev: ev, z: h.z}
	h.lines[l.id] = l
	return l
}

// LineView is a drawn polyline as seen by tests and the watch command.
type LineView struct {
	Color  string
	Points int
	Style  selection.Style
	Z      int
	Events PolylineEvents
}

// Lines returns drawn polylines bottom to top.
func (h *HeadlessSurface) Lines() []LineView {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LineView, 0, len(h.lines))
	for _, l := range h.lines {
		out = append(out, LineView{Color: l.style.Color, Points: len(l.path), Style: l.style, Z: l.z, Events: l.ev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// MarkerView is a placed marker.
type MarkerView struct {
	At        geo.LatLng
	Icon      Icon
	Draggable bool
	Events    MarkerEvents
}

// Markers returns placed markers in creation order.
func (h *HeadlessSurface) Markers() []MarkerView {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.markers))
	for id := range h.markers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]MarkerView, 0, len(ids))
	for _, id := range ids {
		m := h.markers[id]
		out = append(out, MarkerView{At: m.at, Icon: m.icon, Draggable: m.draggable, Events: m.ev})
	}
	return out
}

// CircleRadii returns the radius of every circle.
func (h *HeadlessSurface) CircleRadii() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []float64
	for _, c := range h.circles {
		out = append(out, c.radius)
	}
	sort.Float64s(out)
	return out
}

type headlessMarker struct {
	s         *HeadlessSurface
	id        int
	at        geo.LatLng
	icon      Icon
	draggable bool
	ev        MarkerEvents
}

func (m *headlessMarker) SetLatLng(ll geo.LatLng) {
	m.s.mu.Lock()
	m.at = ll
	m.s.mu.Unlock()
}

func (m *headlessMarker) Remove() {
	m.s.mu.Lock()
	delete(m.s.markers, m.id)
	m.s.mu.Unlock()
}

type headlessCircle struct {
	s      *HeadlessSurface
	id     int
	center geo.LatLng
	radius float64
}

func (c *headlessCircle) SetLatLng(ll geo.LatLng) {
	c.s.mu.Lock()
	c.center = ll
	c.s.mu.Unlock()
}

func (c *headlessCircle) SetRadius(r float64) {
	c.s.mu.Lock()
	c.radius = r
	c.s.mu.Unlock()
}

func (c *headlessCircle) Remove() {
	c.s.mu.Lock()
	delete(c.s.circles, c.id)
	c.s.mu.Unlock()
}

type headlessLine struct {
	s     *HeadlessSurface
	id    int
	path  []geo.LatLng
	style selection.Style
	ev    PolylineEvents
	z     int
}

func (l *headlessLine) SetStyle(st selection.Style) {
	l.s.mu.Lock()
	l.style = st
	l.s.mu.Unlock()
}

func (l *headlessLine) BringToFront() {
	l.s.mu.Lock()
	l.s.z++
	l.z = l.s.z
	l.s.mu.Unlock()
}

func (l *headlessLine) Remove() {
	l.s.mu.Lock()
	delete(l.s.lines, l.id)
	l.s.mu.Unlock()
}
