package mapview

import (
	"math"
	"slices"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/selection"
)

// AccuracyFloor is the minimum radius of the accuracy circle in meters.
const AccuracyFloor = 25

// routeLayer is one drawn route line.
type routeLayer struct {
	route   geo.Route
	line    Polyline
	hovered bool
}

// Renderer owns every drawable on the surface. The route index (km →
// layer) is private to it; nothing else holds layer handles. All methods
// run on the session loop; surface callbacks are re-posted through post.
type Renderer struct {
	surface Surface
	sel     *selection.Machine
	post    func(func())

	// OnRouteClick and OnAnchorMoved run on the loop.
	OnRouteClick  func(km float64)
	OnAnchorMoved func(geo.LatLng)

	routes   map[float64]*routeLayer
	order    []float64
	pois     []Marker
	position Marker
	accuracy Circle
	anchor   Marker
}

// NewRenderer returns a renderer drawing on s with styles from sel.
func NewRenderer(s Surface, sel *selection.Machine, post func(func())) *Renderer {
	return &Renderer{
		surface: s,
		sel:     sel,
		post:    post,
		routes:  make(map[float64]*routeLayer),
	}
}

// RouteIDs returns the ids of drawn routes in draw order.
func (r *Renderer) RouteIDs() []float64 {
	return slices.Clone(r.order)
}

// SetRoutes makes the drawn lines match routes, reusing unchanged layers,
// then reapplies selection styles. Routes are keyed by km; only the first
// route of a given length is drawn.
func (r *Renderer) SetRoutes(routes []geo.Route) {
	keep := make(map[float64]bool, len(routes))
	for _, rt := range routes {
		keep[rt.Km] = true
	}
	for km, l := range r.routes {
		if !keep[km] {
			l.line.Remove()
			delete(r.routes, km)
		}
	}

	r.order = r.order[:0]
	drawn := make(map[float64]bool, len(routes))
	for _, rt := range routes {
		if drawn[rt.Km] {
			log.Debug("skipping duplicate %g km route", rt.Km)
			continue
		}
		drawn[rt.Km] = true
		if l, ok := r.routes[rt.Km]; ok {
			if sameRoute(l.route, rt) {
				r.order = append(r.order, rt.Km)
				continue
			}
			l.line.Remove()
		}
		km := rt.Km
		line := r.surface.AddPolyline(rt.LatLngs(), r.sel.StyleFor(rt), PolylineEvents{
			Click:    func() { r.post(func() { r.click(km) }) },
			HoverIn:  func() { r.post(func() { r.Hover(km, true) }) },
			HoverOut: func() { r.post(func() { r.Hover(km, false) }) },
		})
		r.routes[km] = &routeLayer{route: rt, line: line}
		r.order = append(r.order, km)
	}
	r.Restyle()
}

func sameRoute(a, b geo.Route) bool {
	return a.Km == b.Km && a.Color == b.Color && slices.Equal(a.Coords, b.Coords)
}

func (r *Renderer) click(km float64) {
	if r.OnRouteClick != nil {
		r.OnRouteClick(km)
	}
}

// Restyle applies the selection-derived style to every line and raises
// the highlighted one above the rest.
func (r *Renderer) Restyle() {
	var front *routeLayer
	for _, km := range r.order {
		l := r.routes[km]
		st := r.sel.StyleFor(l.route)
		if l.hovered {
			st = r.sel.HoverStyle(l.route)
		}
		l.line.SetStyle(st)
		if st.Front {
			front = l
		}
	}
	if front != nil {
		front.line.BringToFront()
	}
}

// Hover thickens a line while the pointer is over it. Leaving restores
// the selection-determined style.
func (r *Renderer) Hover(km float64, on bool) {
	l, ok := r.routes[km]
	if !ok || l.hovered == on {
		return
	}
	l.hovered = on
	if on {
		l.line.SetStyle(r.sel.HoverStyle(l.route))
	} else {
		l.line.SetStyle(r.sel.StyleFor(l.route))
	}
}

// SetPOIs replaces the POI markers.
func (r *Renderer) SetPOIs(pois []geo.POI) {
	for _, m := range r.pois {
		m.Remove()
	}
	r.pois = r.pois[:0]
	for _, p := range pois {
		r.pois = append(r.pois, r.surface.AddMarker(p.LatLng(), poiIcon(p.Category), false, MarkerEvents{}))
	}
}

func poiIcon(category string) Icon {
	switch category {
	case geo.CategoryCafe:
		return IconCafe
	case geo.CategorySight:
		return IconSight
	}
	return IconPOI
}

// SetPosition moves the live-position marker and its accuracy circle.
func (r *Renderer) SetPosition(p geo.Position) {
	radius := math.Max(p.Accuracy, AccuracyFloor)
	if r.position == nil {
		r.position = r.surface.AddMarker(p.LatLng(), IconPosition, false, MarkerEvents{})
		r.accuracy = r.surface.AddCircle(p.LatLng(), radius, "#3b82f6", 0.2)
		return
	}
	r.position.SetLatLng(p.LatLng())
	r.accuracy.SetLatLng(p.LatLng())
	r.accuracy.SetRadius(radius)
}

// SetAnchor places the draggable anchor marker. Dragging it is the
// fine-adjust path for relocating the anchor.
func (r *Renderer) SetAnchor(at geo.LatLng) {
	if r.anchor != nil {
		r.anchor.SetLatLng(at)
		return
	}
	r.anchor = r.surface.AddMarker(at, IconAnchor, true, MarkerEvents{
		DragEnd: func(ll geo.LatLng) {
			r.post(func() {
				if r.OnAnchorMoved != nil {
					r.OnAnchorMoved(ll)
				}
			})
		},
	})
}

// Clear removes every drawable.
func (r *Renderer) Clear() {
	r.SetRoutes(nil)
	r.SetPOIs(nil)
	for _, m := range []Marker{r.position, r.anchor} {
		if m != nil {
			m.Remove()
		}
	}
	if r.accuracy != nil {
		r.accuracy.Remove()
	}
	r.position, r.anchor, r.accuracy = nil, nil, nil
}
