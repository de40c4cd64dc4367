// Package mapview connects the map core (location, anchor, fetch, drag,
// selection) to a rendering surface and runs it on a single event loop.
package mapview

import (
	"github.com/paulmach/orb"

	"github.com/rubiojr/walkmap/pkg/drag"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/selection"
)

// Icon names a marker glyph. How it is drawn is up to the surface.
type Icon struct {
	Name  string
	Class string
}

// Marker icons.
var (
	IconPosition = Icon{Name: "position", Class: "hue-rotate-180"}
	IconAnchor   = Icon{Name: "anchor"}
	IconCafe     = Icon{Name: "cafe"}
	IconSight    = Icon{Name: "sight"}
	IconPOI      = Icon{Name: "poi"}
)

// MarkerEvents are optional marker callbacks. DragEnd is only wired for
// draggable markers.
type MarkerEvents struct {
	Click   func()
	DragEnd func(geo.LatLng)
}

// PolylineEvents are the per-line pointer callbacks.
type PolylineEvents struct {
	Click    func()
	HoverIn  func()
	HoverOut func()
}

type Marker interface {
	SetLatLng(geo.LatLng)
	Remove()
}

type Circle interface {
	SetLatLng(geo.LatLng)
	SetRadius(meters float64)
	Remove()
}

// Polyline supports live style updates.
type Polyline interface {
	SetStyle(selection.Style)
	BringToFront()
	Remove()
}

// Surface is everything the core needs from a map widget. Event callbacks
// may be invoked from any goroutine.
type Surface interface {
	drag.Surface

	SetView(center geo.LatLng, zoom float64)
	SetCenter(center geo.LatLng)
	// FitBounds moves the camera so b is fully visible inside a margin of
	// padding pixels.
	FitBounds(b orb.Bound, padding float64)

	AddMarker(at geo.LatLng, icon Icon, draggable bool, ev MarkerEvents) Marker
	AddCircle(center geo.LatLng, radius float64, color string, fillOpacity float64) Circle
	AddPolyline(path []geo.LatLng, style selection.Style, ev PolylineEvents) Polyline
}
