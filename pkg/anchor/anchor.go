// Package anchor owns the single reference coordinate that route and POI
// retrieval and the initial camera are keyed on.
package anchor

import (
	"github.com/rubiojr/walkmap/pkg/geo"
)

// Fallback is used when no live fix arrives before retrieval has to start.
var Fallback = geo.LatLng{Lat: 31.910, Lng: 131.423}

// Anchor is the authoritative reference point.
type Anchor struct {
	geo.LatLng
	// Manual is set once the user has repositioned the anchor.
	Manual bool
	// FromFallback marks an anchor created without any live fix.
	FromFallback bool
	// Generation increases on every change; work spawned for an older
	// generation is stale.
	Generation uint64
}

// Controller holds the anchor. It is not safe for concurrent use; the map
// session mutates it from its event loop only.
type Controller struct {
	fallback geo.LatLng
	current  Anchor
	set      bool
}

// NewController returns an unset controller using fallback when no fix is available.
func NewController(fallback geo.LatLng) *Controller {
	return &Controller{fallback: fallback}
}

// Initialize sets the anchor the first time it is called: from pos, or from
// the fallback coordinate when pos is nil. Later calls return the existing
// anchor unchanged. changed reports whether this call created it.
func (c *Controller) Initialize(pos *geo.Position) (a Anchor, changed bool) {
	if c.set {
		return c.current, false
	}
	if pos != nil && pos.Valid() {
		c.current = Anchor{LatLng: pos.LatLng()}
	} else {
		c.current = Anchor{LatLng: c.fallback, FromFallback: true}
	}
	c.current.Generation = 1
	c.set = true
	return c.current, true
}

// Reset replaces the anchor with an explicit user choice.
func (c *Controller) Reset(lat, lng float64) Anchor {
	c.current = Anchor{
		LatLng:     geo.LatLng{Lat: lat, Lng: lng},
		Manual:     true,
		Generation: c.current.Generation + 1,
	}
	c.set = true
	return c.current
}

// Current returns the anchor; ok is false before Initialize or Reset.
func (c *Controller) Current() (a Anchor, ok bool) {
	return c.current, c.set
}
