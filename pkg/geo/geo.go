// Package geo holds the value types shared by the map core: live positions,
// anchors, walking routes, points of interest and screen-space geometry.
package geo

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (ll LatLng) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", ll.Lat, ll.Lng)
}

// Point converts to an orb point (x = longitude, y = latitude).
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// DistanceTo returns the great-circle distance in meters.
func (ll LatLng) DistanceTo(other LatLng) float64 {
	return orbgeo.DistanceHaversine(ll.Point(), other.Point())
}

// Position is a single live location fix. Accuracy is a radius in meters.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

func (p Position) LatLng() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// Valid rejects the all-zero fix some providers emit before they lock on.
func (p Position) Valid() bool {
	return !(p.Lat == 0 && p.Lng == 0) && p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Route is one walking loop. Km identifies the route (its distance class)
// and is the selection key. Coords are [lat, lon] pairs in drawing order.
type Route struct {
	Km     float64      `json:"km"`
	Color  string       `json:"color"`
	Coords [][2]float64 `json:"coords"`
}

// LatLngs returns the route vertices in order.
func (r Route) LatLngs() []LatLng {
	out := make([]LatLng, len(r.Coords))
	for i, c := range r.Coords {
		out[i] = LatLng{Lat: c[0], Lng: c[1]}
	}
	return out
}

// LineString returns the route as an orb line string.
func (r Route) LineString() orb.LineString {
	ls := make(orb.LineString, len(r.Coords))
	for i, c := range r.Coords {
		ls[i] = orb.Point{c[1], c[0]}
	}
	return ls
}

// Bound returns the coordinate extents of the route. ok is false for a
// route without vertices.
func (r Route) Bound() (b orb.Bound, ok bool) {
	if len(r.Coords) == 0 {
		return orb.Bound{}, false
	}
	return r.LineString().Bound(), true
}

// LengthMeters is the walked length of the polyline.
func (r Route) LengthMeters() float64 {
	return orbgeo.LengthHaversine(r.LineString())
}

// POI categories understood by the map. Providers may return others.
const (
	CategoryCafe  = "cafe"
	CategorySight = "sight"
	CategoryOther = "other"
)

// POI is a point of interest near the anchor.
type POI struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
}

func (p POI) LatLng() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lon}
}

// ScreenPoint is a position in container pixels, origin top-left.
type ScreenPoint struct {
	X float64
	Y float64
}

// Rect is a screen-space rectangle.
type Rect struct {
	Min ScreenPoint
	Max ScreenPoint
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p ScreenPoint) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}
