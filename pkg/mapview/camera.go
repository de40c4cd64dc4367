package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/rubiojr/walkmap/pkg/geo"
)

const (
	tileSize = 256.0
	// half the Web Mercator world width in meters
	mercatorHalf = math.Pi * 6378137.0
	MaxZoom      = 19
)

// Camera is a Web Mercator view of Size pixels centered on Center.
type Camera struct {
	Center geo.LatLng
	Zoom   float64
	Size   geo.ScreenPoint
}

func (c Camera) worldSize() float64 {
	return tileSize * math.Pow(2, c.Zoom)
}

// toWorld returns the zoom-0 normalized position of ll, in [0,1].
func toWorld(ll geo.LatLng) (x, y float64) {
	m := project.WGS84.ToMercator(ll.Point())
	return (m[0] + mercatorHalf) / (2 * mercatorHalf), (mercatorHalf - m[1]) / (2 * mercatorHalf)
}

func fromWorld(x, y float64) geo.LatLng {
	p := project.Mercator.ToWGS84(orb.Point{x*2*mercatorHalf - mercatorHalf, mercatorHalf - y*2*mercatorHalf})
	return geo.LatLng{Lat: p[1], Lng: p[0]}
}

// Bounds is the container rectangle.
func (c Camera) Bounds() geo.Rect {
	return geo.Rect{Max: c.Size}
}

// LatLngToContainerPoint projects ll into container pixels.
func (c Camera) LatLngToContainerPoint(ll geo.LatLng) geo.ScreenPoint {
	s := c.worldSize()
	cx, cy := toWorld(c.Center)
	x, y := toWorld(ll)
	return geo.ScreenPoint{
		X: (x-cx)*s + c.Size.X/2,
		Y: (y-cy)*s + c.Size.Y/2,
	}
}

// ContainerPointToLatLng is the inverse of LatLngToContainerPoint.
func (c Camera) ContainerPointToLatLng(p geo.ScreenPoint) geo.LatLng {
	s := c.worldSize()
	cx, cy := toWorld(c.Center)
	return fromWorld(cx+(p.X-c.Size.X/2)/s, cy+(p.Y-c.Size.Y/2)/s)
}

// Fit returns the camera showing b inside padding pixels at the highest
// whole zoom level that fits, capped at MaxZoom.
func (c Camera) Fit(b orb.Bound, padding float64) Camera {
	minX, maxY := toWorld(geo.LatLng{Lat: b.Min[1], Lng: b.Min[0]})
	maxX, minY := toWorld(geo.LatLng{Lat: b.Max[1], Lng: b.Max[0]})
	dx, dy := maxX-minX, maxY-minY

	availW := math.Max(c.Size.X-2*padding, 1)
	availH := math.Max(c.Size.Y-2*padding, 1)
	zoom := float64(MaxZoom)
	if dx > 0 || dy > 0 {
		scale := math.Inf(1)
		if dx > 0 {
			scale = availW / (dx * tileSize)
		}
		if dy > 0 {
			scale = math.Min(scale, availH/(dy*tileSize))
		}
		zoom = math.Min(math.Floor(math.Log2(scale)), MaxZoom)
		zoom = math.Max(zoom, 0)
	}
	return Camera{
		Center: fromWorld((minX+maxX)/2, (minY+maxY)/2),
		Zoom:   zoom,
		Size:   c.Size,
	}
}
