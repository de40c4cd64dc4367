package geo

import (
	"math"
	"testing"
)

func TestPositionValid(t *testing.T) {
	tests := []struct {
		p    Position
		want bool
	}{
		{Position{Lat: 31.91, Lng: 131.42}, true},
		{Position{Lat: 0, Lng: 0}, false},
		{Position{Lat: 0, Lng: 10}, true},
		{Position{Lat: 91, Lng: 10}, false},
		{Position{Lat: 10, Lng: -181}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v", tt.p, got)
		}
	}
}

func TestRouteGeometry(t *testing.T) {
	r := Route{Km: 3, Coords: [][2]float64{{31.90, 131.42}, {31.91, 131.42}, {31.91, 131.44}}}

	b, ok := r.Bound()
	if !ok {
		t.Fatal("no bound")
	}
	// orb bounds are [lon, lat]
	if b.Min[0] != 131.42 || b.Min[1] != 31.90 || b.Max[0] != 131.44 || b.Max[1] != 31.91 {
		t.Errorf("bound = %v", b)
	}
	if ll := r.LatLngs()[2]; ll.Lat != 31.91 || ll.Lng != 131.44 {
		t.Errorf("vertex = %v", ll)
	}

	// 0.01 deg of latitude is ~1.11 km; 0.02 deg of longitude at 31.9N is ~1.89 km
	if got := r.LengthMeters(); math.Abs(got-3000) > 60 {
		t.Errorf("length = %.0f m", got)
	}

	if _, ok := (Route{}).Bound(); ok {
		t.Error("empty route has a bound")
	}
}

func TestDistanceTo(t *testing.T) {
	a := LatLng{Lat: 31.91, Lng: 131.42}
	if d := a.DistanceTo(a); d != 0 {
		t.Errorf("self distance = %v", d)
	}
	b := LatLng{Lat: 31.92, Lng: 131.42}
	if d := a.DistanceTo(b); math.Abs(d-1112) > 5 {
		t.Errorf("distance = %.1f", d)
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{Max: ScreenPoint{X: 400, Y: 300}}
	for _, p := range []ScreenPoint{{0, 0}, {400, 300}, {200, 150}} {
		if !r.Contains(p) {
			t.Errorf("%v not inside", p)
		}
	}
	for _, p := range []ScreenPoint{{-1, 10}, {401, 10}, {10, 300.5}} {
		if r.Contains(p) {
			t.Errorf("%v inside", p)
		}
	}
}
