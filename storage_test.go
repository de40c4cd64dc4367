package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rubiojr/walkmap/pkg/geo"
)

var aoshima = geo.LatLng{Lat: 31.8053, Lng: 131.4735}

func testStore(t *testing.T) (*poiStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "pois.sqlite")
	s, err := openPOIStore(path)
	if err != nil {
		t.Fatalf("openPOIStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

// offset returns a point about dNorth/dEast meters from ll.
func offset(ll geo.LatLng, dNorth, dEast float64) (lat, lon float64) {
	const mPerDeg = 111320.0
	return ll.Lat + dNorth/mPerDeg, ll.Lng + dEast/(mPerDeg*0.85)
}

func seedPOIs() []geo.POI {
	mk := func(name, cat string, n, e float64) geo.POI {
		lat, lon := offset(aoshima, n, e)
		return geo.POI{Name: name, Category: cat, Lat: lat, Lon: lon}
	}
	return []geo.POI{
		mk("Near Cafe", geo.CategoryCafe, 100, 0),
		mk("Shrine", geo.CategorySight, 0, 400),
		mk("Far Cafe", geo.CategoryCafe, 900, 0),
		mk("Outside", geo.CategorySight, 3000, 0),
		mk("Shop", geo.CategoryOther, 50, 50),
	}
}

func TestPOIStoreNear(t *testing.T) {
	s, _ := testStore(t)
	n, err := s.Add(context.Background(), seedPOIs(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 || s.Count() != 5 {
		t.Fatalf("added %d, count %d", n, s.Count())
	}

	tests := []struct {
		name   string
		radius float64
		kinds  []string
		limit  int
		want   []string
	}{
		{"cafes and sights nearest first", 1000, []string{"cafe", "sight"}, 50, []string{"Near Cafe", "Shrine", "Far Cafe"}},
		{"all kinds", 1000, nil, 50, []string{"Shop", "Near Cafe", "Shrine", "Far Cafe"}},
		{"radius filters box corners", 500, []string{"cafe", "sight"}, 50, []string{"Near Cafe", "Shrine"}},
		{"limit", 1000, []string{"cafe", "sight"}, 1, []string{"Near Cafe"}},
		{"large radius", 5000, []string{"sight"}, 50, []string{"Shrine", "Outside"}},
		{"unknown kind", 1000, []string{"museum"}, 50, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Near(aoshima, tt.radius, tt.kinds, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d pois %v, want %v", len(got), got, tt.want)
			}
			for i, p := range got {
				if p.Name != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, p.Name, tt.want[i])
				}
			}
		})
	}
}

func TestPOIStoreSkipsDuplicates(t *testing.T) {
	s, path := testStore(t)
	ctx := context.Background()
	pois := seedPOIs()

	dup := pois[0]
	dup.Lat += 1e-8 // rounds to the same key
	n, err := s.Add(ctx, append(pois[:2:2], dup), "test")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("first add stored %d, want 2", n)
	}
	n, err = s.Add(ctx, pois, "test")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || s.Count() != 5 {
		t.Fatalf("second add stored %d (count %d), want 3 (5)", n, s.Count())
	}

	// reopening indexes what was persisted
	s.Close()
	s2, err := openPOIStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if s2.Count() != 5 {
		t.Errorf("reopened count = %d", s2.Count())
	}
	if got := s2.Near(aoshima, 200, []string{"cafe"}, 10); len(got) != 1 || got[0].Name != "Near Cafe" {
		t.Errorf("reopened near = %v", got)
	}
}

func TestPOIStoreRejectsNameless(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Add(context.Background(), []geo.POI{{Lat: 1, Lon: 1}}, "test")
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("err = %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("count = %d", s.Count())
	}
}

func TestDedupePOIs(t *testing.T) {
	in := []geo.POI{
		{Name: "Cafe", Lat: 1.0000001, Lon: 2},
		{Name: "cafe ", Lat: 1.0000002, Lon: 2, Category: geo.CategoryCafe},
		{Name: "Cafe", Lat: 1.00001, Lon: 2},
		{Name: "Other", Lat: 1.0000001, Lon: 2},
	}
	out := DedupePOIs(in)
	if len(out) != 3 {
		t.Fatalf("got %d: %v", len(out), out)
	}
	if out[0] != in[0] {
		t.Errorf("first occurrence not kept: %v", out[0])
	}
	if len(in) != 4 {
		t.Error("input modified")
	}
}
