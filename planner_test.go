package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rubiojr/walkmap/pkg/geo"
)

// fakeORS answers round-trip requests with a square loop whose size
// depends on the requested length.
func fakeORS(t *testing.T, status func(length int) int) (*httptest.Server, *[]orsRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []orsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Authorization") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req orsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()

		if code := status(req.Options.RoundTrip.Length); code != http.StatusOK {
			w.WriteHeader(code)
			fmt.Fprint(w, `{"error":"quota"}`)
			return
		}
		lon, lat := req.Coordinates[0][0], req.Coordinates[0][1]
		d := float64(req.Options.RoundTrip.Length) / 1e6
		fmt.Fprintf(w, `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
			"geometry":{"type":"LineString","coordinates":[[%[1]g,%[2]g],[%[3]g,%[2]g],[%[3]g,%[4]g],[%[1]g,%[2]g]]}}]}`,
			lon, lat, lon+d, lat+d)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func okStatus(int) int { return http.StatusOK }

func TestORSPlannerRoundTrips(t *testing.T) {
	srv, reqs := fakeORS(t, okStatus)
	p := newORSPlanner(srv.URL, "test-key")
	at := geo.LatLng{Lat: 31.91, Lng: 131.42}

	routes, err := p.Plan(context.Background(), at)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		km    float64
		color string
	}{{3, "#facc15"}, {5, "#22c55e"}, {7, "#ef4444"}}
	if len(routes) != len(want) {
		t.Fatalf("got %d routes", len(routes))
	}
	for i, r := range routes {
		if r.Km != want[i].km || r.Color != want[i].color {
			t.Errorf("[%d] = %g %s", i, r.Km, r.Color)
		}
		if len(r.Coords) != 4 {
			t.Fatalf("[%d] %d coords", i, len(r.Coords))
		}
		// coordinates come back as [lat, lon]
		if r.Coords[0] != [2]float64{31.91, 131.42} {
			t.Errorf("[%d] first vertex = %v", i, r.Coords[0])
		}
		d := r.Km / 1000
		if r.Coords[1][1] <= 131.42 || r.Coords[1][1]-131.42-d > 1e-9 {
			t.Errorf("[%d] second vertex = %v", i, r.Coords[1])
		}
	}

	seeds := map[int]int{}
	for _, rq := range *reqs {
		if rq.Coordinates[0] != [2]float64{131.42, 31.91} {
			t.Errorf("request start = %v, want [lon, lat]", rq.Coordinates[0])
		}
		if rq.Instructions {
			t.Error("instructions requested")
		}
		seeds[rq.Options.RoundTrip.Length] = rq.Options.RoundTrip.Seed
	}
	if seeds[3000] != 11 || seeds[5000] != 22 || seeds[7000] != 33 {
		t.Errorf("seeds = %v", seeds)
	}
}

func TestORSPlannerFailures(t *testing.T) {
	srv, _ := fakeORS(t, func(length int) int {
		if length == 5000 {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	})
	if _, err := newORSPlanner(srv.URL, "test-key").Plan(context.Background(), aoshima); err == nil {
		t.Error("partial failure not reported")
	}
	if _, err := newORSPlanner(srv.URL, "").Plan(context.Background(), aoshima); !errors.Is(err, ErrNoORSKey) {
		t.Errorf("missing key: %v", err)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"line", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]}}]}`, true},
		{"no features", `{"type":"FeatureCollection","features":[]}`, false},
		{"point", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}]}`, false},
		{"garbage", `<html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := firstLine([]byte(tt.body))
			if tt.ok != (err == nil) {
				t.Fatalf("err = %v", err)
			}
			if tt.ok && (line[1].Lon() != 3 || line[1].Lat() != 4) {
				t.Errorf("line = %v", line)
			}
		})
	}
}
