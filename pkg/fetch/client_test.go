package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rubiojr/walkmap/pkg/geo"
)

func TestClientWalkRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/walk_routes" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("lat"); got != "31.91" {
			t.Errorf("lat = %q", got)
		}
		if got := r.URL.Query().Get("lon"); got != "131.42" {
			t.Errorf("lon = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"routes":[{"km":3,"color":"#facc15","coords":[[31.91,131.42],[31.92,131.43]]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	routes, err := c.WalkRoutes(context.Background(), geo.LatLng{Lat: 31.91, Lng: 131.42})
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].Km != 3 || routes[0].Color != "#facc15" || len(routes[0].Coords) != 2 {
		t.Fatalf("routes = %+v", routes)
	}
	if routes[0].Coords[1] != [2]float64{31.92, 131.43} {
		t.Errorf("coords = %v", routes[0].Coords)
	}
}

func TestClientPOIsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for key, want := range map[string]string{"radius": "800", "kinds": "cafe,sight", "limit": "10"} {
			if got := q.Get(key); got != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}
		_, _ = w.Write([]byte(`{"pois":[{"lat":1,"lon":2,"name":"Kissa","category":"cafe"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.Radius = 800
	c.Limit = 10
	pois, err := c.POIs(context.Background(), geo.LatLng{Lat: 1, Lng: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(pois) != 1 || pois[0].Name != "Kissa" || pois[0].Category != "cafe" {
		t.Errorf("pois = %+v", pois)
	}
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, `{"routes":[]}`, ErrStatus},
		{"not json", http.StatusOK, `<html>`, ErrMalformed},
		{"missing field", http.StatusOK, `{"error":"lat/lon are required"}`, ErrMalformed},
		{"field not a list", http.StatusOK, `{"routes":{"km":3}}`, ErrMalformed},
		{"null list", http.StatusOK, `{"routes":null}`, ErrMalformed},
		{"top-level array", http.StatusOK, `[]`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).WalkRoutes(context.Background(), geo.LatLng{Lat: 1, Lng: 1})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetcherTreatsFailuresAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/pois" {
			_, _ = w.Write([]byte(`{"pois":[{"lat":1,"lon":2,"name":"Shrine","category":"sight"}]}`))
			return
		}
		http.Error(w, "ors down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(NewClient(srv.URL), WithClock(newManualClock()))
	commits := make(chan Result, 1)
	f.OnCommit = func(r Result) { commits <- r }
	defer f.Close()

	f.SetAnchor(scenarioAnchor)
	r := <-commits
	if len(r.Routes) != 0 || len(r.POIs) != 1 || r.POIs[0].Name != "Shrine" {
		t.Errorf("commit = %+v", r)
	}
}
