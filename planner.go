package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

const defaultORSURL = "https://api.openrouteservice.org/v2/directions/foot-walking/geojson"

var (
	// ErrNoORSKey is returned when the routing key is not configured.
	ErrNoORSKey = errors.New("ORS_API_KEY is not set")
	// ErrNoRoute is returned when the routing service answers without a line.
	ErrNoRoute = errors.New("no route geometry in response")
)

// loopPlan is one round trip requested around the anchor.
type loopPlan struct {
	Length int // meters
	Color  string
	Seed   int
}

// loopPlans are the three walks offered on the map.
var loopPlans = []loopPlan{
	{Length: 3000, Color: "#facc15", Seed: 11},
	{Length: 5000, Color: "#22c55e", Seed: 22},
	{Length: 7000, Color: "#ef4444", Seed: 33},
}

// routePlanner produces the walking loops around a point.
type routePlanner interface {
	Plan(ctx context.Context, at geo.LatLng) ([]geo.Route, error)
}

// orsPlanner asks OpenRouteService for foot-walking round trips.
type orsPlanner struct {
	URL   string
	Key   string
	HTTP  *http.Client
	Plans []loopPlan
}

func newORSPlanner(url, key string) *orsPlanner {
	return &orsPlanner{
		URL:   url,
		Key:   key,
		HTTP:  &http.Client{Timeout: 25 * time.Second},
		Plans: loopPlans,
	}
}

type orsRequest struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Options      orsOptions   `json:"options"`
	Instructions bool         `json:"instructions"`
}

type orsOptions struct {
	RoundTrip orsRoundTrip `json:"round_trip"`
}

type orsRoundTrip struct {
	Length int `json:"length"`
	Seed   int `json:"seed"`
}

// Plan requests every loop concurrently. Any failure fails the whole plan;
// routes come back in plan order.
func (p *orsPlanner) Plan(ctx context.Context, at geo.LatLng) ([]geo.Route, error) {
	if p.Key == "" {
		return nil, ErrNoORSKey
	}
	routes := make([]geo.Route, len(p.Plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, plan := range p.Plans {
		i, plan := i, plan
		g.Go(func() error {
			r, err := p.roundTrip(gctx, at, plan)
			if err != nil {
				return fmt.Errorf("%d m loop: %w", plan.Length, err)
			}
			routes[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return routes, nil
}

func (p *orsPlanner) roundTrip(ctx context.Context, at geo.LatLng, plan loopPlan) (geo.Route, error) {
	body, err := json.Marshal(orsRequest{
		// round trips take a single [lon, lat] start point
		Coordinates: [][2]float64{{at.Lng, at.Lat}},
		Options:     orsOptions{RoundTrip: orsRoundTrip{Length: plan.Length, Seed: plan.Seed}},
	})
	if err != nil {
		return geo.Route{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return geo.Route{}, err
	}
	req.Header.Set("Authorization", p.Key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return geo.Route{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return geo.Route{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return geo.Route{}, fmt.Errorf("openrouteservice status %d: %s", resp.StatusCode, bytes.TrimSpace(truncate(data, 200)))
	}
	logger.Debug("ors loop %dm seed %d in %s", plan.Length, plan.Seed, time.Since(start).Round(time.Millisecond))

	line, err := firstLine(data)
	if err != nil {
		return geo.Route{}, err
	}
	coords := make([][2]float64, len(line))
	for i, pt := range line {
		// GeoJSON is [lon, lat]; the map wants [lat, lon]
		coords[i] = [2]float64{pt.Lat(), pt.Lon()}
	}
	return geo.Route{
		Km:     float64(plan.Length) / 1000,
		Color:  plan.Color,
		Coords: coords,
	}, nil
}

// firstLine extracts the geometry of the first feature.
func firstLine(data []byte) (orb.LineString, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
		return nil, ErrNoRoute
	}
	line, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok || len(line) == 0 {
		return nil, ErrNoRoute
	}
	return line, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
