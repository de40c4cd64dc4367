package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rubiojr/walkmap/pkg/fetch"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

// POI query bounds.
const (
	maxPOIRadius = 50000
	maxPOILimit  = 200
)

var errBadCoord = errors.New("lat/lon are required")

// api serves the endpoints the map retrieves from.
type api struct {
	planner routePlanner
	store   *poiStore
	relay   *locationRelay
	kinds   []string
}

// newRouter registers every endpoint on a chi router.
func newRouter(a *api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", a.handleHealth)
	r.Get("/api/version", handleGetVersion)

	r.Get("/api/walk_routes", a.handleWalkRoutes)
	r.Get("/api/pois", a.handlePOIs)

	r.Get("/api/location", a.relay.handleGetLocation)
	r.Post("/api/location", a.relay.handlePostLocation)
	r.Get("/api/location/ws", a.relay.handleWS)
	return r
}

type walkRoutesResponse struct {
	Routes []geo.Route `json:"routes"`
}

type poisResponse struct {
	POIs []geo.POI `json:"pois"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleWalkRoutes returns the 3/5/7 km loops around ?lat=&lon=.
func (a *api) handleWalkRoutes(w http.ResponseWriter, r *http.Request) {
	at, err := queryLatLng(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	routes, err := a.planner.Plan(ctx, at)
	if err != nil {
		logger.Error("walk routes at %s: %v", at, err)
		status := http.StatusBadGateway
		if errors.Is(err, ErrNoORSKey) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	if routes == nil {
		routes = []geo.Route{}
	}
	writeJSON(w, http.StatusOK, walkRoutesResponse{Routes: routes})
}

// handlePOIs returns stored POIs around ?lat=&lon= filtered by radius,
// kinds (or types) and limit.
func (a *api) handlePOIs(w http.ResponseWriter, r *http.Request) {
	at, err := queryLatLng(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	radius := queryInt(q.Get("radius"), fetch.DefaultRadius, 1, maxPOIRadius)
	limit := queryInt(q.Get("limit"), fetch.DefaultLimit, 1, maxPOILimit)

	kinds := a.kinds
	raw := q.Get("kinds")
	if raw == "" {
		raw = q.Get("types")
	}
	if raw != "" {
		kinds = splitKinds(raw)
	}

	pois := a.store.Near(at, float64(radius), kinds, limit)
	logger.Debug("pois at %s r=%d kinds=%v: %d", at, radius, kinds, len(pois))
	writeJSON(w, http.StatusOK, poisResponse{POIs: pois})
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "error",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"database":    "connected",
		"pois":        a.store.Count(),
		"subscribers": a.relay.Subscribers(),
	})
}

// versionResponse is what /api/version reports.
type versionResponse struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// currentVersion reads the module version and VCS stamp embedded at build time.
func currentVersion() versionResponse {
	v := versionResponse{App: appName, Version: "dev", GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
			if len(v.Commit) > 7 {
				v.Commit = v.Commit[:7]
			}
		case "vcs.modified":
			v.Modified = s.Value == "true"
		}
	}
	return v
}

func handleGetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, currentVersion())
}

// queryLatLng parses the required lat and lon query parameters.
func queryLatLng(r *http.Request) (geo.LatLng, error) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return geo.LatLng{}, errBadCoord
	}
	ll := geo.LatLng{Lat: lat, Lng: lon}
	if !validLatLng(ll) {
		return geo.LatLng{}, fmt.Errorf("coordinate out of range: %s", ll)
	}
	return ll, nil
}

// queryInt parses v, using def when empty or invalid and clamping to [lo, hi].
func queryInt(v string, def, lo, hi int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
