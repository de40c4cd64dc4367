package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/rubiojr/walkmap/pkg/anchor"
	"github.com/rubiojr/walkmap/pkg/fetch"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

// Environment variable keys
const (
	envListen    = "WALKMAP_LISTEN"
	envBaseURL   = "WALKMAP_BASE_URL"
	envDB        = "WALKMAP_DB"
	envNominatim = "WALKMAP_NOMINATIM_SERVER"
	envFallback  = "WALKMAP_FALLBACK"
	envKinds     = "WALKMAP_KINDS"
	envRadius    = "WALKMAP_RADIUS"
	envDebug     = "WALKMAP_DEBUG"
	envORSURL    = "WALKMAP_ORS_URL"
	// ORS_API_KEY keeps the name the routing backend has always used.
	envORSKey = "ORS_API_KEY"
)

// Defaults
const (
	defaultListen          = "127.0.0.1:43098"
	defaultNominatimServer = "https://nominatim.openstreetmap.org"
)

type config struct {
	Listen          string
	BaseURL         string
	DBPath          string
	NominatimServer string
	ORSURL          string
	ORSKey          string
	Fallback        geo.LatLng
	Kinds           []string
	Radius          int
	Debug           bool
}

// loadEnv reads .env files into the process environment. A .env in the
// working directory is loaded first; the user config dir's .env overrides it.
func loadEnv() {
	_ = godotenv.Load(".env")
	user := filepath.Join(configDir(), ".env")
	if fileExists(user) {
		if err := godotenv.Overload(user); err != nil {
			logger.Error("failed to load %s: %v", user, err)
		}
	}
}

// configFromEnv builds the configuration from the environment, falling back
// to defaults for unset or unparsable values.
func configFromEnv(dataDir string) config {
	c := config{
		Listen:          envOr(envListen, defaultListen),
		DBPath:          envOr(envDB, filepath.Join(dataDir, "pois.sqlite")),
		NominatimServer: envOr(envNominatim, defaultNominatimServer),
		ORSURL:          envOr(envORSURL, defaultORSURL),
		ORSKey:          strings.TrimSpace(os.Getenv(envORSKey)),
		Fallback:        anchor.Fallback,
		Kinds:           fetch.DefaultKinds,
		Radius:          fetch.DefaultRadius,
	}
	c.BaseURL = envOr(envBaseURL, "http://"+c.Listen)

	if v := os.Getenv(envFallback); v != "" {
		if ll, err := parseLatLng(v); err == nil {
			c.Fallback = ll
		} else {
			logger.Error("ignoring %s=%q: %v", envFallback, v, err)
		}
	}
	if v := os.Getenv(envKinds); v != "" {
		if kinds := splitKinds(v); len(kinds) > 0 {
			c.Kinds = kinds
		}
	}
	if v := os.Getenv(envRadius); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Radius = n
		}
	}
	if v := os.Getenv(envDebug); v != "" {
		c.Debug, _ = strconv.ParseBool(v)
	}
	return c
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// parseLatLng parses "lat,lng".
func parseLatLng(s string) (geo.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.LatLng{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.LatLng{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.LatLng{}, err
	}
	ll := geo.LatLng{Lat: lat, Lng: lng}
	if !validLatLng(ll) {
		return geo.LatLng{}, fmt.Errorf("coordinate out of range: %s", ll)
	}
	return ll, nil
}

func validLatLng(ll geo.LatLng) bool {
	return ll.Lat >= -90 && ll.Lat <= 90 && ll.Lng >= -180 && ll.Lng <= 180
}

// splitKinds parses a comma separated category list, normalizing aliases
// and dropping blanks and duplicates.
func splitKinds(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range strings.Split(s, ",") {
		k = normalizeKind(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func normalizeKind(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	switch k {
	case "attraction", "sights", "tourism":
		return geo.CategorySight
	case "cafes", "coffee":
		return geo.CategoryCafe
	}
	return k
}
