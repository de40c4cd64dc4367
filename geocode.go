package main

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

// nominatimMinInterval keeps us within the public server's usage policy.
const nominatimMinInterval = 1100 * time.Millisecond

var nominatimServerOnce sync.Once

type searchFunc func(q string, limit int) ([]gominatim.SearchResult, error)

// poiImporter fills the POI store from Nominatim searches.
type poiImporter struct {
	store       *poiStore
	search      searchFunc
	minInterval time.Duration
	retries     int

	mu   sync.Mutex
	last time.Time
}

func newPOIImporter(store *poiStore, server string) *poiImporter {
	nominatimServerOnce.Do(func() {
		gominatim.SetServer(server)
	})
	return &poiImporter{
		store:       store,
		search:      nominatimSearch,
		minInterval: nominatimMinInterval,
		retries:     1,
	}
}

func nominatimSearch(q string, limit int) ([]gominatim.SearchResult, error) {
	qObj := gominatim.SearchQuery{
		Q:     q,
		Limit: limit,
	}
	return qObj.Get()
}

// Import runs each query and stores the results it can map to a POI.
// It returns how many new POIs were stored.
func (im *poiImporter) Import(ctx context.Context, queries []string, limit int) (int, error) {
	var found []geo.POI
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res, err := im.searchWithRetry(q, limit)
		if err != nil {
			logger.Error("nominatim search %q: %v", q, err)
			continue
		}
		n := 0
		for _, r := range res {
			if p, ok := poiFromResult(r); ok {
				found = append(found, p)
				n++
			}
		}
		logger.Info("%q: %d result(s), %d usable", q, len(res), n)
	}
	if len(found) == 0 {
		return 0, nil
	}
	return im.store.Add(ctx, found, "nominatim")
}

func (im *poiImporter) throttle() {
	im.mu.Lock()
	defer im.mu.Unlock()
	if delta := time.Since(im.last); delta < im.minInterval {
		time.Sleep(im.minInterval - delta)
	}
	im.last = time.Now()
}

// searchWithRetry retries transient (truncated body) failures.
func (im *poiImporter) searchWithRetry(q string, limit int) ([]gominatim.SearchResult, error) {
	attempts := im.retries + 1
	var (
		res []gominatim.SearchResult
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		im.throttle()
		res, err = im.search(q, limit)
		if err == nil {
			if attempt > 1 {
				logger.Info("nominatim recovered after %d attempt(s) for %q", attempt, q)
			}
			return res, nil
		}
		errStr := err.Error()
		transient := strings.Contains(errStr, "unexpected end of JSON") || strings.Contains(errStr, "EOF")
		if !transient {
			return nil, err
		}
		logger.Debug("transient nominatim error (attempt %d/%d) query=%q err=%v", attempt, attempts, q, err)
	}
	return nil, err
}

// poiFromResult maps a search hit to a POI, dropping hits without a name
// or usable coordinates.
func poiFromResult(r gominatim.SearchResult) (geo.POI, bool) {
	lat, err1 := strconv.ParseFloat(r.Lat, 64)
	lon, err2 := strconv.ParseFloat(r.Lon, 64)
	if err1 != nil || err2 != nil {
		return geo.POI{}, false
	}
	name := shortName(r.DisplayName)
	if name == "" {
		return geo.POI{}, false
	}
	p := geo.POI{Lat: lat, Lon: lon, Name: name, Category: categoryFor(r.Class, r.Type)}
	if !validLatLng(p.LatLng()) {
		return geo.POI{}, false
	}
	return p, true
}

// shortName keeps the first component of a Nominatim display name
// ("Cafe Foo, 1-2 Street, City, Country" -> "Cafe Foo").
func shortName(display string) string {
	name, _, _ := strings.Cut(display, ",")
	return strings.TrimSpace(name)
}

// categoryFor maps an OSM class/type pair to a map category.
func categoryFor(class, typ string) string {
	switch class {
	case "amenity":
		if typ == "cafe" {
			return geo.CategoryCafe
		}
	case "tourism":
		switch typ {
		case "attraction", "viewpoint", "museum", "artwork", "gallery":
			return geo.CategorySight
		}
	case "historic":
		return geo.CategorySight
	}
	return geo.CategoryOther
}
