package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rubiojr/walkmap/pkg/geo"
)

// poiKeyPrecision is the number of decimal places coordinates are normalized
// to when building a dedupe key (about 11 cm at the equator).
const poiKeyPrecision = 6

// poiKey returns a stable identity key for a POI combining its name and
// normalized coordinates. Category does not participate: the same named
// place found by two searches is one place.
func poiKey(p geo.POI) string {
	lat := strconv.FormatFloat(roundTo(p.Lat, poiKeyPrecision), 'f', poiKeyPrecision, 64)
	lon := strconv.FormatFloat(roundTo(p.Lon, poiKeyPrecision), 'f', poiKeyPrecision, 64)
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(strings.TrimSpace(p.Name)), lat, lon)
}

// roundTo rounds v to 'places' decimal digits using standard rounding.
func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// DedupePOIs returns a new slice with duplicate POIs removed, preserving
// the first occurrence. The input slice is not modified.
func DedupePOIs(in []geo.POI) []geo.POI {
	seen := make(map[string]struct{}, len(in))
	out := make([]geo.POI, 0, len(in))
	for _, p := range in {
		k := poiKey(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// normalizePOI rounds coordinates to the key precision and fills in a
// category so stored rows compare equal to their dedupe key.
func normalizePOI(p geo.POI) geo.POI {
	p.Name = strings.TrimSpace(p.Name)
	p.Lat = roundTo(p.Lat, poiKeyPrecision)
	p.Lon = roundTo(p.Lon, poiKeyPrecision)
	if p.Category == "" {
		p.Category = geo.CategoryOther
	}
	return p
}
