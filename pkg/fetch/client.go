// Package fetch retrieves walking routes and points of interest around the
// anchor and decides when to retry, latch or give up.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/walkmap/pkg/geo"
)

var (
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("unexpected status")
	// ErrMalformed is returned when the body is not an object carrying the
	// expected list field.
	ErrMalformed = errors.New("malformed response")
)

// Defaults for the POI query.
const (
	DefaultRadius = 1000
	DefaultLimit  = 50
	maxBodyBytes  = 8 << 20
)

// DefaultKinds are the POI categories requested when none are configured.
var DefaultKinds = []string{geo.CategoryCafe, geo.CategorySight}

// Retriever is what the Fetcher needs from a backend.
type Retriever interface {
	WalkRoutes(ctx context.Context, at geo.LatLng) ([]geo.Route, error)
	POIs(ctx context.Context, at geo.LatLng) ([]geo.POI, error)
}

// Client talks to the walkmap backend API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Radius  int
	Kinds   []string
	Limit   int
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Radius:  DefaultRadius,
		Kinds:   DefaultKinds,
		Limit:   DefaultLimit,
	}
}

// WalkRoutes issues GET /api/walk_routes for at.
func (c *Client) WalkRoutes(ctx context.Context, at geo.LatLng) ([]geo.Route, error) {
	q := url.Values{}
	q.Set("lat", formatCoord(at.Lat))
	q.Set("lon", formatCoord(at.Lng))
	var routes []geo.Route
	if err := c.getList(ctx, "/api/walk_routes", q, "routes", &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// POIs issues GET /api/pois for at using the configured radius, kinds and limit.
func (c *Client) POIs(ctx context.Context, at geo.LatLng) ([]geo.POI, error) {
	q := url.Values{}
	q.Set("lat", formatCoord(at.Lat))
	q.Set("lon", formatCoord(at.Lng))
	q.Set("radius", strconv.Itoa(c.Radius))
	q.Set("kinds", strings.Join(c.Kinds, ","))
	q.Set("limit", strconv.Itoa(c.Limit))
	var pois []geo.POI
	if err := c.getList(ctx, "/api/pois", q, "pois", &pois); err != nil {
		return nil, err
	}
	return pois, nil
}

// getList fetches path and decodes the array under field into dst.
func (c *Client) getList(ctx context.Context, path string, q url.Values, field string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("%s: %w %d", path, ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}
	raw, ok := obj[field]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return fmt.Errorf("%s: %w: no %q list", path, ErrMalformed, field)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}
	return nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
