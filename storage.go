package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/asim/quadtree"
	_ "modernc.org/sqlite"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

// ErrEmptyName is returned when storing a POI without a name.
var ErrEmptyName = errors.New("poi has no name")

// poiStore persists POIs in SQLite and answers radius queries from an
// in-memory quadtree loaded at open and kept in step with inserts.
type poiStore struct {
	db *sql.DB

	mu    sync.RWMutex
	tree  *quadtree.QuadTree
	count int
}

// Point data stored in the quadtree.
type poiEntry struct {
	poi geo.POI
}

func newPOITree() *quadtree.QuadTree {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	return quadtree.New(quadtree.NewAABB(center, half), 0, nil)
}

// openPOIStore opens (or creates) the POI database at path and indexes
// every stored row.
func openPOIStore(path string) (*poiStore, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open poi db: %w", err)
	}
	// single writer; modernc sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS pois (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		name     TEXT NOT NULL,
		lat      REAL NOT NULL,
		lon      REAL NOT NULL,
		category TEXT NOT NULL,
		source   TEXT NOT NULL DEFAULT '',
		added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, lat, lon)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("poi db schema: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pois_category ON pois(category)`)

	s := &poiStore{db: db, tree: newPOITree()}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("poi store %s: %d indexed", path, s.Count())
	return s, nil
}

func (s *poiStore) load() error {
	rows, err := s.db.Query(`SELECT name, lat, lon, category FROM pois`)
	if err != nil {
		return fmt.Errorf("load pois: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var p geo.POI
		if err := rows.Scan(&p.Name, &p.Lat, &p.Lon, &p.Category); err != nil {
			return fmt.Errorf("scan poi: %w", err)
		}
		s.indexLocked(p)
	}
	return rows.Err()
}

func (s *poiStore) indexLocked(p geo.POI) {
	if s.tree.Insert(quadtree.NewPoint(p.Lat, p.Lon, &poiEntry{poi: p})) {
		s.count++
	}
}

// Add stores pois, skipping duplicates of each other and of stored rows.
// It returns how many were new.
func (s *poiStore) Add(ctx context.Context, pois []geo.POI, source string) (int, error) {
	normalized := make([]geo.POI, 0, len(pois))
	for _, p := range pois {
		if p.Name == "" {
			return 0, ErrEmptyName
		}
		normalized = append(normalized, normalizePOI(p))
	}
	normalized = DedupePOIs(normalized)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO pois(name, lat, lon, category, source) VALUES(?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var added []geo.POI
	for _, p := range normalized {
		res, err := stmt.ExecContext(ctx, p.Name, p.Lat, p.Lon, p.Category, source)
		if err != nil {
			return 0, fmt.Errorf("insert %q: %w", p.Name, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			added = append(added, p)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	for _, p := range added {
		s.indexLocked(p)
	}
	s.mu.Unlock()
	return len(added), nil
}

// Near returns POIs within radiusM meters of center whose category is in
// kinds (all categories when kinds is empty), nearest first, at most limit.
func (s *poiStore) Near(center geo.LatLng, radiusM float64, kinds []string, limit int) []geo.POI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := quadtree.NewPoint(center.Lat, center.Lng, nil)
	points := s.tree.Search(quadtree.NewAABB(c, c.HalfPoint(radiusM)))

	type hit struct {
		poi  geo.POI
		dist float64
	}
	hits := make([]hit, 0, len(points))
	for _, pt := range points {
		e, ok := pt.Data().(*poiEntry)
		if !ok {
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, e.poi.Category) {
			continue
		}
		// the search box is approximate; filter to the actual radius
		d := center.DistanceTo(e.poi.LatLng())
		if d > radiusM {
			continue
		}
		hits = append(hits, hit{poi: e.poi, dist: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]geo.POI, len(hits))
	for i, h := range hits {
		out[i] = h.poi
	}
	return out
}

// Count is the number of indexed POIs.
func (s *poiStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Ping checks database connectivity.
func (s *poiStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *poiStore) Close() error {
	return s.db.Close()
}
