package mapview

import (
	"context"
	"slices"
	"time"

	"github.com/rubiojr/walkmap/pkg/anchor"
	"github.com/rubiojr/walkmap/pkg/drag"
	"github.com/rubiojr/walkmap/pkg/fetch"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/location"
	"github.com/rubiojr/walkmap/pkg/logger"
	"github.com/rubiojr/walkmap/pkg/selection"
)

var log = logger.For("mapview")

// Config tunes a Session.
type Config struct {
	Fallback    geo.LatLng
	InitialZoom float64
	// FitPadding is the margin kept around a route in walk mode.
	FitPadding float64
	// Follow recenters the camera on every live fix until a manual
	// anchor is set.
	Follow bool
	// FallbackAfter bounds how long retrieval waits for a first fix
	// before anchoring at Fallback. Zero waits for the tracker's own
	// timeout only.
	FallbackAfter time.Duration
}

// DefaultConfig is the stock map tuning.
func DefaultConfig() Config {
	return Config{
		Fallback:      anchor.Fallback,
		InitialZoom:   15,
		FitPadding:    40,
		Follow:        true,
		FallbackAfter: 10 * time.Second,
	}
}

// Snapshot is a consistent copy of session state.
type Snapshot struct {
	Anchor    anchor.Anchor
	HasAnchor bool
	Position  *geo.Position
	Follow    bool
	Routes    []geo.Route
	POIs      []geo.POI
	Drawn     []float64
	Selection selection.State
	Drag      drag.State
	Fetch     fetch.State
}

// Session is one map view. All state lives on the goroutine running Run;
// the exported methods post events to it and may be called from anywhere.
type Session struct {
	cfg     Config
	surface Surface
	tracker *location.Tracker
	fetcher *fetch.Fetcher

	events  chan func()
	stopped chan struct{}

	anchors  *anchor.Controller
	sel      *selection.Machine
	drag     *drag.Controller
	render   *Renderer
	position *geo.Position
	follow   bool
	routes   []geo.Route
	pois     []geo.POI
}

// NewSession wires a session. tracker may be nil, in which case the anchor
// falls back immediately.
func NewSession(cfg Config, surface Surface, tracker *location.Tracker, fetcher *fetch.Fetcher) *Session {
	s := &Session{
		cfg:     cfg,
		surface: surface,
		tracker: tracker,
		fetcher: fetcher,
		events:  make(chan func(), 64),
		stopped: make(chan struct{}),
		anchors: anchor.NewController(cfg.Fallback),
		sel:     &selection.Machine{},
		follow:  cfg.Follow,
	}
	s.render = NewRenderer(surface, s.sel, s.post)
	s.render.OnRouteClick = s.selectRoute
	s.render.OnAnchorMoved = s.relocate
	s.drag = drag.New(loopSurface{Surface: surface, post: s.post}, s.relocate)

	fetcher.OnCommit = func(r fetch.Result) { s.post(func() { s.commit(r) }) }
	fetcher.OnExhausted = func(a anchor.Anchor) {
		s.post(func() { log.Info("no routes or POIs around %s", a.LatLng) })
	}
	return s
}

// post queues f for the loop. Events posted after teardown are dropped.
func (s *Session) post(f func()) {
	select {
	case s.events <- f:
	case <-s.stopped:
	}
}

// Run processes events until ctx is cancelled, then tears down: the drag
// is cancelled, outstanding retrieval aborted and the tracker stopped.
// A Session runs once.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	if s.tracker != nil {
		s.tracker.OnFix = func(p geo.Position) { s.post(func() { s.onFix(p) }) }
		s.tracker.OnUnavailable = func(err error) { s.post(func() { s.onUnavailable(err) }) }
		s.tracker.Start(ctx)
		if s.cfg.FallbackAfter > 0 {
			t := time.AfterFunc(s.cfg.FallbackAfter, func() { s.post(s.ensureAnchor) })
			defer t.Stop()
		}
	} else {
		s.follow = false
		s.ensureAnchor()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-s.events:
			f()
		}
	}
}

func (s *Session) teardown() {
	close(s.stopped)
	s.drag.Cancel()
	s.fetcher.Close()
	if s.tracker != nil {
		s.tracker.Stop()
	}
}

// PressHandle starts a relocation drag at p (the handle was pressed).
func (s *Session) PressHandle(p geo.ScreenPoint) {
	s.post(func() { s.drag.Press(p) })
}

// SelectRoute toggles the highlight on route km.
func (s *Session) SelectRoute(km float64) {
	s.post(func() { s.selectRoute(km) })
}

// ConfirmRoute enters walk mode for the highlighted route.
func (s *Session) ConfirmRoute() {
	s.post(s.confirm)
}

// ExitWalk leaves walk mode.
func (s *Session) ExitWalk() {
	s.post(s.exitWalk)
}

// HoverRoute is the hover affordance for route km.
func (s *Session) HoverRoute(km float64, on bool) {
	s.post(func() { s.render.Hover(km, on) })
}

// MoveAnchor relocates the anchor directly (fine adjustment).
func (s *Session) MoveAnchor(at geo.LatLng) {
	s.post(func() { s.relocate(at) })
}

// Refresh asks for retrieval; a no-op while latched or retrying.
func (s *Session) Refresh() {
	s.post(func() { s.fetcher.Trigger() })
}

// Snapshot returns the session state once every previously posted event
// has been handled. ok is false when the session has stopped.
func (s *Session) Snapshot() (snap Snapshot, ok bool) {
	reply := make(chan Snapshot, 1)
	select {
	case s.events <- func() { reply <- s.snapshot() }:
	case <-s.stopped:
		return Snapshot{}, false
	}
	select {
	case snap = <-reply:
		return snap, true
	case <-s.stopped:
		return Snapshot{}, false
	}
}

func (s *Session) snapshot() Snapshot {
	a, has := s.anchors.Current()
	snap := Snapshot{
		Anchor:    a,
		HasAnchor: has,
		Follow:    s.follow,
		Routes:    slices.Clone(s.routes),
		POIs:      slices.Clone(s.pois),
		Drawn:     s.render.RouteIDs(),
		Selection: s.sel.State(),
		Drag:      s.drag.State(),
		Fetch:     s.fetcher.State(),
	}
	if s.position != nil {
		p := *s.position
		snap.Position = &p
	}
	return snap
}

func (s *Session) onFix(p geo.Position) {
	s.position = &p
	s.render.SetPosition(p)
	if s.follow {
		s.surface.SetCenter(p.LatLng())
	}
	if a, changed := s.anchors.Initialize(&p); changed {
		s.anchored(a)
	}
}

func (s *Session) onUnavailable(err error) {
	log.Info("live position unavailable (%v), follow off", err)
	s.follow = false
	s.ensureAnchor()
}

// ensureAnchor anchors at the last fix or the fallback if nothing has yet.
func (s *Session) ensureAnchor() {
	if a, changed := s.anchors.Initialize(s.position); changed {
		s.anchored(a)
	}
}

// anchored handles the first anchor: camera placement and retrieval.
func (s *Session) anchored(a anchor.Anchor) {
	log.Debug("anchor %s (fallback=%v)", a.LatLng, a.FromFallback)
	s.render.SetAnchor(a.LatLng)
	s.surface.SetView(a.LatLng, s.cfg.InitialZoom)
	s.fetcher.SetAnchor(a)
}

// relocate is the reset path used by drag-drop and anchor fine-adjust.
func (s *Session) relocate(at geo.LatLng) {
	a := s.anchors.Reset(at.Lat, at.Lng)
	log.Debug("anchor moved to %s", a.LatLng)
	s.follow = false
	s.routes = nil
	s.pois = nil
	s.sel.Clear()
	s.render.SetRoutes(nil)
	s.render.SetPOIs(nil)
	s.render.SetAnchor(a.LatLng)
	s.fetcher.SetAnchor(a)
}

func (s *Session) commit(r fetch.Result) {
	cur, ok := s.anchors.Current()
	if !ok || cur.Generation != r.Anchor.Generation {
		log.Debug("dropping result for superseded anchor %s", r.Anchor.LatLng)
		return
	}
	if len(r.Routes) > 0 {
		s.routes = r.Routes
		s.sel.Retain(s.routes)
		s.render.SetRoutes(s.sel.Visible(s.routes))
	}
	if len(r.POIs) > 0 {
		s.pois = r.POIs
		s.render.SetPOIs(s.pois)
	}
}

func (s *Session) selectRoute(km float64) {
	s.sel.Click(km)
	s.render.Restyle()
}

func (s *Session) confirm() {
	if !s.sel.Confirm() {
		return
	}
	visible := s.sel.Visible(s.routes)
	s.render.SetRoutes(visible)
	if len(visible) == 1 {
		if b, ok := visible[0].Bound(); ok {
			s.surface.FitBounds(b, s.cfg.FitPadding)
		}
	}
}

func (s *Session) exitWalk() {
	if s.sel.Exit() {
		s.render.SetRoutes(s.routes)
	}
}

// loopSurface hands the drag controller a capture whose events are
// delivered on the session loop.
type loopSurface struct {
	Surface
	post func(func())
}

func (l loopSurface) CapturePointer(h drag.PointerHandler) func() {
	return l.Surface.CapturePointer(loopPointer{h: h, post: l.post})
}

type loopPointer struct {
	h    drag.PointerHandler
	post func(func())
}

func (p loopPointer) PointerMove(pt geo.ScreenPoint) { p.post(func() { p.h.PointerMove(pt) }) }
func (p loopPointer) PointerUp(pt geo.ScreenPoint)   { p.post(func() { p.h.PointerUp(pt) }) }
