package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rubiojr/walkmap/pkg/anchor"
	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

// Retry policy.
const (
	MaxAttempts = 3
	RetryDelay  = 5000 * time.Millisecond
)

var log = logger.For("fetch")

// State is the per-anchor retrieval record.
type State struct {
	Anchor anchor.Anchor
	// Attempt counts completed rounds that came back empty.
	Attempt int
	// FetchedOnce latches after the first non-empty round; no further
	// retrieval happens for this anchor.
	FetchedOnce  bool
	InFlight     bool
	RetryPending bool
	Exhausted    bool
}

// Result is a committed round. Routes or POIs may be empty, not both.
type Result struct {
	Anchor anchor.Anchor
	Routes []geo.Route
	POIs   []geo.POI
}

// Fetcher runs retrieval rounds for the current anchor. Every round and
// every retry timer is bound to the anchor that spawned it and is torn
// down when SetAnchor or Close supersedes it.
type Fetcher struct {
	src         Retriever
	clock       Clock
	maxAttempts int
	retryDelay  time.Duration

	// OnCommit receives each non-empty round. Called without locks held,
	// from a retrieval goroutine.
	OnCommit func(Result)
	// OnExhausted fires when the last allowed round came back empty.
	OnExhausted func(anchor.Anchor)

	mu        sync.Mutex
	st        State
	hasAnchor bool
	closed    bool
	// token identifies the live round or retry timer; bumping it orphans
	// whatever is outstanding.
	token  uint64
	cancel context.CancelFunc
	timer  Timer
	wg     sync.WaitGroup
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock replaces the system clock used for retry timers.
func WithClock(c Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithRetry overrides the attempt bound and delay.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.maxAttempts = maxAttempts
		f.retryDelay = delay
	}
}

// New returns a Fetcher with no anchor.
func New(src Retriever, opts ...Option) *Fetcher {
	f := &Fetcher{
		src:         src,
		clock:       systemClock{},
		maxAttempts: MaxAttempts,
		retryDelay:  RetryDelay,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// SetAnchor aborts outstanding work, clears the latch and attempt counter
// and starts a round for a.
func (f *Fetcher) SetAnchor(a anchor.Anchor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.abortLocked()
	f.st = State{Anchor: a}
	f.hasAnchor = true
	f.startLocked()
}

// Trigger starts a round unless the anchor is latched, a round or retry is
// already outstanding, or retries are exhausted. It reports whether a
// round was started.
func (f *Fetcher) Trigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || !f.hasAnchor || f.st.FetchedOnce || f.st.InFlight || f.st.RetryPending || f.st.Exhausted {
		return false
	}
	f.startLocked()
	return true
}

// State returns a copy of the retrieval record.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

// Close aborts outstanding work and waits for retrieval goroutines to exit.
func (f *Fetcher) Close() {
	f.mu.Lock()
	f.closed = true
	f.abortLocked()
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Fetcher) abortLocked() {
	f.token++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.st.InFlight = false
	f.st.RetryPending = false
}

func (f *Fetcher) startLocked() {
	f.token++
	tok := f.token
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.st.InFlight = true
	a := f.st.Anchor
	log.Debug("round %d for %s", f.st.Attempt+1, a.LatLng)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		routes, pois, err := f.retrieve(ctx, a.LatLng)
		f.finish(tok, a, routes, pois, err)
	}()
}

// retrieve runs both requests concurrently. Request failures degrade to
// empty collections; only cancellation is returned as an error.
func (f *Fetcher) retrieve(ctx context.Context, at geo.LatLng) ([]geo.Route, []geo.POI, error) {
	var (
		routes []geo.Route
		pois   []geo.POI
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := f.src.WalkRoutes(gctx, at)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("walk routes at %s: %v", at, err)
			return nil
		}
		routes = r
		return nil
	})
	g.Go(func() error {
		p, err := f.src.POIs(gctx, at)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("pois at %s: %v", at, err)
			return nil
		}
		pois = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return routes, pois, nil
}

func (f *Fetcher) finish(tok uint64, a anchor.Anchor, routes []geo.Route, pois []geo.POI, err error) {
	f.mu.Lock()
	if tok != f.token || f.closed {
		f.mu.Unlock()
		return
	}
	f.cancel()
	f.cancel = nil
	f.st.InFlight = false
	if err != nil {
		// aborted rounds neither count nor reset
		f.mu.Unlock()
		return
	}

	if len(routes) > 0 || len(pois) > 0 {
		f.st.FetchedOnce = true
		res := Result{Anchor: a, Routes: routes, POIs: pois}
		cb := f.OnCommit
		f.mu.Unlock()
		log.Debug("committed %d route(s), %d poi(s) for %s", len(routes), len(pois), a.LatLng)
		if cb != nil {
			cb(res)
		}
		return
	}

	f.st.Attempt++
	if f.st.Attempt < f.maxAttempts {
		f.st.RetryPending = true
		f.timer = f.clock.AfterFunc(f.retryDelay, func() { f.retry(tok) })
		attempt := f.st.Attempt
		f.mu.Unlock()
		log.Debug("empty round for %s, attempt=%d, retry in %s", a.LatLng, attempt, f.retryDelay)
		return
	}

	f.st.Exhausted = true
	cb := f.OnExhausted
	f.mu.Unlock()
	log.Info("giving up on %s after %d empty round(s)", a.LatLng, f.maxAttempts)
	if cb != nil {
		cb(a)
	}
}

func (f *Fetcher) retry(tok uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok != f.token || f.closed || !f.st.RetryPending {
		return
	}
	f.timer = nil
	f.st.RetryPending = false
	f.startLocked()
}
