// Package location streams live position fixes from a provider (GeoClue
// over D-Bus, a WebSocket relay, or anything implementing Source) and keeps
// the most recent one available to readers.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/logger"
)

// ErrUnavailable is reported when no fix arrived within Options.Timeout.
var ErrUnavailable = errors.New("position unavailable")

var log = logger.For("location")

// Options are provider tuning knobs. Zero durations disable the check.
type Options struct {
	HighAccuracy bool
	// MaximumAge is handed to the provider as the oldest cached fix it
	// may report. Fixes the provider does emit are never dropped for age.
	MaximumAge time.Duration
	// Timeout is how long to wait for the first fix before reporting
	// ErrUnavailable to OnUnavailable.
	Timeout time.Duration
}

// DefaultOptions mirrors the browser geolocation settings the map was tuned with.
var DefaultOptions = Options{
	HighAccuracy: true,
	MaximumAge:   2 * time.Second,
	Timeout:      10 * time.Second,
}

// Source pushes fixes to emit until ctx is cancelled or the provider fails.
// A Source polls or reconnects on its own; the Tracker never restarts it.
type Source interface {
	Watch(ctx context.Context, opts Options, emit func(geo.Position)) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, opts Options, emit func(geo.Position)) error

func (f SourceFunc) Watch(ctx context.Context, opts Options, emit func(geo.Position)) error {
	return f(ctx, opts, emit)
}

// Tracker owns one subscription to a Source for the lifetime of a map view.
type Tracker struct {
	src  Source
	opts Options
	now  func() time.Time

	// OnFix receives every accepted fix. Called from the provider goroutine.
	OnFix func(geo.Position)
	// OnUnavailable fires at most once per Start, when the provider
	// fails or stays silent past Options.Timeout before any fix.
	OnUnavailable func(error)

	mu      sync.RWMutex
	current geo.Position
	valid   bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTracker returns a stopped tracker.
func NewTracker(src Source, opts Options) *Tracker {
	return &Tracker{src: src, opts: opts, now: time.Now}
}

// Start subscribes to the source. Calling Start on a running tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	var once sync.Once
	unavailable := func(err error) {
		once.Do(func() {
			if t.OnUnavailable != nil {
				t.OnUnavailable(err)
			}
		})
	}

	if t.opts.Timeout > 0 {
		go func() {
			timer := time.NewTimer(t.opts.Timeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				if _, ok := t.Current(); !ok {
					log.Info("no fix after %s", t.opts.Timeout)
					unavailable(ErrUnavailable)
				}
			case <-ctx.Done():
			}
		}()
	}

	go func() {
		defer close(done)
		err := t.src.Watch(ctx, t.opts, func(p geo.Position) {
			p, ok := t.accept(p)
			if !ok {
				return
			}
			if t.OnFix != nil {
				t.OnFix(p)
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error("provider stopped: %v", err)
			if _, ok := t.Current(); !ok {
				unavailable(err)
			}
		}
	}()
}

// accept records p when it is plausible. Timestamps come from the device
// that produced the fix, so they are kept as is and not compared with our clock.
func (t *Tracker) accept(p geo.Position) (geo.Position, bool) {
	if !p.Valid() {
		return p, false
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = t.now()
	}
	t.mu.Lock()
	t.current = p
	t.valid = true
	t.mu.Unlock()
	return p, true
}

// Current returns the last accepted fix. ok is false until one arrives.
func (t *Tracker) Current() (geo.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.valid
}

// Stop releases the subscription and waits for the provider to return.
// The last known fix stays readable.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
