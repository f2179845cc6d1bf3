package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ArtalePriceBot/internal/catalog"
	"ArtalePriceBot/internal/model"
	"ArtalePriceBot/internal/recorder"
)

// LiveSource is the source tag carried by catalogs built from upstream data.
const LiveSource = "artale-market.org"

// FetcherConfig bounds caching and refresh behaviour.
type FetcherConfig struct {
	TTL             time.Duration // freshness window of a live catalog
	FallbackTTL     time.Duration // freshness window of a degraded catalog
	FetchTimeout    time.Duration // upper bound of one full chain run
	FailureCooldown time.Duration // no new refresh this soon after a failed one
	SourceTag       string
}

func (c *FetcherConfig) withDefaults() FetcherConfig {
	out := *c
	if out.TTL <= 0 {
		out.TTL = 300 * time.Second
	}
	if out.FallbackTTL <= 0 {
		out.FallbackTTL = 60 * time.Second
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = 5 * time.Minute
	}
	if out.FailureCooldown < 0 {
		out.FailureCooldown = 0
	}
	if out.SourceTag == "" {
		out.SourceTag = LiveSource
	}
	return out
}

// Fetcher serves the item catalog from memory and refreshes it through the
// strategy chain when stale. It never returns an error to its callers.
type Fetcher struct {
	strategies []Strategy
	rec        recorder.Recorder
	store      *catalog.Store
	cfg        FetcherConfig

	mu          sync.Mutex
	inflight    *flight
	lastFailure time.Time
}

// flight is one in-progress chain run shared by every caller that joined it.
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
}

// NewFetcher creates a Fetcher that tries strategies in order.
func NewFetcher(strategies []Strategy, rec recorder.Recorder, cfg FetcherConfig) *Fetcher {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	cfg = cfg.withDefaults()
	return &Fetcher{
		strategies: strategies,
		rec:        rec,
		store:      catalog.NewStore(cfg.TTL, cfg.FallbackTTL),
		cfg:        cfg,
	}
}

// Current returns the held catalog without triggering a refresh. It may be nil.
func (f *Fetcher) Current() *catalog.Catalog { return f.store.Get() }

// Items returns the records of the current catalog, refreshing it first if stale.
func (f *Fetcher) Items(ctx context.Context) []model.ItemRecord {
	return f.Catalog(ctx).Items()
}

// Catalog returns a fresh catalog when possible. When the refresh fails, or
// ctx ends before it completes, the previously held catalog is returned.
func (f *Fetcher) Catalog(ctx context.Context) *catalog.Catalog {
	if !f.store.IsStale() {
		return f.store.Get()
	}

	fl := f.join(ctx)
	if fl == nil {
		return f.store.Get()
	}

	select {
	case <-fl.done:
	case <-ctx.Done():
		log.Printf("[WARN] stopped waiting for catalog refresh: %v", ctx.Err())
	}
	f.leave(fl)
	return f.store.Get()
}

// join attaches the caller to the in-flight refresh, starting one if needed.
// It returns nil while the failure cooldown is active.
func (f *Fetcher) join(ctx context.Context) *flight {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight != nil {
		f.inflight.waiters++
		return f.inflight
	}
	if !f.lastFailure.IsZero() && f.store.Now().Sub(f.lastFailure) < f.cfg.FailureCooldown {
		return nil
	}

	// The refresh outlives any single caller; it is cancelled only when every
	// waiter has left.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.FetchTimeout)
	fl := &flight{done: make(chan struct{}), cancel: cancel, waiters: 1}
	f.inflight = fl
	go f.run(fctx, fl)
	return fl
}

func (f *Fetcher) leave(fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl.waiters--
	if fl.waiters == 0 {
		fl.cancel()
	}
}

func (f *Fetcher) run(ctx context.Context, fl *flight) {
	defer close(fl.done)
	defer fl.cancel()

	ok := false
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] catalog refresh panicked: %v", r)
		}
		f.mu.Lock()
		if ok {
			f.lastFailure = time.Time{}
		} else {
			f.lastFailure = f.store.Now()
		}
		f.inflight = nil
		f.mu.Unlock()
	}()

	ok = f.refresh(ctx)
}

// refresh runs the chain until one strategy yields a non-empty list and
// installs it. It reports whether the catalog was replaced.
func (f *Fetcher) refresh(ctx context.Context) bool {
	hasLive := f.store.HasLive()

	for _, s := range f.strategies {
		if ctx.Err() != nil {
			log.Printf("[WARN] catalog refresh aborted: %v", ctx.Err())
			return false
		}
		fallback := isFallback(s)
		if fallback && hasLive {
			log.Printf("[INFO] keeping stale live catalog instead of %s", s.Name())
			continue
		}

		start := time.Now()
		items, err := f.runStrategy(ctx, s)
		elapsed := time.Since(start)

		switch {
		case errors.Is(err, ErrUnavailable):
			f.record(s.Name(), model.OutcomeUnavailable, 0, elapsed, nil)
			continue
		case err != nil:
			log.Printf("[WARN] strategy %s failed: %v", s.Name(), err)
			f.record(s.Name(), model.OutcomeFailed, 0, elapsed, err)
			continue
		case len(items) == 0:
			err = errors.New("no items returned")
			log.Printf("[WARN] strategy %s failed: %v", s.Name(), err)
			f.record(s.Name(), model.OutcomeFailed, 0, elapsed, err)
			continue
		}

		f.record(s.Name(), model.OutcomeOK, len(items), elapsed, nil)
		source := f.cfg.SourceTag
		if fallback {
			source = s.Name()
			log.Printf("[WARN] serving %d placeholder items from %s", len(items), source)
		} else {
			log.Printf("[INFO] catalog refreshed via %s: %d items in %s", s.Name(), len(items), elapsed.Round(time.Millisecond))
		}
		f.store.Set(catalog.New(items, f.store.Now(), source, fallback))
		return true
	}

	log.Printf("[ERROR] all strategies failed; keeping previous catalog (%d items)", f.store.Get().Len())
	return false
}

// runStrategy converts a panicking strategy into a failure.
func (f *Fetcher) runStrategy(ctx context.Context, s Strategy) (items []model.ItemRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Fetch(ctx)
}

func (f *Fetcher) record(name string, outcome model.FetchOutcome, n int, elapsed time.Duration, cause error) {
	evt := &recorder.FetchEvent{
		Strategy:   name,
		Outcome:    string(outcome),
		Items:      n,
		DurationMs: elapsed.Milliseconds(),
	}
	if cause != nil {
		evt.Error = cause.Error()
	}
	if err := f.rec.RecordFetch(evt); err != nil {
		log.Printf("[WARN] record fetch event: %v", err)
	}
}
