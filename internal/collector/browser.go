package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/url"
	"time"

	"ArtalePriceBot/internal/browser"
	"ArtalePriceBot/internal/model"
)

// BrowserConfig controls the browser automation strategy.
type BrowserConfig struct {
	RootURL              string
	SnapshotURL          string
	UserAgents           []string
	Headless             bool
	MaxAttempts          int
	RootChallengeTimeout time.Duration
	ChallengeTimeout     time.Duration
	ChallengeMarkers     []string
}

// BrowserStrategy loads the snapshot endpoint in a real browser, waiting out
// challenge pages, and extracts the JSON the browser ends up rendering.
type BrowserStrategy struct {
	engine   browser.Engine
	cfg      BrowserConfig
	detector *ChallengeDetector

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewBrowserStrategy wraps an engine. A nil engine makes the strategy unavailable.
func NewBrowserStrategy(engine browser.Engine, cfg BrowserConfig) *BrowserStrategy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RootChallengeTimeout <= 0 {
		cfg.RootChallengeTimeout = 60 * time.Second
	}
	if cfg.ChallengeTimeout <= 0 {
		cfg.ChallengeTimeout = 120 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	return &BrowserStrategy{
		engine:   engine,
		cfg:      cfg,
		detector: NewChallengeDetector(cfg.ChallengeMarkers),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func (s *BrowserStrategy) Name() string {
	if s.engine == nil {
		return "browser"
	}
	return "browser-" + s.engine.Name()
}

func (s *BrowserStrategy) Fetch(ctx context.Context) ([]model.ItemRecord, error) {
	if s.engine == nil || !s.engine.Available() {
		return nil, ErrUnavailable
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		items, err := s.attempt(ctx)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Printf("[WARN] browser attempt %d/%d failed: %v", attempt, s.cfg.MaxAttempts, err)
	}
	return nil, fmt.Errorf("all %d browser attempts failed: %w", s.cfg.MaxAttempts, lastErr)
}

func (s *BrowserStrategy) attempt(ctx context.Context) ([]model.ItemRecord, error) {
	sess, err := s.engine.Open(ctx, browser.Options{
		UserAgent: s.cfg.UserAgents[rand.IntN(len(s.cfg.UserAgents))],
		Headless:  s.cfg.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Printf("[WARN] close browser session: %v", cerr)
		}
	}()

	if err := sess.Navigate(ctx, s.cfg.RootURL); err != nil {
		return nil, fmt.Errorf("open root page: %w", err)
	}
	if err := s.pause(ctx, 4*time.Second, 7*time.Second); err != nil {
		return nil, err
	}
	if err := s.waitForClearance(ctx, sess, s.cfg.RootChallengeTimeout); err != nil {
		return nil, fmt.Errorf("root page: %w", err)
	}
	if err := s.browse(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return nil, err
	}

	apiURL, err := withLatestDate(s.cfg.SnapshotURL)
	if err != nil {
		return nil, err
	}
	if err := sess.Navigate(ctx, apiURL); err != nil {
		return nil, fmt.Errorf("open snapshot page: %w", err)
	}
	if err := s.pause(ctx, 5*time.Second, 8*time.Second); err != nil {
		return nil, err
	}
	if err := s.waitForClearance(ctx, sess, s.cfg.ChallengeTimeout); err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}

	src, err := sess.Source(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page source: %w", err)
	}
	raw, ok := browser.ExtractJSON(src)
	if !ok {
		return nil, errors.New("no JSON payload in rendered page")
	}
	items, err := DecodeSnapshots(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("rendered payload has no items")
	}
	return items, nil
}

// waitForClearance polls the page until no challenge marker is left, keeping
// up simulated activity in between. It gives up after timeout.
func (s *BrowserStrategy) waitForClearance(ctx context.Context, sess browser.Session, timeout time.Duration) error {
	src, err := sess.Source(ctx)
	if err != nil {
		return fmt.Errorf("read page source: %w", err)
	}
	if !s.detector.HasMarker(src) {
		return nil
	}

	log.Printf("[INFO] challenge page detected, waiting up to %v", timeout)
	deadline := s.now().Add(timeout)
	for s.now().Before(deadline) {
		if err := s.browse(ctx, sess); err != nil {
			return err
		}
		if err := s.pause(ctx, 3*time.Second, 6*time.Second); err != nil {
			return err
		}
		src, err := sess.Source(ctx)
		if err != nil {
			return fmt.Errorf("read page source: %w", err)
		}
		if !s.detector.HasMarker(src) {
			log.Println("[INFO] challenge cleared")
			return s.pause(ctx, 2*time.Second, 4*time.Second)
		}
	}
	return fmt.Errorf("%w: still present after %v", ErrChallenge, timeout)
}

// browse scrolls around and fires mouse events. Script errors are ignored;
// only cancellation stops it.
func (s *BrowserStrategy) browse(ctx context.Context, sess browser.Session) error {
	scrolls := 2 + rand.IntN(3)
	for i := 0; i < scrolls; i++ {
		_ = sess.Run(ctx, browser.ScrollScript(100+rand.IntN(701)))
		if err := s.pause(ctx, time.Second, 2*time.Second); err != nil {
			return err
		}
	}
	_ = sess.Run(ctx, browser.ScrollScript(0))
	_ = sess.Run(ctx, browser.MouseScript)
	return s.pause(ctx, time.Second, 2*time.Second)
}

func (s *BrowserStrategy) pause(ctx context.Context, lo, hi time.Duration) error {
	return s.sleep(ctx, randomBetween(lo, hi))
}

func withLatestDate(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("snapshot url: %w", err)
	}
	q := u.Query()
	q.Set("date", "latest")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
