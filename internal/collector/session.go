package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"ArtalePriceBot/internal/model"
)

const maxBodyBytes = 32 << 20

// DefaultUserAgents is the pool a session picks its User-Agent from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// SessionConfig controls the cookie-session HTTP strategy.
type SessionConfig struct {
	RootURL            string
	SnapshotURL        string
	UserAgents         []string
	Timeout            time.Duration
	MaxAttempts        int
	BackoffStep        time.Duration
	WarmupDelayMin     time.Duration
	WarmupDelayMax     time.Duration
	MinRequestInterval time.Duration
	Proxy              string
	ChallengeMarkers   []string
}

// SessionStrategy fetches the snapshot list with a plain HTTP client that
// first visits the site root to pick up session cookies.
type SessionStrategy struct {
	cfg       SessionConfig
	transport http.RoundTripper
	limiter   *rate.Limiter
	detector  *ChallengeDetector

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSessionStrategy creates the strategy with optional proxy support.
func NewSessionStrategy(cfg SessionConfig) *SessionStrategy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if cfg.WarmupDelayMax < cfg.WarmupDelayMin {
		cfg.WarmupDelayMax = cfg.WarmupDelayMin
	}

	limit := rate.Inf
	if cfg.MinRequestInterval > 0 {
		limit = rate.Every(cfg.MinRequestInterval)
	}

	return &SessionStrategy{
		cfg:       cfg,
		transport: newTransport(cfg.Proxy),
		limiter:   rate.NewLimiter(limit, 1),
		detector:  NewChallengeDetector(cfg.ChallengeMarkers),
		sleep:     sleepCtx,
	}
}

func (s *SessionStrategy) Name() string { return "session-http" }

// Fetch runs up to MaxAttempts sessions. Challenge responses back off
// linearly (BackoffStep * attempt); other failures retry immediately.
func (s *SessionStrategy) Fetch(ctx context.Context) ([]model.ItemRecord, error) {
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
		log.Printf("[WARN] session attempt %d/%d failed: %v", attempt, s.cfg.MaxAttempts, err)

		if attempt < s.cfg.MaxAttempts && errors.Is(err, ErrChallenge) {
			backoff := s.cfg.BackoffStep * time.Duration(attempt)
			if err := s.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("all %d session attempts failed: %w", s.cfg.MaxAttempts, lastErr)
}

func (s *SessionStrategy) attempt(ctx context.Context) ([]model.ItemRecord, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Timeout: s.cfg.Timeout, Transport: s.transport, Jar: jar}
	ua := s.cfg.UserAgents[rand.IntN(len(s.cfg.UserAgents))]

	status, body, _, err := s.get(ctx, client, s.cfg.RootURL, ua, "", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, fmt.Errorf("warm-up: %w", err)
	}
	if s.detector.IsChallenge(status, body) {
		return nil, fmt.Errorf("warm-up: %w (status %d)", ErrChallenge, status)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("warm-up: status %d", status)
	}

	if err := s.sleep(ctx, randomBetween(s.cfg.WarmupDelayMin, s.cfg.WarmupDelayMax)); err != nil {
		return nil, err
	}

	apiURL, err := withLatestDate(s.cfg.SnapshotURL)
	if err != nil {
		return nil, err
	}
	status, body, contentType, err := s.get(ctx, client, apiURL, ua, s.cfg.RootURL, "application/json, text/plain, */*")
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if status == http.StatusForbidden {
		return nil, fmt.Errorf("snapshot: %w (status %d)", ErrChallenge, status)
	}
	if !looksLikeJSON(contentType, body) {
		if s.detector.HasMarker(string(body)) {
			return nil, fmt.Errorf("snapshot: %w", ErrChallenge)
		}
		return nil, fmt.Errorf("snapshot: non-JSON response (status %d, content-type %q)", status, contentType)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("snapshot: status %d", status)
	}

	items, err := DecodeSnapshots(body)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("snapshot: empty item list")
	}
	return items, nil
}

func (s *SessionStrategy) get(ctx context.Context, client *http.Client, rawURL, ua, referer, accept string) (int, []byte, string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, "", fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, resp.Header.Get("Content-Type"), nil
}

func newTransport(proxyURL string) *http.Transport {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return transport
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
