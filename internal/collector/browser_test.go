package collector

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArtalePriceBot/internal/browser"
)

// fakeEngine serves canned page sources keyed by URL path. Each path has a
// sequence of sources; the last one repeats.
type fakeEngine struct {
	available bool
	openErr   error
	pages     map[string][]string

	mu      sync.Mutex
	opened  int
	closed  int
	scripts int
	visited []string
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Available() bool { return e.available }

func (e *fakeEngine) Open(_ context.Context, opts browser.Options) (browser.Session, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	if opts.UserAgent == "" {
		return nil, errors.New("missing user agent")
	}
	e.mu.Lock()
	e.opened++
	e.mu.Unlock()
	return &fakeSession{engine: e, reads: map[string]int{}}, nil
}

type fakeSession struct {
	engine *fakeEngine
	path   string
	reads  map[string]int
}

func (s *fakeSession) Navigate(_ context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	s.path = u.Path
	s.engine.mu.Lock()
	s.engine.visited = append(s.engine.visited, raw)
	s.engine.mu.Unlock()
	return nil
}

func (s *fakeSession) Source(_ context.Context) (string, error) {
	seq := s.engine.pages[s.path]
	if len(seq) == 0 {
		return "<html></html>", nil
	}
	n := s.reads[s.path]
	s.reads[s.path] = n + 1
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return seq[n], nil
}

func (s *fakeSession) Run(_ context.Context, _ string) error {
	s.engine.mu.Lock()
	s.engine.scripts++
	s.engine.mu.Unlock()
	return nil
}

func (s *fakeSession) Close() error {
	s.engine.mu.Lock()
	s.engine.closed++
	s.engine.mu.Unlock()
	return nil
}

// fakeClock advances only when the strategy sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

const renderedJSON = `<html><head></head><body><pre style="word-wrap: break-word;">{"snapshots":[{"item_name":"Maple Leaf","item_type":"etc","median":1000,"volume":7}]}</pre></body></html>`

func newTestBrowserStrategy(e browser.Engine, timeout time.Duration) (*BrowserStrategy, *fakeClock) {
	s := NewBrowserStrategy(e, BrowserConfig{
		RootURL:              "https://artale-market.org/",
		SnapshotURL:          "https://artale-market.org/api/item-snapshots",
		Headless:             true,
		RootChallengeTimeout: timeout,
		ChallengeTimeout:     timeout,
	})
	clock := &fakeClock{now: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}
	s.sleep = clock.sleep
	s.now = clock.Now
	return s, clock
}

func TestBrowserStrategy_Unavailable(t *testing.T) {
	e := &fakeEngine{available: false}
	s, _ := newTestBrowserStrategy(e, time.Minute)

	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, e.opened)
	assert.Equal(t, "browser-fake", s.Name())

	nilEngine, _ := newTestBrowserStrategy(nil, time.Minute)
	_, err = nilEngine.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "browser", nilEngine.Name())
}

func TestBrowserStrategy_Success(t *testing.T) {
	e := &fakeEngine{available: true, pages: map[string][]string{
		"/":                   {"<html><body>market</body></html>"},
		"/api/item-snapshots": {renderedJSON},
	}}
	s, _ := newTestBrowserStrategy(e, time.Minute)

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Maple Leaf", items[0].Name)
	assert.Equal(t, int64(7), items[0].Volume)

	assert.Equal(t, 1, e.opened)
	assert.Equal(t, 1, e.closed)
	require.Len(t, e.visited, 2)
	assert.Equal(t, "https://artale-market.org/api/item-snapshots?date=latest", e.visited[1])
	assert.Greater(t, e.scripts, 0, "browsing should run scroll and mouse scripts")
}

func TestBrowserStrategy_WaitsOutChallenge(t *testing.T) {
	e := &fakeEngine{available: true, pages: map[string][]string{
		"/": {"<html>market</html>"},
		"/api/item-snapshots": {
			"<html><title>Just a moment...</title></html>",
			"<html>Checking your browser before accessing</html>",
			renderedJSON,
		},
	}}
	s, clock := newTestBrowserStrategy(e, 2*time.Minute)
	start := clock.Now()

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, e.closed)
	assert.Less(t, clock.Now().Sub(start), 3*time.Minute)
}

func TestBrowserStrategy_ChallengeTimeout(t *testing.T) {
	e := &fakeEngine{available: true, pages: map[string][]string{
		"/":                   {"<html>market</html>"},
		"/api/item-snapshots": {"<html>請稍候</html>"},
	}}
	s, _ := newTestBrowserStrategy(e, 30*time.Second)

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallenge)
	assert.Contains(t, err.Error(), "snapshot page")
	assert.Equal(t, 1, e.closed, "session must be closed after a failed attempt")
}

func TestBrowserStrategy_NoJSON(t *testing.T) {
	e := &fakeEngine{available: true, pages: map[string][]string{
		"/api/item-snapshots": {"<html><body>Not found</body></html>"},
	}}
	s, _ := newTestBrowserStrategy(e, time.Minute)

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON payload")
	assert.Equal(t, 1, e.closed)
}

func TestBrowserStrategy_OpenError(t *testing.T) {
	e := &fakeEngine{available: true, openErr: errors.New("chrome crashed")}
	s, _ := newTestBrowserStrategy(e, time.Minute)

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome crashed")
	assert.Equal(t, 0, e.closed)
}

func TestBrowserStrategy_CancelReleasesSession(t *testing.T) {
	e := &fakeEngine{available: true, pages: map[string][]string{
		"/api/item-snapshots": {renderedJSON},
	}}
	s, _ := newTestBrowserStrategy(e, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, e.opened, e.closed)
}
