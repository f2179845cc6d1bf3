package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotJSON = `{"snapshots":[
	{"item_name":"Maple Leaf","item_type":"etc","low":900,"median":1000,"high":1200,"volume":50,"recent_change_percent":3.5,"snapshot_date":"2025-07-01"},
	{"item_name":"Red Potion","item_type":"use","low":40,"median":50,"high":60,"volume":900,"recent_change_percent":-1,"snapshot_date":"2025-07-01"}
]}`

// sleepRecorder replaces real waits and remembers every non-zero duration.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		r.mu.Lock()
		r.waits = append(r.waits, d)
		r.mu.Unlock()
	}
	return nil
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

// upstream is a fake site: the root sets a session cookie, the snapshot
// endpoint replies through snapshot for each request in turn.
type upstream struct {
	rootHits     atomic.Int32
	snapshotHits atomic.Int32
	snapshot     func(n int, w http.ResponseWriter, r *http.Request)
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		u.rootHits.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>market</body></html>"))
	})
	mux.HandleFunc("/api/item-snapshots", func(w http.ResponseWriter, r *http.Request) {
		n := int(u.snapshotHits.Add(1))
		u.snapshot(n, w, r)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestSession(t *testing.T, u *upstream, sleeps *sleepRecorder) *SessionStrategy {
	t.Helper()
	srv := httptest.NewServer(u.handler())
	t.Cleanup(srv.Close)

	s := NewSessionStrategy(SessionConfig{
		RootURL:        srv.URL + "/",
		SnapshotURL:    srv.URL + "/api/item-snapshots",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		BackoffStep:    5 * time.Second,
		WarmupDelayMin: 2 * time.Second,
		WarmupDelayMax: 2 * time.Second,
	})
	s.sleep = sleeps.sleep
	return s
}

func TestSessionStrategy_Success(t *testing.T) {
	u := &upstream{snapshot: func(_ int, w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("date") != "latest" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") == "" || !strings.Contains(r.Header.Get("Accept-Language"), "zh-TW") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, snapshotJSON)
	}}
	sleeps := &sleepRecorder{}
	s := newTestSession(t, u, sleeps)

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Maple Leaf", items[0].Name)
	assert.Equal(t, int64(1000), items[0].Median)
	assert.Equal(t, "use", items[1].Category)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps.all())
	assert.Equal(t, int32(1), u.rootHits.Load())
}

func TestSessionStrategy_ChallengeThenSuccess(t *testing.T) {
	u := &upstream{snapshot: func(n int, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		writeJSON(w, snapshotJSON)
	}}
	sleeps := &sleepRecorder{}
	s := newTestSession(t, u, sleeps)

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	// warm-up, backoff after attempt 1, warm-up
	assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second, 2 * time.Second}, sleeps.all())
	assert.Equal(t, int32(2), u.rootHits.Load())
}

func TestSessionStrategy_MarkerChallengeExhausts(t *testing.T) {
	u := &upstream{snapshot: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><title>Just a moment...</title></html>"))
	}}
	sleeps := &sleepRecorder{}
	s := newTestSession(t, u, sleeps)
	s.cfg.WarmupDelayMin, s.cfg.WarmupDelayMax = 0, 0

	items, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, items)
	assert.True(t, errors.Is(err, ErrChallenge))
	assert.Contains(t, err.Error(), "all 3 session attempts failed")
	assert.Equal(t, int32(3), u.snapshotHits.Load())
	// no backoff after the final attempt
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeps.all())
}

func TestSessionStrategy_NonJSONRetriesWithoutBackoff(t *testing.T) {
	u := &upstream{snapshot: func(n int, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>maintenance</html>"))
			return
		}
		writeJSON(w, snapshotJSON)
	}}
	sleeps := &sleepRecorder{}
	s := newTestSession(t, u, sleeps)
	s.cfg.WarmupDelayMin, s.cfg.WarmupDelayMax = 0, 0

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Empty(t, sleeps.all())
}

func TestSessionStrategy_EmptyListIsFailure(t *testing.T) {
	u := &upstream{snapshot: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"snapshots":[]}`)
	}}
	s := newTestSession(t, u, &sleepRecorder{})

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty item list")
	assert.False(t, errors.Is(err, ErrChallenge))
}

func TestSessionStrategy_ServerErrorStatus(t *testing.T) {
	u := &upstream{snapshot: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}}
	s := newTestSession(t, u, &sleepRecorder{})

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSessionStrategy_CancelledContext(t *testing.T) {
	u := &upstream{snapshot: func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, snapshotJSON)
	}}
	s := newTestSession(t, u, &sleepRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := s.Fetch(ctx)
	assert.Nil(t, items)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), u.snapshotHits.Load())
}

func TestChallengeDetector(t *testing.T) {
	d := NewChallengeDetector(nil)

	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"forbidden status", http.StatusForbidden, "", true},
		{"english marker any case", 200, "<title>Just A Moment...</title>", true},
		{"cloudflare ray id", 503, "Ray ID: 8a1b", true},
		{"chinese marker", 200, "<p>正在檢查您的瀏覽器</p>", true},
		{"plain page", 200, "<html>market</html>", false},
		{"json payload", 200, `{"snapshots":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsChallenge(tt.status, []byte(tt.body)))
		})
	}

	custom := NewChallengeDetector([]string{"  Hold On  ", ""})
	assert.True(t, custom.HasMarker("please HOLD ON a second"))
	assert.False(t, custom.HasMarker("just a moment"))
}

func TestLooksLikeJSON(t *testing.T) {
	assert.True(t, looksLikeJSON("application/json; charset=utf-8", []byte("oops")))
	assert.True(t, looksLikeJSON("text/plain", []byte("  [1]")))
	assert.True(t, looksLikeJSON("", []byte(`{"a":1}`)))
	assert.False(t, looksLikeJSON("text/html", []byte("<html>")))
	assert.False(t, looksLikeJSON("text/html", nil))
}
