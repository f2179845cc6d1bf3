package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArtalePriceBot/internal/model"
)

type fakeWarmer struct {
	calls    int
	deadline bool
}

func (f *fakeWarmer) Items(ctx context.Context) []model.ItemRecord {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return []model.ItemRecord{{Name: "Maple Leaf"}}
}

type call struct {
	op    string
	arg   string
	limit int
}

type fakeMarket struct {
	calls []call
	items map[string]model.FormattedItem
}

func (m *fakeMarket) Search(_ context.Context, query string) (model.FormattedItem, bool) {
	m.calls = append(m.calls, call{op: "search", arg: query})
	it, ok := m.items[query]
	return it, ok
}

func (m *fakeMarket) Popular(_ context.Context, limit int) []model.FormattedItem {
	m.calls = append(m.calls, call{op: "popular", limit: limit})
	return []model.FormattedItem{{Name: "Red Potion", Median: "50", Volume: 900}}
}

func (m *fakeMarket) Trending(_ context.Context, limit int) []model.FormattedItem {
	m.calls = append(m.calls, call{op: "trending", limit: limit})
	return nil
}

func (m *fakeMarket) ByCategory(_ context.Context, category string, limit int) []model.FormattedItem {
	m.calls = append(m.calls, call{op: "category", arg: category, limit: limit})
	return nil
}

func (m *fakeMarket) Categories() []string {
	m.calls = append(m.calls, call{op: "categories"})
	return []string{"etc", "use"}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func newTestScheduler() (*Scheduler, *fakeWarmer, *fakeMarket, *fakeSender) {
	w := &fakeWarmer{}
	m := &fakeMarket{items: map[string]model.FormattedItem{
		"楓葉":   {Name: "楓葉", Median: "1K", Trend: model.TrendStable},
		"maple": {Name: "Maple Leaf", Median: "1K", Trend: model.TrendStable},
	}}
	n := &fakeSender{}
	return NewScheduler(context.Background(), w, m, n, time.Minute), w, m, n
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCall call
		contains string
	}{
		{"price", "/price 楓葉", call{op: "search", arg: "楓葉"}, "💰 <b>楓葉</b>"},
		{"alias with bot suffix", "/P@ArtalePriceBot maple", call{op: "search", arg: "maple"}, "Maple Leaf"},
		{"chinese alias", "價格 楓葉", call{op: "search", arg: "楓葉"}, "楓葉"},
		{"plain text search", "  maple  ", call{op: "search", arg: "maple"}, "Maple Leaf"},
		{"not found", "/price zzz", call{op: "search", arg: "zzz"}, "無法找到「zzz」"},
		{"popular default", "/popular", call{op: "popular"}, "熱門道具"},
		{"popular limit", "/popular 3", call{op: "popular", limit: 3}, "Red Potion"},
		{"popular capped", "/popular 999", call{op: "popular", limit: maxListLimit}, "熱門道具"},
		{"trending bad limit", "/trending abc", call{op: "trending"}, "目前沒有明顯的價格波動"},
		{"category", "/category 消耗", call{op: "category", arg: "消耗"}, "消耗"},
		{"category without name", "/category", call{op: "categories"}, "• etc"},
		{"categories", "/categories", call{op: "categories"}, "• use"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, m, _ := newTestScheduler()
			reply := s.HandleCommand(context.Background(), tt.text)
			require.Len(t, m.calls, 1)
			assert.Equal(t, tt.wantCall, m.calls[0])
			assert.Contains(t, reply, tt.contains)
		})
	}
}

func TestHandleCommand_NoMarketCall(t *testing.T) {
	s, _, m, _ := newTestScheduler()

	assert.Contains(t, s.HandleCommand(context.Background(), "/help"), "使用說明")
	assert.Contains(t, s.HandleCommand(context.Background(), "幫助"), "使用說明")
	assert.Contains(t, s.HandleCommand(context.Background(), "/unknown"), "使用說明")
	assert.Contains(t, s.HandleCommand(context.Background(), "/price"), "請輸入道具名稱")
	assert.Empty(t, s.HandleCommand(context.Background(), "   "))
	assert.Empty(t, m.calls)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, cmd, arg string
	}{
		{"/Price@bot  red potion ", "/price", "red potion"},
		{"/categories", "/categories", ""},
		{"red potion", "red", "potion"},
		{"", "", ""},
	}
	for _, tt := range tests {
		cmd, arg := parseCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("parseCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, arg, tt.cmd, tt.arg)
		}
	}
}

func TestWarmNow(t *testing.T) {
	s, w, _, _ := newTestScheduler()
	s.WarmNow()
	assert.Equal(t, 1, w.calls)
	assert.True(t, w.deadline, "warm-up must be bounded")
}

func TestDigestTask(t *testing.T) {
	s, _, m, n := newTestScheduler()
	s.digestTask()

	require.Len(t, n.sent, 1)
	assert.True(t, strings.HasPrefix(n.sent[0], "📊 <b>Artale 市場摘要</b>"))
	assert.Contains(t, n.sent[0], "Red Potion")
	assert.Equal(t, []call{{op: "popular", limit: digestSize}, {op: "trending", limit: digestSize}}, m.calls)
}

func TestRegisterAll(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	require.NoError(t, s.RegisterAll("0 */4 * * * *", ""))
	assert.Len(t, s.Cron.Entries(), 1)
	require.NoError(t, s.RegisterAll("0 */4 * * * *", "0 0 20 * * *"))
	assert.Len(t, s.Cron.Entries(), 3)

	s2, _, _, _ := newTestScheduler()
	assert.Error(t, s2.RegisterAll("every minute", ""))
	assert.Error(t, s2.RegisterAll("0 */4 * * * *", "0 0 25 * * *"))
}
