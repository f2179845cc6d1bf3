package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"ArtalePriceBot/internal/model"
	"ArtalePriceBot/internal/notifier"

	"github.com/robfig/cron/v3"
)

const (
	digestSize   = 5
	maxListLimit = 50
)

// Warmer refreshes the item catalog when it is stale.
type Warmer interface {
	Items(ctx context.Context) []model.ItemRecord
}

// Market answers price queries.
type Market interface {
	Search(ctx context.Context, query string) (model.FormattedItem, bool)
	Popular(ctx context.Context, limit int) []model.FormattedItem
	Trending(ctx context.Context, limit int) []model.FormattedItem
	ByCategory(ctx context.Context, category string, limit int) []model.FormattedItem
	Categories() []string
}

// Sender pushes a message to the configured chat.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages cron tasks and dispatches chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Fetcher  Warmer
	Market   Market
	Notifier Sender
	Ctx      context.Context

	// RefreshTimeout bounds one scheduled catalog refresh.
	RefreshTimeout time.Duration
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, f Warmer, m Market, n Sender, refreshTimeout time.Duration) *Scheduler {
	if refreshTimeout <= 0 {
		refreshTimeout = 5 * time.Minute
	}
	return &Scheduler{
		Cron:           cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		Fetcher:        f,
		Market:         m,
		Notifier:       n,
		Ctx:            ctx,
		RefreshTimeout: refreshTimeout,
	}
}

// RegisterAll registers the cache warm-up task and, when digestCron is not
// empty, the market digest.
func (s *Scheduler) RegisterAll(refreshCron, digestCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if digestCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// WarmNow runs the refresh task immediately.
func (s *Scheduler) WarmNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	ctx, cancel := context.WithTimeout(s.Ctx, s.RefreshTimeout)
	defer cancel()

	start := time.Now()
	items := s.Fetcher.Items(ctx)
	log.Printf("[INFO] cache warm-up: %d items available (%s)", len(items), time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) digestTask() {
	log.Println("[INFO] running market digest")
	ctx, cancel := context.WithTimeout(s.Ctx, s.RefreshTimeout)
	defer cancel()

	popular := s.Market.Popular(ctx, digestSize)
	trending := s.Market.Trending(ctx, digestSize)
	if len(popular) == 0 && len(trending) == 0 {
		log.Println("[WARN] market digest skipped: no data")
		return
	}
	s.trySend(notifier.FormatDigest(popular, trending, time.Now()))
}

// HandleCommand processes a chat message and returns the reply. Text that
// is not a command is treated as an item search.
func (s *Scheduler) HandleCommand(ctx context.Context, text string) string {
	cmd, arg := parseCommand(text)
	switch cmd {
	case "":
		return ""
	case "/price", "/p", "價格":
		if arg == "" {
			return "請輸入道具名稱，例如：/price 楓葉"
		}
		return s.search(ctx, arg)
	case "/popular":
		return notifier.FormatPopular(s.Market.Popular(ctx, parseLimit(arg)))
	case "/trending":
		return notifier.FormatTrending(s.Market.Trending(ctx, parseLimit(arg)))
	case "/category":
		if arg == "" {
			return notifier.FormatCategories(s.Market.Categories())
		}
		return notifier.FormatCategory(arg, s.Market.ByCategory(ctx, arg, 0))
	case "/categories":
		return notifier.FormatCategories(s.Market.Categories())
	case "/help", "/start", "幫助":
		return notifier.FormatHelp()
	default:
		if strings.HasPrefix(cmd, "/") {
			return notifier.FormatHelp()
		}
		return s.search(ctx, strings.TrimSpace(text))
	}
}

func (s *Scheduler) search(ctx context.Context, query string) string {
	item, ok := s.Market.Search(ctx, query)
	if !ok {
		return notifier.FormatNotFound(query)
	}
	return notifier.FormatItem(item)
}

// parseCommand splits "/cmd@bot arg..." into a lower-cased command and its
// argument. Plain text comes back as its first word.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if strings.HasPrefix(cmd, "/") {
		if i := strings.Index(cmd, "@"); i > 0 {
			cmd = cmd[:i]
		}
		cmd = strings.ToLower(cmd)
	}
	return cmd, strings.TrimSpace(arg)
}

func parseLimit(arg string) int {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n <= 0 {
		return 0
	}
	return min(n, maxListLimit)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
