package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ArtalePriceBot/internal/browser"
	"ArtalePriceBot/internal/collector"
	"ArtalePriceBot/internal/config"
	"ArtalePriceBot/internal/market"
	"ArtalePriceBot/internal/notifier"
	"ArtalePriceBot/internal/recorder"
	"ArtalePriceBot/internal/resolver"
	"ArtalePriceBot/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] ArtalePriceBot starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init recorder
	rec := openRecorder(ctx, cfg)
	defer rec.Close()

	// Init fetch strategies, tried in order
	strategies := []collector.Strategy{
		collector.NewSessionStrategy(collector.SessionConfig{
			RootURL:            cfg.Upstream.RootURL,
			SnapshotURL:        cfg.Upstream.SnapshotURL,
			UserAgents:         cfg.Upstream.UserAgents,
			Timeout:            cfg.Upstream.Timeout.Duration,
			MaxAttempts:        cfg.Upstream.MaxAttempts,
			BackoffStep:        cfg.Upstream.BackoffStep.Duration,
			WarmupDelayMin:     cfg.Upstream.WarmupDelayMin.Duration,
			WarmupDelayMax:     cfg.Upstream.WarmupDelayMax.Duration,
			MinRequestInterval: cfg.Upstream.MinRequestInterval.Duration,
			Proxy:              cfg.Proxy,
			ChallengeMarkers:   cfg.Upstream.ChallengeMarkers,
		}),
	}
	if cfg.Browser.Enabled {
		engine, err := browser.NewEngine(browser.EngineConfig{
			Kind:       cfg.Browser.Engine,
			ExecPath:   cfg.Browser.ExecPath,
			DriverPath: cfg.Browser.DriverPath,
			DriverPort: cfg.Browser.DriverPort,
		})
		if err != nil {
			log.Fatalf("[FATAL] init browser engine: %v", err)
		}
		strategies = append(strategies, collector.NewBrowserStrategy(engine, collector.BrowserConfig{
			RootURL:              cfg.Upstream.RootURL,
			SnapshotURL:          cfg.Upstream.SnapshotURL,
			UserAgents:           cfg.Upstream.UserAgents,
			Headless:             cfg.Browser.Headless,
			MaxAttempts:          cfg.Browser.MaxAttempts,
			RootChallengeTimeout: cfg.Browser.RootChallengeTimeout.Duration,
			ChallengeTimeout:     cfg.Browser.ChallengeTimeout.Duration,
			ChallengeMarkers:     cfg.Upstream.ChallengeMarkers,
		}))
	}
	if cfg.Fallback.Enabled {
		static, err := collector.NewStaticStrategy(cfg.Fallback.ItemsFile)
		if err != nil {
			log.Fatalf("[FATAL] load fallback items: %v", err)
		}
		strategies = append(strategies, static)
	}
	for i, s := range strategies {
		log.Printf("[INFO] strategy %d: %s", i+1, s.Name())
	}

	// Init fetcher and market service
	fetcher := collector.NewFetcher(strategies, rec, collector.FetcherConfig{
		TTL:             cfg.Cache.TTL.Duration,
		FallbackTTL:     cfg.Cache.FallbackTTL.Duration,
		FetchTimeout:    cfg.Cache.FetchTimeout.Duration,
		FailureCooldown: cfg.Cache.FailureCooldown.Duration,
	})
	svc := market.NewService(fetcher, resolver.New(cfg.Matching.MinScore, cfg.Matching.SubstringBonus), rec)

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	tn.APIBase = cfg.Telegram.APIBase
	tn.PollTimeout = cfg.Telegram.PollTimeout.Duration

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, fetcher, svc, tn, cfg.Cache.FetchTimeout.Duration)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.DigestCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, warming cache now")
		go sched.WarmNow()
	}

	log.Println("[INFO] ArtalePriceBot is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] ArtalePriceBot stopped")
}

// openRecorder prefers Postgres, then SQLite, and falls back to a no-op
// recorder when neither can be opened.
func openRecorder(ctx context.Context, cfg *config.Config) recorder.Recorder {
	if cfg.Database.PostgresURL != "" {
		pr, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresURL)
		if err == nil {
			log.Println("[INFO] recording to postgres")
			return pr
		}
		log.Printf("[WARN] init postgres recorder failed: %v", err)
	}
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Printf("[WARN] create sqlite directory: %v", err)
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err == nil {
			log.Printf("[INFO] recording to sqlite at %s", cfg.Database.SQLitePath)
			return sr
		}
		log.Printf("[WARN] init sqlite recorder failed: %v", err)
	}
	log.Println("[WARN] using noop recorder")
	return recorder.NewNoopRecorder()
}
