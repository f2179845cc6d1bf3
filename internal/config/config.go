package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from YAML as "30s" or as bare seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if secs, err := strconv.Atoi(s); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Duration = v
	return nil
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken    string   `yaml:"bot_token"`
		ChatID      string   `yaml:"chat_id"`
		APIBase     string   `yaml:"api_base"`
		PollTimeout Duration `yaml:"poll_timeout"`
	} `yaml:"telegram"`
	Upstream struct {
		RootURL            string   `yaml:"root_url"`
		SnapshotURL        string   `yaml:"snapshot_url"`
		UserAgents         []string `yaml:"user_agents"`
		Timeout            Duration `yaml:"timeout"`
		MaxAttempts        int      `yaml:"max_attempts"`
		BackoffStep        Duration `yaml:"backoff_step"`
		WarmupDelayMin     Duration `yaml:"warmup_delay_min"`
		WarmupDelayMax     Duration `yaml:"warmup_delay_max"`
		MinRequestInterval Duration `yaml:"min_request_interval"`
		ChallengeMarkers   []string `yaml:"challenge_markers"`
	} `yaml:"upstream"`
	Browser struct {
		Enabled              bool     `yaml:"enabled"`
		Engine               string   `yaml:"engine"`
		ExecPath             string   `yaml:"exec_path"`
		DriverPath           string   `yaml:"driver_path"`
		DriverPort           int      `yaml:"driver_port"`
		Headless             bool     `yaml:"headless"`
		MaxAttempts          int      `yaml:"max_attempts"`
		RootChallengeTimeout Duration `yaml:"root_challenge_timeout"`
		ChallengeTimeout     Duration `yaml:"challenge_timeout"`
	} `yaml:"browser"`
	Fallback struct {
		Enabled   bool   `yaml:"enabled"`
		ItemsFile string `yaml:"items_file"`
	} `yaml:"fallback"`
	Cache struct {
		TTL             Duration `yaml:"ttl"`
		FallbackTTL     Duration `yaml:"fallback_ttl"`
		FailureCooldown Duration `yaml:"failure_cooldown"`
		FetchTimeout    Duration `yaml:"fetch_timeout"`
	} `yaml:"cache"`
	Matching struct {
		MinScore       int `yaml:"min_score"`
		SubstringBonus int `yaml:"substring_bonus"`
	} `yaml:"matching"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		DigestCron  string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// envOverrides lists the environment variables that win over the YAML file.
// Unset variables leave the YAML value alone.
type envOverrides struct {
	BotToken       string         `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID         string         `envconfig:"TELEGRAM_CHAT_ID"`
	RootURL        string         `envconfig:"UPSTREAM_ROOT_URL"`
	SnapshotURL    string         `envconfig:"UPSTREAM_SNAPSHOT_URL"`
	Proxy          string         `envconfig:"HTTPS_PROXY"`
	BrowserEngine  string         `envconfig:"BROWSER_ENGINE"`
	BrowserEnabled *bool          `envconfig:"BROWSER_ENABLED"`
	CacheTTL       *time.Duration `envconfig:"CACHE_TTL"`
	RefreshCron    string         `envconfig:"CRON_REFRESH"`
	DigestCron     string         `envconfig:"CRON_DIGEST"`
	SQLitePath     string         `envconfig:"SQLITE_PATH"`
	DatabaseURL    string         `envconfig:"DATABASE_URL"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("[WARN] .env found but could not be loaded: %v", err)
		}
	}

	cfg := &Config{}
	// Booleans that default to true must be set before YAML is applied.
	cfg.Browser.Enabled = true
	cfg.Browser.Headless = true
	cfg.Fallback.Enabled = true
	cfg.Matching.SubstringBonus = -1

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(&env)
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv(env *envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.BotToken, env.BotToken)
	set(&c.Telegram.ChatID, env.ChatID)
	set(&c.Upstream.RootURL, env.RootURL)
	set(&c.Upstream.SnapshotURL, env.SnapshotURL)
	set(&c.Proxy, env.Proxy)
	set(&c.Browser.Engine, env.BrowserEngine)
	set(&c.Schedule.RefreshCron, env.RefreshCron)
	set(&c.Schedule.DigestCron, env.DigestCron)
	set(&c.Database.SQLitePath, env.SQLitePath)
	set(&c.Database.PostgresURL, env.DatabaseURL)
	if env.BrowserEnabled != nil {
		c.Browser.Enabled = *env.BrowserEnabled
	}
	if env.CacheTTL != nil {
		c.Cache.TTL.Duration = *env.CacheTTL
	}
}

func (c *Config) applyDefaults() {
	defDuration := func(d *Duration, v time.Duration) {
		if d.Duration == 0 {
			d.Duration = v
		}
	}

	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	defDuration(&c.Telegram.PollTimeout, 30*time.Second)

	if c.Upstream.RootURL == "" {
		c.Upstream.RootURL = "https://artale-market.org"
	}
	if c.Upstream.SnapshotURL == "" {
		c.Upstream.SnapshotURL = "https://artale-market.org/api/item-snapshots"
	}
	defDuration(&c.Upstream.Timeout, 30*time.Second)
	if c.Upstream.MaxAttempts == 0 {
		c.Upstream.MaxAttempts = 3
	}
	defDuration(&c.Upstream.BackoffStep, 5*time.Second)
	defDuration(&c.Upstream.WarmupDelayMin, 2*time.Second)
	defDuration(&c.Upstream.WarmupDelayMax, 5*time.Second)
	defDuration(&c.Upstream.MinRequestInterval, time.Second)

	if c.Browser.Engine == "" {
		c.Browser.Engine = "chromedp"
	}
	if c.Browser.DriverPort == 0 {
		c.Browser.DriverPort = 4444
	}
	if c.Browser.MaxAttempts == 0 {
		c.Browser.MaxAttempts = 1
	}
	defDuration(&c.Browser.RootChallengeTimeout, 60*time.Second)
	defDuration(&c.Browser.ChallengeTimeout, 120*time.Second)

	defDuration(&c.Cache.TTL, 300*time.Second)
	defDuration(&c.Cache.FallbackTTL, 60*time.Second)
	defDuration(&c.Cache.FailureCooldown, 30*time.Second)
	defDuration(&c.Cache.FetchTimeout, 5*time.Minute)

	if c.Matching.MinScore == 0 {
		c.Matching.MinScore = 60
	}
	if c.Matching.SubstringBonus < 0 {
		c.Matching.SubstringBonus = 20
	}

	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */4 * * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/artale_price_bot.db"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required")
	}
	if err := absoluteURL("upstream.root_url", c.Upstream.RootURL); err != nil {
		return err
	}
	if err := absoluteURL("upstream.snapshot_url", c.Upstream.SnapshotURL); err != nil {
		return err
	}
	if c.Upstream.MaxAttempts < 1 {
		return errors.New("upstream.max_attempts must be positive")
	}
	if c.Upstream.WarmupDelayMin.Duration > c.Upstream.WarmupDelayMax.Duration {
		return errors.New("upstream.warmup_delay_min must not exceed warmup_delay_max")
	}
	if c.Browser.Engine != "chromedp" && c.Browser.Engine != "selenium" {
		return fmt.Errorf("browser.engine must be chromedp or selenium, got %q", c.Browser.Engine)
	}
	if c.Browser.MaxAttempts < 1 || c.Browser.MaxAttempts > c.Upstream.MaxAttempts {
		return fmt.Errorf("browser.max_attempts must be between 1 and upstream.max_attempts (%d)", c.Upstream.MaxAttempts)
	}
	if c.Cache.TTL.Duration < 0 || c.Cache.FallbackTTL.Duration < 0 {
		return errors.New("cache ttl values must be positive")
	}
	if c.Matching.MinScore < 1 || c.Matching.MinScore > 120 {
		return errors.New("matching.min_score must be between 1 and 120")
	}
	return nil
}

func absoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
