// Package browser drives a real Chrome instance for pages that refuse plain
// HTTP clients, and extracts JSON documents from what the browser rendered.
package browser

import (
	"context"
	"fmt"
)

// Options configures a browser session.
type Options struct {
	UserAgent string
	Headless  bool
	Width     int
	Height    int
}

// Engine starts browser sessions. Available reports whether the engine's
// binaries exist on this machine.
type Engine interface {
	Name() string
	Available() bool
	Open(ctx context.Context, opts Options) (Session, error)
}

// Session is one running browser tab. Close must be called on every path.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Source(ctx context.Context) (string, error)
	Run(ctx context.Context, script string) error
	Close() error
}

// EngineConfig selects and configures an Engine.
type EngineConfig struct {
	Kind       string // "chromedp" or "selenium"
	ExecPath   string // Chrome binary for chromedp
	DriverPath string // chromedriver binary for selenium
	DriverPort int
}

// NewEngine builds the engine named by cfg.Kind.
func NewEngine(cfg EngineConfig) (Engine, error) {
	switch cfg.Kind {
	case "", "chromedp":
		return &ChromedpEngine{ExecPath: cfg.ExecPath}, nil
	case "selenium":
		port := cfg.DriverPort
		if port == 0 {
			port = 4444
		}
		return &SeleniumEngine{DriverPath: cfg.DriverPath, Port: port}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Kind)
	}
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	return w, h
}
