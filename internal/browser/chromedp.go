package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// chromeCandidates are the executable names chromedp's allocator searches for.
var chromeCandidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// ChromedpEngine drives Chrome over the DevTools protocol.
type ChromedpEngine struct {
	ExecPath string
}

func (e *ChromedpEngine) Name() string { return "chromedp" }

func (e *ChromedpEngine) Available() bool {
	if e.ExecPath != "" {
		_, err := os.Stat(e.ExecPath)
		return err == nil
	}
	for _, c := range chromeCandidates {
		if _, err := exec.LookPath(c); err == nil {
			return true
		}
	}
	return false
}

// Open launches a browser process bound to ctx. Cancelling ctx or calling
// Close terminates it.
func (e *ChromedpEngine) Open(ctx context.Context, opts Options) (Session, error) {
	w, h := opts.size()
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(w, h),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if e.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(e.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	err := chromedp.Run(taskCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(StealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		cancelTask()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromedpSession{
		ctx: taskCtx,
		cancel: func() {
			cancelTask()
			cancelAlloc()
		},
	}, nil
}

type chromedpSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, giving up early if the caller's ctx ends.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	return chromedp.Run(s.ctx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromedpSession) Source(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromedpSession) Run(ctx context.Context, script string) error {
	var ok bool
	return s.run(ctx, chromedp.Evaluate(script, &ok))
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}
