package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// SeleniumEngine drives Chrome through a local chromedriver process.
type SeleniumEngine struct {
	DriverPath string
	Port       int
}

func (e *SeleniumEngine) Name() string { return "selenium" }

func (e *SeleniumEngine) Available() bool {
	_, err := e.driverPath()
	return err == nil
}

func (e *SeleniumEngine) driverPath() (string, error) {
	if e.DriverPath != "" {
		if _, err := os.Stat(e.DriverPath); err != nil {
			return "", err
		}
		return e.DriverPath, nil
	}
	return exec.LookPath("chromedriver")
}

// Open starts chromedriver and a Chrome session behind it.
func (e *SeleniumEngine) Open(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := e.driverPath()
	if err != nil {
		return nil, fmt.Errorf("chromedriver not found: %w", err)
	}

	service, err := selenium.NewChromeDriverService(path, e.Port)
	if err != nil {
		return nil, fmt.Errorf("start chromedriver: %w", err)
	}

	w, h := opts.size()
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--disable-extensions",
		"--disable-blink-features=AutomationControlled",
		fmt.Sprintf("--window-size=%d,%d", w, h),
		"--log-level=3",
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.UserAgent != "" {
		args = append(args, "--user-agent="+opts.UserAgent)
	}
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args:            args,
		ExcludeSwitches: []string{"enable-automation"},
	})

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://127.0.0.1:%d/wd/hub", e.Port))
	if err != nil {
		service.Stop()
		return nil, fmt.Errorf("open webdriver session: %w", err)
	}
	return &seleniumSession{wd: wd, service: service}, nil
}

type seleniumSession struct {
	wd      selenium.WebDriver
	service *selenium.Service
}

// WebDriver calls cannot be interrupted; ctx is checked between them.

func (s *seleniumSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.wd.Get(url); err != nil {
		return err
	}
	// No pre-load hook over the WebDriver wire protocol, so mask after load.
	_, _ = s.wd.ExecuteScript(stealthEval, nil)
	return nil
}

func (s *seleniumSession) Source(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.wd.PageSource()
}

func (s *seleniumSession) Run(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.wd.ExecuteScript("return "+script, nil)
	return err
}

func (s *seleniumSession) Close() error {
	return errors.Join(s.wd.Quit(), s.service.Stop())
}
