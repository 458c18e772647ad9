package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session owns one playwright browser reused across all interactive fetches in
// the process. It is created lazily on first lease and released by Close.
// Navigation corrupts concurrently-driven page state, so every lease holds the
// session mutex until released: one navigation sequence in flight at a time.
type Session struct {
	opts   *Options
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"DNT":             "1",
		},
	}
}

func NewSession(opts *Options) *Session {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Session{
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}
}

// start launches playwright and a browser context. Caller holds s.mu.
func (s *Session) start() error {
	if s.started {
		return nil
	}
	if s.closed {
		return fmt.Errorf("browser session already closed")
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &s.opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1920,1080",
			"--user-agent=" + s.opts.UserAgent,
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	ctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &s.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &s.opts.Locale,
		Viewport: &playwright.Size{
			Width:  s.opts.ViewportWidth,
			Height: s.opts.ViewportHeight,
		},
		ExtraHttpHeaders: s.opts.ExtraHeaders,
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	s.pw = pw
	s.browser = b
	s.context = ctx
	s.started = true
	s.logger.Info("browser session started", "headless", s.opts.Headless)
	return nil
}

// Lease acquires exclusive use of the session and returns a fresh page. The
// release func closes the page and hands the session to the next waiter. The
// context only bounds the wait for the lease, not subsequent page use;
// per-operation timeouts are set on the page itself.
func (s *Session) Lease(ctx context.Context) (playwright.Page, func(), error) {
	acquired := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// the locking goroutine will still take the mutex; undo it
		go func() {
			<-acquired
			s.mu.Unlock()
		}()
		return nil, nil, ctx.Err()
	}

	if err := s.start(); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}

	page, err := s.context.NewPage()
	if err != nil {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(s.opts.Timeout.Milliseconds()))

	release := func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("failed to close page", "error", err)
		}
		s.mu.Unlock()
	}
	return page, release, nil
}

// Close releases the underlying automation process. It must be called once at
// process exit; leases requested afterwards fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.started {
		return nil
	}
	s.started = false

	var errs []error
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	s.logger.Info("browser session closed")
	return nil
}
