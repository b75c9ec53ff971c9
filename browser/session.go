// CLAUDE:SUMMARY Chrome session over a persistent profile: launch, stealth page, navigation, interactive readiness.
// Package browser drives the logged-in Flatex archive page through a
// real Chrome session via Rod. It is the external capability boundary
// of the pipeline: the archive package depends on it only through small
// interfaces and never touches the DOM itself.
//
// The browser profile is persistent (user-data-dir), so the login
// session survives between runs.
package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Config configures a Session.
type Config struct {
	// ProfileDir is the persistent Chromium profile directory.
	ProfileDir string

	// Headless runs Chrome without a window. Interactive login usually
	// needs a headful first run.
	Headless bool

	// NavTimeout bounds navigation and page load. Default: 60s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one long-lived browser session holding the archive tab.
// It is shared across all rows and attempts; there is no row-local
// isolation.
type Session struct {
	cfg     Config
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	log     *slog.Logger
}

// NewSession creates a Session. Call Start to launch Chrome.
func NewSession(cfg Config) *Session {
	cfg.defaults()
	return &Session{cfg: cfg, log: cfg.Logger}
}

// Start launches Chrome with the persistent profile, opens a stealth
// page, and navigates to the archive URL.
func (s *Session) Start(ctx context.Context, archiveURL string) error {
	l := launcher.New().
		Headless(s.cfg.Headless).
		UserDataDir(s.cfg.ProfileDir).
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("browser: launch: %w", err)
	}
	s.lnch = l
	s.log.Info("browser: launched chrome", "headless", s.cfg.Headless, "profile", s.cfg.ProfileDir)

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("browser: create page: %w", err)
	}
	s.page = page

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	s.log.Info("browser: opening archive", "url", archiveURL)
	if err := page.Context(navCtx).Navigate(archiveURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", archiveURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.log.Warn("browser: wait load timeout", "url", archiveURL, "error", err)
	}
	return nil
}

// WaitReady prints the preparation checklist and blocks until the user
// confirms the archive page is logged in, filtered, and fully scrolled.
func (s *Session) WaitReady(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Prepare the archive page:")
	fmt.Fprintln(out, "1) Log in")
	fmt.Fprintln(out, "2) Open the document archive")
	fmt.Fprintln(out, "3) Apply filters")
	fmt.Fprintln(out, "4) Scroll until all rows are visible")
	fmt.Fprint(out, "Press ENTER to start batch download... ")

	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil {
		return fmt.Errorf("browser: wait ready: %w", err)
	}
	return nil
}

// Close shuts down the page, the browser, and the launcher.
func (s *Session) Close() error {
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return nil
}
