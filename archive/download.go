// CLAUDE:SUMMARY Download fetcher: allow-listed GET with 503 warm-up recovery, PDF checks, collision-safe persistence.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var pdfMagic = []byte("%PDF")

// defaultAllowedHosts is the hard security boundary: extracted links may
// only ever be fetched from the archive's own hosts.
var defaultAllowedHosts = []string{"konto.flatex.at", "konto.flatex.de"}

// retriableStatuses are the HTTP statuses worth another attempt after a
// completed (non-503-recovered) fetch.
var retriableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// DownloadConfig configures a Downloader.
type DownloadConfig struct {
	// OutputDir receives the saved PDFs.
	OutputDir string

	// Timeout bounds each individual GET. Default: 30s.
	Timeout time.Duration

	// SkipExisting short-circuits rows whose optimistic target filename
	// already exists, without a network call.
	SkipExisting bool

	// VerifyPDF runs pdfcpu structural validation on the fetched bytes in
	// addition to the magic-header check. Failure is non-retriable.
	VerifyPDF bool

	// AllowedHosts overrides the archive host allow-list. Default:
	// konto.flatex.at, konto.flatex.de.
	AllowedHosts []string

	// MaxBytes caps the response body read. Default: 50MB.
	MaxBytes int64

	Logger *slog.Logger
}

func (c *DownloadConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 << 20
	}
	if len(c.AllowedHosts) == 0 {
		c.AllowedHosts = defaultAllowedHosts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Downloader fetches resolved links and persists them as PDF files. The
// HTTP client is expected to carry the browser session cookies; the
// Warmer reaches back into the page for the 503 hidden-iframe recovery.
type Downloader struct {
	cfg     DownloadConfig
	client  Doer
	warm    Warmer
	allowed map[string]bool
}

// NewDownloader creates a Downloader.
func NewDownloader(client Doer, warm Warmer, cfg DownloadConfig) *Downloader {
	cfg.defaults()
	allowed := make(map[string]bool, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		allowed[strings.ToLower(h)] = true
	}
	return &Downloader{cfg: cfg, client: client, warm: warm, allowed: allowed}
}

// Save fetches one resolved link and writes it to the output directory.
// All failure modes are reported in the outcome, never panicked or
// propagated; Retriable tells the orchestrator whether another attempt
// can help.
func (d *Downloader) Save(ctx context.Context, link string) DownloadOutcome {
	u, err := url.Parse(link)
	if err != nil || !d.allowed[strings.ToLower(u.Hostname())] {
		return DownloadOutcome{Message: "blocked non-Flatex download host"}
	}

	stem := StemFromURL(link)
	if d.cfg.SkipExisting {
		optimistic := filepath.Join(d.cfg.OutputDir, FilenameFromURL(link, stem))
		if fileExists(optimistic) {
			return DownloadOutcome{
				Success: true,
				Skipped: true,
				Message: "skipped existing " + filepath.Base(optimistic),
			}
		}
	}

	status, header, body, err := d.fetch(ctx, link)
	if err != nil {
		return DownloadOutcome{Message: fmt.Sprintf("request failed: %v", err), Retriable: true}
	}

	if status == http.StatusServiceUnavailable {
		d.cfg.Logger.Info("archive: 503, warming up", "url", link)
		if err := d.warm.Warmup(ctx, link); err != nil {
			return DownloadOutcome{Message: fmt.Sprintf("503 warm-up failed: %v", err), Retriable: true}
		}
		status, header, body, err = d.fetch(ctx, link)
		if err != nil {
			return DownloadOutcome{Message: fmt.Sprintf("503 warm-up failed: %v", err), Retriable: true}
		}
	}

	if status < 200 || status >= 300 {
		return DownloadOutcome{Message: fmt.Sprintf("HTTP %d", status), Retriable: retriableStatuses[status]}
	}

	ctype := strings.ToLower(header.Get("Content-Type"))
	if !strings.Contains(ctype, "pdf") && !bytes.HasPrefix(body, pdfMagic) {
		if ctype == "" {
			ctype = "unknown"
		}
		return DownloadOutcome{Message: fmt.Sprintf("not a PDF (content-type=%s)", ctype)}
	}

	if d.cfg.VerifyPDF {
		pages, err := verifyPDF(body)
		if err != nil {
			return DownloadOutcome{Message: fmt.Sprintf("corrupt PDF: %v", err)}
		}
		d.cfg.Logger.Debug("archive: pdf verified", "url", link, "pages", pages)
	}

	name := FilenameFrom(header, link, stem)
	target := filepath.Join(d.cfg.OutputDir, name)
	if d.cfg.SkipExisting && fileExists(target) {
		return DownloadOutcome{Success: true, Skipped: true, Message: "skipped existing " + name}
	}

	target = nextFreePath(target)
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return DownloadOutcome{Message: fmt.Sprintf("write failed: %v", err)}
	}

	return DownloadOutcome{
		Success: true,
		Message: fmt.Sprintf("saved %s (%.1f KB)", filepath.Base(target), float64(len(body))/1024),
	}
}

// fetch performs one GET, bounded by the configured timeout and body cap.
func (d *Downloader) fetch(ctx context.Context, link string) (int, http.Header, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, link, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// nextFreePath appends _2, _3, ... before the extension until the path
// is unoccupied. Existing files are never overwritten.
func nextFreePath(target string) string {
	if !fileExists(target) {
		return target
	}
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	for i := 2; ; i++ {
		alt := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !fileExists(alt) {
			return alt
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
