// CLAUDE:SUMMARY Row orchestrator: per-row resolve/fetch state machine with bounded retries and backoff, report aggregation.
// Package archive implements the Flatex document-archive download
// pipeline: execute-command link extraction, filename resolution, PDF
// fetching with 503 warm-up recovery, and sequential row orchestration
// with a retry/backoff policy.
//
// The package never touches the DOM itself. Everything that needs a live
// page (the row-select POST, the hidden-iframe warm-up, the session
// cookies) comes in through the CommandPoster, Warmer, and Doer
// interfaces, implemented by the browser package.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// resolveBackoff is the fixed pause between resolution attempts. Fetch
// failures back off linearly at 2s * attempt instead.
const resolveBackoff = 2 * time.Second

// RunConfig configures a Runner.
type RunConfig struct {
	// Retries is the attempt budget per row. Default: 3.
	Retries int

	// StartRow and EndRow select the 1-based inclusive row range.
	// EndRow 0 means all rows.
	StartRow int
	EndRow   int

	// Recorder receives per-attempt records. Nil disables history.
	Recorder Recorder

	// Sleep is the blocking wait between attempts. Defaults to
	// time.Sleep; tests inject a stub.
	Sleep func(time.Duration)

	Logger *slog.Logger
}

func (c *RunConfig) defaults() {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.StartRow <= 0 {
		c.StartRow = 1
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Runner processes archive rows strictly sequentially: resolve the row's
// download link, fetch it, retry with backoff on retriable failures. One
// row's failure never aborts the run.
type Runner struct {
	cfg    RunConfig
	poster CommandPoster
	dl     *Downloader
	runID  string
}

// NewRunner creates a Runner. Each Runner owns one run ID.
func NewRunner(poster CommandPoster, dl *Downloader, cfg RunConfig) *Runner {
	cfg.defaults()
	return &Runner{
		cfg:    cfg,
		poster: poster,
		dl:     dl,
		runID:  uuid.Must(uuid.NewV7()).String(),
	}
}

// RunID returns the run identifier used in the report and history rows.
func (r *Runner) RunID() string { return r.runID }

// Run validates the captured state and processes the configured row
// range. It returns an error only for pre-run fatal conditions (no rows,
// missing credentials, invalid range); per-row failures are aggregated
// in the report.
func (r *Runner) Run(ctx context.Context, state *State) (*RunReport, error) {
	if state.RowCount <= 0 {
		return nil, ErrNoRows
	}
	if state.Credentials.TokenID == "" || state.Credentials.WindowID == "" {
		return nil, ErrMissingCredentials
	}

	start := r.cfg.StartRow
	end := r.cfg.EndRow
	if end <= 0 || end > state.RowCount {
		end = state.RowCount
	}
	if start > end {
		return nil, fmt.Errorf("%w: start-row %d > end-row %d", ErrInvalidRange, start, end)
	}

	report := NewReport(r.runID, end-start+1)
	r.cfg.Logger.Info("archive: starting run",
		"run_id", r.runID, "rows", state.RowCount, "start", start, "end", end)

	for row := start - 1; row < end; row++ {
		r.processRow(ctx, state, row, end, report)
	}

	report.FinishedAt = time.Now().UTC()
	r.cfg.Logger.Info("archive: run complete",
		"downloaded", report.Downloaded, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// processRow drives one row through RESOLVING -> FETCHING -> SUCCESS or
// FAILED within the attempt budget. The link is re-resolved on every
// attempt; resolved links expire and must never be reused.
func (r *Runner) processRow(ctx context.Context, state *State, row, end int, report *RunReport) {
	rowNo := row + 1
	log := r.cfg.Logger

	var (
		lastLink   string
		resolveErr string
		failMsg    string
		succeeded  bool
		skipped    bool
		okMsg      string
	)

	for attempt := 1; attempt <= r.cfg.Retries; attempt++ {
		link, err := r.resolveLink(ctx, state, row)
		if err != nil {
			resolveErr = err.Error()
			log.Warn("archive: resolve failed",
				"row", rowNo, "attempt", attempt, "error", err)
			r.record(ctx, Attempt{Row: rowNo, Attempt: attempt, Status: "resolve_failed", Message: resolveErr})
			if attempt < r.cfg.Retries {
				r.cfg.Sleep(resolveBackoff)
			}
			continue
		}

		lastLink = link
		started := time.Now()
		out := r.dl.Save(ctx, link)
		r.record(ctx, Attempt{
			Row:      rowNo,
			Attempt:  attempt,
			URL:      link,
			Status:   attemptStatus(out),
			Message:  out.Message,
			Duration: time.Since(started),
		})

		if out.Success {
			succeeded = true
			skipped = out.Skipped
			okMsg = out.Message
			break
		}

		failMsg = out.Message
		if out.Retriable && attempt < r.cfg.Retries {
			log.Warn("archive: download failed, retrying",
				"row", rowNo, "attempt", attempt, "error", out.Message)
			r.cfg.Sleep(time.Duration(2*attempt) * time.Second)
			continue
		}
		break
	}

	switch {
	case lastLink == "":
		// The row never produced a link. Reported with url null so it is
		// distinguishable from a resolved-but-failed download.
		report.AddFailure(rowNo, "could not resolve PDF link ("+resolveErr+")", "")
		log.Error("archive: row failed", "row", rowNo, "end", end, "reason", resolveErr)
	case succeeded:
		if skipped {
			report.Skipped++
		} else {
			report.Downloaded++
		}
		log.Info("archive: row done", "row", rowNo, "end", end, "result", okMsg)
	default:
		report.AddFailure(rowNo, failMsg, lastLink)
		log.Error("archive: row failed",
			"row", rowNo, "end", end, "reason", failMsg, "url", lastLink)
	}
}

// resolveLink posts the row index and extracts the download URL from the
// returned execute command.
func (r *Runner) resolveLink(ctx context.Context, state *State, row int) (string, error) {
	payload, err := r.poster.PostRowCommand(ctx, state, row)
	if err != nil {
		return "", fmt.Errorf("row %d: command post: %w", row, err)
	}
	if !payload.OK {
		return "", fmt.Errorf("row %d: %w: HTTP %d", row, ErrCommandHTTP, payload.Status)
	}
	if payload.ParseError != "" {
		return "", fmt.Errorf("row %d: %w: %s", row, ErrCommandParse, payload.ParseError)
	}
	if payload.Commands == nil {
		return "", fmt.Errorf("row %d: %w", row, ErrCommandListMissing)
	}
	for _, cmd := range payload.Commands {
		if cmd.Command == "execute" && cmd.Script != "" {
			return ExtractLink(cmd.Script, state.PageURL)
		}
	}
	return "", fmt.Errorf("row %d: %w", row, ErrExecuteMissing)
}

func (r *Runner) record(ctx context.Context, a Attempt) {
	if r.cfg.Recorder == nil {
		return
	}
	a.RunID = r.runID
	if err := r.cfg.Recorder.RecordAttempt(ctx, a); err != nil {
		r.cfg.Logger.Warn("archive: history record failed", "error", err)
	}
}

func attemptStatus(out DownloadOutcome) string {
	switch {
	case out.Success && out.Skipped:
		return "skipped"
	case out.Success:
		return "saved"
	default:
		return "failed"
	}
}
