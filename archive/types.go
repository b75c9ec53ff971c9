// CLAUDE:SUMMARY Shared types for the archive pipeline: page state, command payloads, download outcomes, attempt records.
package archive

import (
	"context"
	"net/http"
	"time"
)

// Credentials are the two opaque tokens the site requires on every AJAX
// request. Read from the page context once per run, passed through as-is.
type Credentials struct {
	TokenID  string `json:"tokenId"`
	WindowID string `json:"windowId"`
}

// State is the archive page state captured once per run, after the user
// confirms the page is ready. Read-only for the rest of the run and
// shared across all row operations.
type State struct {
	PageURL     string            `json:"pageUrl"`
	RowCount    int               `json:"rowCount"`
	Credentials Credentials       `json:"credentials"`
	Form        map[string]string `json:"form"`
}

// Command is one entry of the AJAX command response. The execute command
// carries the script whose arguments embed the real download URL.
type Command struct {
	Command string `json:"command"`
	Script  string `json:"script"`
}

// CommandPayload is the result of posting a row index to the archive
// form action. One payload per resolution attempt; never cached.
type CommandPayload struct {
	OK         bool      `json:"ok"`
	Status     int       `json:"status"`
	Commands   []Command `json:"commands"`
	ParseError string    `json:"parseError"`
}

// DownloadOutcome is the per-attempt result of Downloader.Save. Skipped
// is reported separately from a fresh download so the run report can
// count the two distinctly.
type DownloadOutcome struct {
	Success   bool
	Skipped   bool
	Message   string
	Retriable bool
}

// CommandPoster replays the site's AJAX row-select action inside the
// live page session. Implemented by browser.Session.
type CommandPoster interface {
	PostRowCommand(ctx context.Context, state *State, row int) (*CommandPayload, error)
}

// Warmer pre-triggers a download URL inside the page session (hidden
// iframe) so a 503-answering endpoint is warmed before the retried GET.
// Implemented by browser.Session.
type Warmer interface {
	Warmup(ctx context.Context, url string) error
}

// Doer performs a single HTTP request. *http.Client satisfies it; the
// run wiring supplies a client primed with the browser session cookies.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Attempt is one download attempt as seen by the optional history
// recorder.
type Attempt struct {
	RunID    string
	Row      int // 1-based
	Attempt  int // 1-based within the row
	URL      string
	Status   string // resolve_failed | saved | skipped | failed
	Message  string
	Duration time.Duration
}

// Recorder persists per-attempt records across runs. Optional; a nil
// Recorder disables history.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}
