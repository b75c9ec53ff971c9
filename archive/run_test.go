package archive

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakePoster struct {
	fn    func(row, call int) (*CommandPayload, error)
	calls int
}

func (f *fakePoster) PostRowCommand(ctx context.Context, state *State, row int) (*CommandPayload, error) {
	f.calls++
	return f.fn(row, f.calls)
}

func execPayload(script string) *CommandPayload {
	return &CommandPayload{
		OK:       true,
		Status:   200,
		Commands: []Command{{Command: "log", Script: ""}, {Command: "execute", Script: script}},
	}
}

func testState(rows int) *State {
	return &State{
		PageURL:     basePage,
		RowCount:    rows,
		Credentials: Credentials{TokenID: "tok", WindowID: "win"},
	}
}

func noSleep(time.Duration) {}

func newTestRunner(t *testing.T, poster CommandPoster, doer *fakeDoer, cfg RunConfig) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	dl := NewDownloader(doer, &fakeWarmer{}, DownloadConfig{OutputDir: dir})
	if cfg.Sleep == nil {
		cfg.Sleep = noSleep
	}
	return NewRunner(poster, dl, cfg), dir
}

func TestRun_AllRowsDownloaded(t *testing.T) {
	// WHAT: Every row resolves, downloads, and is counted.
	// WHY: End-to-end happy path over the fakes.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		return execPayload(`finished("/dms/doc?documentId=` + string(rune('a'+row)) + `", 1)`), nil
	}}
	doer := &fakeDoer{responses: []*http.Response{
		resp(200, "application/pdf", pdfBody),
		resp(200, "application/pdf", pdfBody),
	}}
	r, dir := newTestRunner(t, poster, doer, RunConfig{})

	rep, err := r.Run(context.Background(), testState(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Total != 2 || rep.Downloaded != 2 || rep.Failed != 0 || rep.Skipped != 0 {
		t.Errorf("report = %+v, want 2 downloaded", rep)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("output dir has %d files, want 2", len(entries))
	}
	if rep.RunID != r.RunID() {
		t.Errorf("report run id %q != runner run id %q", rep.RunID, r.RunID())
	}
}

func TestRun_ReresolvesEveryAttempt(t *testing.T) {
	// WHAT: After a retriable download failure the link is resolved again,
	// not reused.
	// WHY: Resolved links embed a session nonce and expire quickly.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		return execPayload(`finished("/dms/doc?documentId=1", 1)`), nil
	}}
	doer := &fakeDoer{responses: []*http.Response{
		resp(500, "", nil),
		resp(200, "application/pdf", pdfBody),
	}}
	var slept []time.Duration
	r, _ := newTestRunner(t, poster, doer, RunConfig{
		Sleep: func(d time.Duration) { slept = append(slept, d) },
	})

	rep, err := r.Run(context.Background(), testState(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Downloaded != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want 1 downloaded", rep)
	}
	if poster.calls != 2 {
		t.Errorf("resolve calls = %d, want 2 (one per attempt)", poster.calls)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("slept = %v, want one 2s linear backoff", slept)
	}
}

func TestRun_ResolveFailureReportsNullURL(t *testing.T) {
	// WHAT: A row that never yields a link fails with url null and the
	// resolver's reason.
	// WHY: Null-vs-set URL distinguishes resolve failures from fetch
	// failures in the report.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		return &CommandPayload{OK: false, Status: 500}, nil
	}}
	r, _ := newTestRunner(t, poster, &fakeDoer{}, RunConfig{Retries: 2})

	rep, err := r.Run(context.Background(), testState(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Failed != 1 || len(rep.Failures) != 1 {
		t.Fatalf("report = %+v, want 1 failure", rep)
	}
	f := rep.Failures[0]
	if f.URL != nil {
		t.Errorf("failure url = %v, want null", *f.URL)
	}
	if !strings.Contains(f.Reason, "could not resolve PDF link") {
		t.Errorf("reason = %q, want resolve-failure wording", f.Reason)
	}
	if poster.calls != 2 {
		t.Errorf("resolve calls = %d, want the full attempt budget", poster.calls)
	}
}

func TestRun_TerminalFetchFailureKeepsURL(t *testing.T) {
	// WHAT: A non-retriable download failure ends the row immediately and
	// reports the attempted URL.
	// WHY: Non-retriable failures must not burn the remaining attempts.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		return execPayload(`finished("/dms/doc?documentId=9", 1)`), nil
	}}
	doer := &fakeDoer{responses: []*http.Response{resp(404, "", nil)}}
	r, _ := newTestRunner(t, poster, doer, RunConfig{Retries: 3})

	rep, err := r.Run(context.Background(), testState(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if poster.calls != 1 {
		t.Errorf("resolve calls = %d, want 1", poster.calls)
	}
	if rep.Failed != 1 {
		t.Fatalf("report = %+v, want 1 failure", rep)
	}
	f := rep.Failures[0]
	if f.URL == nil || !strings.Contains(*f.URL, "documentId=9") {
		t.Errorf("failure url = %v, want the resolved link", f.URL)
	}
	if f.Reason != "HTTP 404" {
		t.Errorf("reason = %q, want HTTP 404", f.Reason)
	}
}

func TestRun_SkippedCountedSeparately(t *testing.T) {
	// WHAT: A skip-existing hit counts as skipped, not downloaded.
	// WHY: The report separates fresh downloads from re-run skips.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		return execPayload(`finished("/dms/doc?filename=done.pdf", 1)`), nil
	}}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "done.pdf"), pdfBody, 0o644); err != nil {
		t.Fatal(err)
	}
	dl := NewDownloader(&fakeDoer{}, &fakeWarmer{}, DownloadConfig{OutputDir: dir, SkipExisting: true})
	r := NewRunner(poster, dl, RunConfig{Sleep: noSleep})

	rep, err := r.Run(context.Background(), testState(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Skipped != 1 || rep.Downloaded != 0 || rep.Failed != 0 {
		t.Errorf("report = %+v, want 1 skipped", rep)
	}
}

func TestRun_RowRange(t *testing.T) {
	// WHAT: StartRow/EndRow select an inclusive 1-based slice of the rows.
	// WHY: Partial re-runs target the rows that failed last time.
	var seen []int
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		seen = append(seen, row)
		return execPayload(`finished("/dms/doc?documentId=1", 1)`), nil
	}}
	doer := &fakeDoer{responses: []*http.Response{
		resp(200, "application/pdf", pdfBody),
		resp(200, "application/pdf", pdfBody),
	}}
	r, _ := newTestRunner(t, poster, doer, RunConfig{StartRow: 2, EndRow: 3})

	rep, err := r.Run(context.Background(), testState(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Total != 2 {
		t.Errorf("total = %d, want 2", rep.Total)
	}
	// Rows are 0-based at the command layer.
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("rows posted = %v, want [1 2]", seen)
	}
}

func TestRun_PreRunValidation(t *testing.T) {
	// WHAT: No rows, missing credentials, and an inverted range are fatal
	// before any row work.
	// WHY: These states mean the page was not ready; a partial run would
	// mislead.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		t.Fatal("poster must not be called")
		return nil, nil
	}}
	r, _ := newTestRunner(t, poster, &fakeDoer{}, RunConfig{})

	if _, err := r.Run(context.Background(), testState(0)); !errors.Is(err, ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}

	s := testState(3)
	s.Credentials.WindowID = ""
	if _, err := r.Run(context.Background(), s); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}

	r2, _ := newTestRunner(t, poster, &fakeDoer{}, RunConfig{StartRow: 5, EndRow: 2})
	if _, err := r2.Run(context.Background(), testState(10)); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestRun_RecorderReceivesAttempts(t *testing.T) {
	// WHAT: Every attempt reaches the recorder, stamped with the run ID.
	// WHY: The history database reconstructs retry behaviour per row.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		if call == 1 {
			return &CommandPayload{OK: true, Status: 200, ParseError: "bad json"}, nil
		}
		return execPayload(`finished("/dms/doc?documentId=1", 1)`), nil
	}}
	doer := &fakeDoer{responses: []*http.Response{resp(200, "application/pdf", pdfBody)}}
	rec := &memRecorder{}
	r, _ := newTestRunner(t, poster, doer, RunConfig{Recorder: rec})

	if _, err := r.Run(context.Background(), testState(1)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.attempts) != 2 {
		t.Fatalf("recorded %d attempts, want 2", len(rec.attempts))
	}
	if rec.attempts[0].Status != "resolve_failed" || rec.attempts[1].Status != "saved" {
		t.Errorf("statuses = %q, %q, want resolve_failed then saved",
			rec.attempts[0].Status, rec.attempts[1].Status)
	}
	for _, a := range rec.attempts {
		if a.RunID != r.RunID() {
			t.Errorf("attempt run id = %q, want %q", a.RunID, r.RunID())
		}
	}
}

func TestRun_EndToEnd(t *testing.T) {
	// WHAT: Script extraction, base resolution, fetch, and header naming
	// compose: finished("/downloadData/123/file.pdf", "x") against the
	// archive page ends as foo.pdf on disk.
	// WHY: Pins the full row pipeline over the fakes.
	poster := &fakePoster{fn: func(row, call int) (*CommandPayload, error) {
		return execPayload(`finished("/downloadData/123/file.pdf", "x")`), nil
	}}
	r200 := resp(200, "application/pdf", pdfBody)
	r200.Header.Set("Content-Disposition", `attachment; filename="foo.pdf"`)
	var gotURL string
	doer := &fakeDoer{responses: []*http.Response{r200}}
	dir := t.TempDir()
	dl := NewDownloader(doerFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return doer.Do(req)
	}), &fakeWarmer{}, DownloadConfig{OutputDir: dir})
	r := NewRunner(poster, dl, RunConfig{Sleep: noSleep})

	state := testState(1)
	state.PageURL = "https://konto.flatex.at/archive"
	rep, err := r.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Downloaded != 1 {
		t.Fatalf("report = %+v, want 1 downloaded", rep)
	}
	if gotURL != "https://konto.flatex.at/downloadData/123/file.pdf" {
		t.Errorf("fetched url = %q, want the resolved link", gotURL)
	}
	if _, err := os.Stat(filepath.Join(dir, "foo.pdf")); err != nil {
		t.Errorf("foo.pdf missing: %v", err)
	}
}

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

type memRecorder struct {
	attempts []Attempt
}

func (m *memRecorder) RecordAttempt(ctx context.Context, a Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}
