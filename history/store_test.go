package history

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/flatexdl/archive"
	"github.com/hazyhaar/flatexdl/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func TestStore_RunLifecycle(t *testing.T) {
	// WHAT: StartRun then FinishRun leaves one runs row with final counters.
	// WHY: The runs table is the per-run audit summary.
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now()
	if err := s.StartRun(ctx, "run-1", "https://konto.flatex.at/x", started); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	rep := &archive.RunReport{
		RunID:      "run-1",
		FinishedAt: started.Add(time.Minute),
		Total:      4,
		Downloaded: 2,
		Skipped:    1,
		Failed:     1,
	}
	if err := s.FinishRun(ctx, rep); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	var downloaded, failed int
	var finished int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT downloaded, failed, finished_at FROM runs WHERE id = ?`, "run-1").
		Scan(&downloaded, &failed, &finished)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if downloaded != 2 || failed != 1 {
		t.Errorf("counters = %d/%d, want 2/1", downloaded, failed)
	}
	if finished != rep.FinishedAt.UnixMilli() {
		t.Errorf("finished_at = %d, want %d", finished, rep.FinishedAt.UnixMilli())
	}
}

func TestStore_RecordAndListAttempts(t *testing.T) {
	// WHAT: Recorded attempts come back in row/attempt order.
	// WHY: RunAttempts reconstructs the retry history of a run.
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, "run-2", "https://konto.flatex.at/x", time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	attempts := []archive.Attempt{
		{RunID: "run-2", Row: 2, Attempt: 1, Status: "failed", Message: "HTTP 503", Duration: 120 * time.Millisecond},
		{RunID: "run-2", Row: 1, Attempt: 1, URL: "https://konto.flatex.at/d?id=1", Status: "saved"},
		{RunID: "run-2", Row: 2, Attempt: 2, URL: "https://konto.flatex.at/d?id=2", Status: "saved"},
	}
	for _, a := range attempts {
		if err := s.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	got, err := s.RunAttempts(ctx, "run-2")
	if err != nil {
		t.Fatalf("RunAttempts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("attempts = %d, want 3", len(got))
	}
	if got[0].Row != 1 || got[1].Row != 2 || got[2].Row != 2 || got[2].Attempt != 2 {
		t.Errorf("order = %d/%d, %d/%d, %d/%d, want 1/1, 2/1, 2/2",
			got[0].Row, got[0].Attempt, got[1].Row, got[1].Attempt, got[2].Row, got[2].Attempt)
	}
	if got[1].Message != "HTTP 503" || got[1].DurationMs != 120 {
		t.Errorf("failed attempt = %+v, want message and duration kept", got[1])
	}
}

func TestStore_AttemptsIsolatedPerRun(t *testing.T) {
	// WHAT: RunAttempts only returns the queried run's attempts.
	// WHY: The database accumulates across many runs.
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b"} {
		if err := s.StartRun(ctx, id, "https://konto.flatex.at/x", time.Now()); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		if err := s.RecordAttempt(ctx, archive.Attempt{RunID: id, Row: 1, Attempt: 1, Status: "saved"}); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	got, err := s.RunAttempts(ctx, "run-a")
	if err != nil {
		t.Fatalf("RunAttempts: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "run-a" {
		t.Errorf("attempts = %+v, want exactly run-a's", got)
	}
}
