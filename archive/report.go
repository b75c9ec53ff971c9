// CLAUDE:SUMMARY Run report accumulation and JSON persistence.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Failure is one terminally failed row. URL is null when the row never
// resolved a link, otherwise the last attempted URL.
type Failure struct {
	Row    int     `json:"row"`
	Reason string  `json:"reason"`
	URL    *string `json:"url"`
}

// RunReport is the terminal artifact of a run, persisted as JSON once at
// run end. Appended to only by the single control thread.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures"`
}

// NewReport creates an empty report for total rows.
func NewReport(runID string, total int) *RunReport {
	return &RunReport{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Total:     total,
		Failures:  []Failure{},
	}
}

// AddFailure records a terminally failed row. An empty url marshals as
// null.
func (r *RunReport) AddFailure(row int, reason, url string) {
	f := Failure{Row: row, Reason: reason}
	if url != "" {
		f.URL = &url
	}
	r.Failed++
	r.Failures = append(r.Failures, f)
}

// Write persists the report as indented JSON.
func (r *RunReport) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write report: %w", err)
	}
	return nil
}
