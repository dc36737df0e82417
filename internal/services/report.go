package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// maxReportErrors bounds how many per-item errors a report keeps
const maxReportErrors = 20

// RunReport summarises one automation run. Automation entry points return a
// report instead of an error; per-item failures are counted and logged.
type RunReport struct {
	RunID      string    `json:"runId"`
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

func newReport(job string, now time.Time) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Job:       job,
		StartedAt: now,
	}
}

// fail counts a failed item and logs it with the run context
func (r *RunReport) fail(err error, msg string, args ...interface{}) {
	r.Failed++
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", msg, err))
	}
	slog.Error(msg, append([]interface{}{"job", r.Job, "runId", r.RunID, "error", err}, args...)...)
}

// finish stamps the end time and logs the summary
func (r *RunReport) finish(now time.Time) *RunReport {
	r.FinishedAt = now
	slog.Info("automation run finished",
		"job", r.Job,
		"runId", r.RunID,
		"processed", r.Processed,
		"succeeded", r.Succeeded,
		"created", r.Created,
		"skipped", r.Skipped,
		"failed", r.Failed,
		"duration", r.FinishedAt.Sub(r.StartedAt).String(),
	)
	return r
}
