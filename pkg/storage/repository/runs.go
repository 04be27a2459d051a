package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sipeed/shimharness/pkg/scraper"
)

var ErrRunNotFound = errors.New("run not found")

type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Run is the journaled result of one scenario execution.
type Run struct {
	ID       string            `json:"id"`
	SuiteID  string            `json:"suite_id"`
	Scenario string            `json:"scenario"`
	Outcome  Outcome           `json:"outcome"`
	Error    string            `json:"error,omitempty"`
	Expected int               `json:"expected"`
	Observed int               `json:"observed"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
	Messages []scraper.Message `json:"messages"`
}

// RunInfo is the listing view of a run, without captured messages.
type RunInfo struct {
	ID       string        `json:"id"`
	SuiteID  string        `json:"suite_id"`
	Scenario string        `json:"scenario"`
	Outcome  Outcome       `json:"outcome"`
	Expected int           `json:"expected"`
	Observed int           `json:"observed"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// RunRepository defines persistence for scenario runs.
type RunRepository interface {
	// Save inserts or replaces the run with the same ID.
	Save(ctx context.Context, run *Run) error

	// Get returns ErrRunNotFound when no run has the given ID.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns runs ordered by start time. An empty suiteID lists all.
	List(ctx context.Context, suiteID string) ([]RunInfo, error)
}

func (r *Run) Info() RunInfo {
	return RunInfo{
		ID:       r.ID,
		SuiteID:  r.SuiteID,
		Scenario: r.Scenario,
		Outcome:  r.Outcome,
		Expected: r.Expected,
		Observed: r.Observed,
		Started:  r.Started,
		Duration: r.Finished.Sub(r.Started),
	}
}
