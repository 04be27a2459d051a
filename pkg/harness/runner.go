package harness

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/shimharness/pkg/logger"
	"github.com/sipeed/shimharness/pkg/scraper"
	"github.com/sipeed/shimharness/pkg/storage"
	"github.com/sipeed/shimharness/pkg/storage/repository"
)

// Result is the outcome of one scenario.
type Result struct {
	RunID    string
	Scenario string
	Outcome  repository.Outcome
	Err      error
	Messages []scraper.Message
	Started  time.Time
	Finished time.Time
}

func (r Result) Passed() bool {
	return r.Outcome == repository.OutcomePassed
}

// Classify maps a scenario error onto its journaled outcome.
func Classify(err error) repository.Outcome {
	var (
		msgTimeout   *MessageTimeoutError
		readyTimeout *ReadyTimeoutError
		assertion    *AssertionError
	)
	switch {
	case err == nil:
		return repository.OutcomePassed
	case errors.As(err, &msgTimeout), errors.As(err, &readyTimeout):
		return repository.OutcomeTimeout
	case errors.As(err, &assertion):
		return repository.OutcomeFailed
	default:
		return repository.OutcomeError
	}
}

// Runner executes scenarios one after another, each on a fresh Harness.
type Runner struct {
	opts    Options
	store   storage.Storage
	suiteID string
}

// NewRunner creates a runner. store may be nil to skip journaling.
func NewRunner(opts Options, store storage.Storage) *Runner {
	return &Runner{
		opts:    opts,
		store:   store,
		suiteID: uuid.NewString(),
	}
}

func (r *Runner) SuiteID() string {
	return r.suiteID
}

// Run executes every scenario and returns one result per scenario. It stops
// early only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]Result, error) {
	fx, err := LoadFixtures()
	if err != nil {
		return nil, err
	}

	logger.InfoCF("runner", "Starting suite", map[string]interface{}{
		"suite":     r.suiteID,
		"scenarios": len(scenarios),
	})

	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.runOne(ctx, sc, fx))
	}

	passed := 0
	for _, res := range results {
		if res.Passed() {
			passed++
		}
	}
	logger.InfoCF("runner", "Suite finished", map[string]interface{}{
		"suite":  r.suiteID,
		"passed": passed,
		"total":  len(results),
	})
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, sc Scenario, fx Fixtures) Result {
	opts := r.opts
	opts.Component = "harness." + sc.Name

	res := Result{
		RunID:    uuid.NewString(),
		Scenario: sc.Name,
		Started:  time.Now().UTC(),
	}
	res.Messages, res.Err = New(opts).Run(ctx, sc, fx)
	res.Finished = time.Now().UTC()
	res.Outcome = Classify(res.Err)

	fields := map[string]interface{}{
		"scenario": sc.Name,
		"outcome":  string(res.Outcome),
		"expected": sc.Expect,
		"observed": len(res.Messages),
		"elapsed":  res.Finished.Sub(res.Started).String(),
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		logger.WarnCF("runner", "Scenario did not pass", fields)
	} else {
		logger.InfoCF("runner", "Scenario passed", fields)
	}

	r.journal(ctx, sc, res)
	return res
}

func (r *Runner) journal(ctx context.Context, sc Scenario, res Result) {
	if r.store == nil {
		return
	}
	run := &repository.Run{
		ID:       res.RunID,
		SuiteID:  r.suiteID,
		Scenario: sc.Name,
		Outcome:  res.Outcome,
		Expected: sc.Expect,
		Observed: len(res.Messages),
		Started:  res.Started,
		Finished: res.Finished,
		Messages: res.Messages,
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	if err := r.store.Runs().Save(context.WithoutCancel(ctx), run); err != nil {
		logger.ErrorCF("runner", "Failed to journal run", map[string]interface{}{
			"scenario": sc.Name,
			"error":    err.Error(),
		})
	}
}
