// Package pipeline implements the scheduled entry point: one bounded run
// that advances every eligible item by a single step under the run lock.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"contentpipe/internal/domain"
	"contentpipe/internal/lifecycle"
	"contentpipe/internal/notify"
	"contentpipe/internal/resilience"
	"contentpipe/internal/runlock"
)

// Job names accepted by RunOnce.
const (
	JobGeneration = "content-generation"
	JobPosting    = "posting"
)

// jobStates maps each job to the lifecycle states it may touch. The
// generation job never posts and the posting job never generates.
var jobStates = map[string][]domain.State{
	JobGeneration: {
		domain.StateCaptionPending,
		domain.StateImagePending,
		domain.StateImageReady,
		domain.StateAwaitingApproval,
	},
	JobPosting: {
		domain.StateApproved,
	},
}

// maxReportedErrors caps how many item-level errors a summary carries.
const maxReportedErrors = 5

// ItemError is one item-level failure surfaced in the run summary.
type ItemError struct {
	ItemID string
	State  domain.State
	Err    string
}

// Summary aggregates per-item outcomes of one run. A run with item failures
// is still a completed run.
type Summary struct {
	Job        string
	Advanced   int
	Failed     int
	Unchanged  int
	Incomplete bool
	Errors     []ItemError
}

func (s Summary) String() string {
	out := fmt.Sprintf("%s: %d advanced, %d failed, %d unchanged", s.Job, s.Advanced, s.Failed, s.Unchanged)
	if s.Incomplete {
		out += " (incomplete)"
	}
	return out
}

// Runner executes scheduled pipeline runs.
type Runner struct {
	locker   *runlock.Locker
	store    domain.ContentStore
	machine  *lifecycle.Machine
	notifier notify.Notifier
	breakers *resilience.Registry
	budget   resilience.Budget
	workers  int
	logger   zerolog.Logger
}

// NewRunner wires a Runner. workers bounds how many items are in flight at
// once; values below one fall back to serial processing.
func NewRunner(
	locker *runlock.Locker,
	store domain.ContentStore,
	machine *lifecycle.Machine,
	notifier notify.Notifier,
	breakers *resilience.Registry,
	budget resilience.Budget,
	workers int,
	logger zerolog.Logger,
) *Runner {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		locker:   locker,
		store:    store,
		machine:  machine,
		notifier: notifier,
		breakers: breakers,
		budget:   budget,
		workers:  workers,
		logger:   logger,
	}
}

// RunOnce advances every item eligible for jobName by one step. It returns
// the summary even when individual items failed; the error is non-nil only
// when the run could not happen at all (unknown job, lock held, storage
// down). The lock is released on every exit path.
func (r *Runner) RunOnce(ctx context.Context, jobName string) (Summary, error) {
	states, ok := jobStates[jobName]
	if !ok {
		return Summary{Job: jobName}, fmt.Errorf("unknown job %q", jobName)
	}
	summary := Summary{Job: jobName}

	handle, err := r.locker.Acquire(ctx, jobName)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			r.logger.Info().Str("job", jobName).Msg("pipeline: previous run still holds the lease, skipping")
		}
		return summary, err
	}
	// Release must survive cancellation of the run context.
	defer handle.Release(context.WithoutCancel(ctx))

	keepCtx, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	go handle.KeepAlive(keepCtx)

	items, err := resilience.Do(ctx, r.breakers, lifecycle.KeyStore, r.budget, func(ctx context.Context) ([]domain.ContentItem, error) {
		return r.store.FetchCandidates(ctx, states...)
	})
	if err != nil {
		return summary, fmt.Errorf("fetch candidates: %w", err)
	}
	items = dedupeByID(items)
	r.logger.Info().Str("job", jobName).Int("candidates", len(items)).Msg("pipeline: run started")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := range items {
		item := items[i]
		if gctx.Err() != nil {
			summary.Incomplete = true
			break
		}
		if handle.Lost() {
			r.logger.Warn().Str("job", jobName).Msg("pipeline: lease lost, stopping dispatch")
			summary.Incomplete = true
			break
		}
		g.Go(func() error {
			outcome, stepErr := r.processItem(gctx, &item)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case lifecycle.OutcomeAdvanced:
				summary.Advanced++
			case lifecycle.OutcomeFailed:
				summary.Failed++
			default:
				summary.Unchanged++
			}
			if stepErr != nil && len(summary.Errors) < maxReportedErrors {
				summary.Errors = append(summary.Errors, ItemError{ItemID: item.ID, State: item.State, Err: stepErr.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		summary.Incomplete = true
	}

	r.logger.Info().
		Str("job", jobName).
		Int("advanced", summary.Advanced).
		Int("failed", summary.Failed).
		Int("unchanged", summary.Unchanged).
		Bool("incomplete", summary.Incomplete).
		Msg("pipeline: run finished")
	r.notifyBestEffort(ctx, summary)
	return summary, nil
}

// processItem advances one item and persists the result. A persistence
// failure leaves the stored state untouched so the item is simply picked up
// again on the next run.
func (r *Runner) processItem(ctx context.Context, item *domain.ContentItem) (lifecycle.Outcome, error) {
	outcome, stepErr := r.machine.Step(ctx, item)
	if outcome == lifecycle.OutcomeUnchanged {
		return outcome, stepErr
	}
	_, saveErr := resilience.Do(ctx, r.breakers, lifecycle.KeyStore, r.budget, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.Save(ctx, item)
	})
	if saveErr != nil {
		r.logger.Error().Err(saveErr).Str("item_id", item.ID).Msg("pipeline: persisting item failed")
		return lifecycle.OutcomeFailed, fmt.Errorf("save item %s: %w", item.ID, saveErr)
	}
	return outcome, stepErr
}

func (r *Runner) notifyBestEffort(ctx context.Context, summary Summary) {
	severity := notify.SeveritySuccess
	if summary.Failed > 0 || summary.Incomplete {
		severity = notify.SeverityError
	}
	if err := r.notifier.Notify(context.WithoutCancel(ctx), summary.String(), severity); err != nil {
		r.logger.Warn().Err(err).Msg("pipeline: run notification failed")
	}
}

// dedupeByID keeps the first occurrence of each item id so the same item is
// never dispatched twice within one run.
func dedupeByID(items []domain.ContentItem) []domain.ContentItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
