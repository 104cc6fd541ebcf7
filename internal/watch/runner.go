package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrFetchExhausted marks a run that failed to retrieve the page within the
// retry budget. The caller must not update persisted state in that case.
var ErrFetchExhausted = errors.New("fetch attempts exhausted")

// RunnerConfig carries the per-run knobs the orchestration needs.
type RunnerConfig struct {
	URL string
	// DryRun suppresses notification delivery unconditionally.
	DryRun bool
}

// Runner executes one complete check: load state, fetch, classify, evaluate
// the transition, notify if warranted, persist.
type Runner struct {
	fetcher    Fetcher
	classifier *Classifier
	store      Store
	notifier   Notifier // nil when no webhook is configured
	policy     *RetryPolicy
	clock      Clock
	logger     *zap.Logger
	cfg        RunnerConfig
}

// Result summarizes one completed run.
type Result struct {
	Verdict  Verdict
	Notified bool
	RunID    string
}

// NewRunner wires the pipeline. notifier may be nil; a nil notifier downgrades
// a notify decision to a logged configuration warning.
func NewRunner(
	fetcher Fetcher,
	classifier *Classifier,
	store Store,
	notifier Notifier,
	policy *RetryPolicy,
	clock Clock,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewRetryPolicy(0, 0, 0)
	}
	return &Runner{
		fetcher:    fetcher,
		classifier: classifier,
		store:      store,
		notifier:   notifier,
		policy:     policy,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run performs a single check. A fetch failure returns ErrFetchExhausted
// without touching persisted state; a state write failure is fatal. A
// notification failure is logged and swallowed.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID), zap.String("url", r.cfg.URL))

	previous, err := r.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load state: %w", err)
	}
	log.Debug("loaded state", zap.String("last_status", string(previous.LastStatus)))

	response, err := r.fetchWithRetry(ctx, log)
	if err != nil {
		// Do not overwrite the last verdict with stale information.
		return Result{}, err
	}
	log.Debug("fetched page",
		zap.Int("status_code", response.StatusCode),
		zap.Int("bytes", len(response.Body)),
		zap.Duration("duration", response.Duration),
	)

	verdict := r.classifier.Classify(Page{URL: r.cfg.URL, Body: response.Body})
	log.Info("classified page",
		zap.String("status", string(verdict.Status)),
		zap.String("reason", verdict.Reason),
	)

	now := r.clock.Now()
	notified := r.maybeNotify(ctx, log, previous.LastStatus, verdict, now, runID)

	next := State{
		LastStatus:     verdict.Status,
		LastCheckedAt:  now,
		LastNotifiedAt: previous.LastNotifiedAt,
	}
	if notified {
		next.LastNotifiedAt = &now
	}
	if err := r.store.Save(ctx, next); err != nil {
		return Result{}, fmt.Errorf("persist state: %w", err)
	}

	return Result{Verdict: verdict, Notified: notified, RunID: runID}, nil
}

// maybeNotify applies the transition table and, when it fires, attempts
// best-effort delivery. It reports whether delivery was attempted, which is
// what gates the last_notified_at update.
func (r *Runner) maybeNotify(
	ctx context.Context,
	log *zap.Logger,
	previous Status,
	verdict Verdict,
	now time.Time,
	runID string,
) bool {
	if !ShouldNotify(previous, verdict.Status) {
		return false
	}
	switch {
	case r.notifier == nil:
		log.Warn("status rose to BUYABLE but no webhook is configured; notification skipped")
		return false
	case r.cfg.DryRun:
		log.Info("dry run; notification suppressed", zap.String("reason", verdict.Reason))
		return false
	}

	err := r.notifier.Notify(ctx, Notification{
		Status:    verdict.Status,
		Reason:    verdict.Reason,
		URL:       r.cfg.URL,
		CheckedAt: now,
		RunID:     runID,
	})
	if err != nil {
		// Best effort: a failed delivery never fails the run.
		log.Warn("notification delivery failed", zap.Error(err))
	} else {
		log.Info("notification delivered")
	}
	return true
}

func (r *Runner) fetchWithRetry(ctx context.Context, log *zap.Logger) (FetchResponse, error) {
	request := FetchRequest{URL: r.cfg.URL, Headers: defaultHeaders()}
	var lastErr error
	for attempt := 0; ; attempt++ {
		response, err := r.fetcher.Fetch(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !r.policy.ShouldRetry(err, attempt+1) {
			break
		}
		delay := r.policy.Backoff(attempt)
		log.Debug("fetch attempt failed; backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return FetchResponse{}, fmt.Errorf("%w after %d attempts: %w",
		ErrFetchExhausted, r.policy.MaxAttempts(), lastErr)
}

// defaultHeaders mirrors what a desktop browser sends; some storefronts serve
// stripped-down markup to unknown clients.
func defaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}
