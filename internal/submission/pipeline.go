package submission

import (
	"context"
	"fmt"
	"log"
	"time"

	"customsdesk/internal/config"
	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// ProgressFunc is called after each completed step, before the next one
// starts. Returning an error stops the pipeline.
type ProgressFunc func(step domain.SubmissionStep, receipt domain.StepReceipt) error

// Pipeline runs submission steps in order with bounded retries. It holds no
// per-session state; the resume marker is owned by the caller.
type Pipeline struct {
	steps       []port.SubmissionStepExecutor
	maxAttempts int
	backoff     func(attempt int) time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSleep replaces the backoff sleep, which lets tests run without delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// WithClock replaces the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a Pipeline. Steps must be given in execution order.
func NewPipeline(cfg config.SubmissionConfig, steps []port.SubmissionStepExecutor, opts ...Option) *Pipeline {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &Pipeline{
		steps:       steps,
		maxAttempts: maxAttempts,
		backoff:     cfg.Backoff,
		sleep:       sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Precheck asks every step after lastCompleted whether it could run with
// this input. The first refusal is returned without executing anything.
func (p *Pipeline) Precheck(input port.SubmissionInput, lastCompleted domain.SubmissionStep) error {
	for _, step := range p.steps {
		if step.Step() <= lastCompleted {
			continue
		}
		checker, ok := step.(port.SubmissionPrechecker)
		if !ok {
			continue
		}
		if err := checker.Precheck(input); err != nil {
			return fmt.Errorf("%s precheck: %w", step.Step(), err)
		}
	}
	return nil
}

// Run executes every step after lastCompleted. Steps at or before the marker
// are never invoked again. On failure it returns *domain.SubmissionError
// carrying the last step that did complete.
func (p *Pipeline) Run(
	ctx context.Context,
	input port.SubmissionInput,
	lastCompleted domain.SubmissionStep,
	progress ProgressFunc,
) (domain.SubmissionStep, error) {
	receipts := make(map[domain.SubmissionStep]domain.StepReceipt, len(input.Receipts))
	for k, v := range input.Receipts {
		receipts[k] = v
	}
	input.Receipts = receipts

	for _, step := range p.steps {
		if step.Step() <= lastCompleted {
			continue
		}

		receipt, err := p.runStep(ctx, step, input)
		if err != nil {
			return lastCompleted, &domain.SubmissionError{
				FailedStep:        step.Step(),
				LastCompletedStep: lastCompleted,
				Err:               err,
			}
		}

		if progress != nil {
			if err := progress(step.Step(), receipt); err != nil {
				return lastCompleted, &domain.SubmissionError{
					FailedStep:        step.Step(),
					LastCompletedStep: lastCompleted,
					Err:               fmt.Errorf("recording progress: %w", err),
				}
			}
		}
		input.Receipts[step.Step()] = receipt
		lastCompleted = step.Step()
	}
	return lastCompleted, nil
}

func (p *Pipeline) runStep(ctx context.Context, step port.SubmissionStepExecutor, input port.SubmissionInput) (domain.StepReceipt, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.backoff(attempt - 1)
			log.Printf("submission.Pipeline: retrying %s for session %s in %s (attempt %d/%d)",
				step.Step(), input.SessionID, delay, attempt, p.maxAttempts)
			if err := p.sleep(ctx, delay); err != nil {
				return domain.StepReceipt{}, fmt.Errorf("waiting to retry: %w (last error: %v)", err, lastErr)
			}
		}

		result, err := step.Execute(ctx, input)
		if err == nil {
			receipt := domain.StepReceipt{Attempts: attempt, CompletedAt: p.now().UTC()}
			if result != nil {
				receipt.Reference = result.Reference
			}
			log.Printf("submission.Pipeline: %s completed for session %s (attempt %d)", step.Step(), input.SessionID, attempt)
			return receipt, nil
		}

		lastErr = err
		log.Printf("submission.Pipeline: %s failed for session %s (attempt %d/%d): %v",
			step.Step(), input.SessionID, attempt, p.maxAttempts, err)
		if domain.IsFatal(err) || ctx.Err() != nil {
			break
		}
	}
	return domain.StepReceipt{}, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
