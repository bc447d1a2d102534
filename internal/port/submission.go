package port

import (
	"context"

	"github.com/google/uuid"

	"customsdesk/internal/domain"
)

// SubmissionInput is handed to every submission step.
type SubmissionInput struct {
	SessionID   uuid.UUID
	Reference   int64
	ClientName  string
	ClientEmail string
	Declaration *domain.WorkingDeclaration
	// Receipts holds the results of steps completed earlier, including those
	// completed in previous attempts.
	Receipts map[domain.SubmissionStep]domain.StepReceipt
}

// StepResult is returned by a successful submission step.
type StepResult struct {
	Reference string
}

// SubmissionPrechecker is implemented by steps that can tell from the input
// alone that they would fail for good. The pipeline asks every pending step
// before the first one runs, so nothing irreversible happens for a run that
// cannot finish.
type SubmissionPrechecker interface {
	Precheck(input SubmissionInput) error
}

// SubmissionStepExecutor performs one external submission step. Failures
// should be wrapped with domain.Retryable or domain.Fatal; unwrapped errors
// are treated as retryable.
type SubmissionStepExecutor interface {
	Step() domain.SubmissionStep
	Execute(ctx context.Context, input SubmissionInput) (*StepResult, error)
}
