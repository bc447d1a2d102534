package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionNotFound      = errors.New("declaration session not found")
	ErrSessionClosed        = errors.New("declaration session is closed")
	ErrPhaseMismatch        = errors.New("operation not allowed in current phase")
	ErrExtractionInProgress = errors.New("extraction already in progress for this document")
	ErrUnknownField         = errors.New("unknown declaration field")
	ErrUnknownDiscrepancy   = errors.New("no discrepancy exists for this field")
	ErrInvalidResolution    = errors.New("invalid resolution")
	ErrCancelNotAllowed     = errors.New("session cannot be cancelled once submission has begun")
	ErrDeclarationLodged    = errors.New("declaration already lodged with the customs authority")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrDocumentNotStored    = errors.New("source document is not available in storage")
	ErrNoNotifyRecipient    = errors.New("no client email to notify of the submission")
)

// TransitionReason names the guard that blocked a phase transition.
type TransitionReason string

const (
	ReasonMissingInvoice          TransitionReason = "MissingInvoice"
	ReasonMissingBillOfLading     TransitionReason = "MissingBillOfLading"
	ReasonUnresolvedDiscrepancies TransitionReason = "UnresolvedDiscrepancies"
	ReasonSubmitRequired          TransitionReason = "SubmitRequired"
	ReasonTerminal                TransitionReason = "Terminal"
)

// PhaseTransitionError reports a violated transition guard. It is always
// recoverable and names the blocking fields.
type PhaseTransitionError struct {
	From   Phase
	Reason TransitionReason
	Fields []FieldID
}

func (e *PhaseTransitionError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("cannot advance from %s: %s", e.From, e.Reason)
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("cannot advance from %s: %s (%s)", e.From, e.Reason, strings.Join(names, ", "))
}

// ExtractionError means a document was unreadable. The session stays in its
// phase and the document may be uploaded again.
type ExtractionError struct {
	Kind DocumentKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Kind.Label(), e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IncompleteResolutionError signals that a merge was attempted while a
// discrepancy had no resolution. The workflow guards make this unreachable.
type IncompleteResolutionError struct {
	Field FieldID
}

func (e *IncompleteResolutionError) Error() string {
	return fmt.Sprintf("discrepancy %s has no resolution", e.Field)
}

// SubmissionError reports a pipeline failure. Re-submitting resumes after
// LastCompletedStep.
type SubmissionError struct {
	FailedStep        SubmissionStep
	LastCompletedStep SubmissionStep
	Err               error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed at %s (last completed: %s): %v", e.FailedStep, e.LastCompletedStep, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RetryableError marks a submission step failure that may succeed on retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// FatalError marks a submission step failure that must not be retried
// automatically.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Fatal wraps err as a FatalError.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err, or any error it wraps, is a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
