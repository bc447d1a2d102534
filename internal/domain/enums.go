package domain

import "fmt"

// FileType represents the allowed file types for document upload.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeJPG FileType = "jpg"
	FileTypePNG FileType = "png"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF: "application/pdf",
	FileTypeJPG: "image/jpeg",
	FileTypePNG: "image/png",
}

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
}

// DocumentKind identifies which source document an extraction came from.
type DocumentKind string

const (
	DocumentInvoice      DocumentKind = "invoice"
	DocumentBillOfLading DocumentKind = "bill_of_lading"
)

// Label returns the operator-facing name of the document kind.
func (k DocumentKind) Label() string {
	switch k {
	case DocumentInvoice:
		return "Commercial Invoice"
	case DocumentBillOfLading:
		return "Bill of Lading"
	default:
		return string(k)
	}
}

// Phase is one state of the declaration workflow.
type Phase string

const (
	PhaseAwaitingInvoice      Phase = "awaiting_invoice"
	PhaseAwaitingBillOfLading Phase = "awaiting_bill_of_lading"
	PhaseComparing            Phase = "comparing"
	PhaseReviewing            Phase = "reviewing"
	PhaseSubmitting           Phase = "submitting"
	PhaseSubmitted            Phase = "submitted"
	PhaseCancelled            Phase = "cancelled"
)

// Terminal reports whether no further transitions are possible from p.
func (p Phase) Terminal() bool {
	return p == PhaseSubmitted || p == PhaseCancelled
}

// Cancellable reports whether an operator may abandon a session in phase p.
func (p Phase) Cancellable() bool {
	switch p {
	case PhaseAwaitingInvoice, PhaseAwaitingBillOfLading, PhaseComparing, PhaseReviewing:
		return true
	default:
		return false
	}
}

// ResolutionChoice is the operator's decision for one discrepancy.
type ResolutionChoice string

const (
	UseInvoiceValue ResolutionChoice = "use_invoice"
	UseBLValue      ResolutionChoice = "use_bill_of_lading"
	ManualOverride  ResolutionChoice = "manual_override"
)

// ValidResolutionChoices is the set of accepted resolution choices.
var ValidResolutionChoices = map[ResolutionChoice]bool{
	UseInvoiceValue: true,
	UseBLValue:      true,
	ManualOverride:  true,
}

// SubmissionStep is one stage of the submission pipeline. Steps are ordered;
// StepNone marks that nothing has completed yet.
type SubmissionStep int

const (
	StepNone SubmissionStep = iota
	StepCustomsAuthority
	StepClientNotification
	StepArchive
)

// SubmissionSteps lists the pipeline steps in execution order.
var SubmissionSteps = []SubmissionStep{StepCustomsAuthority, StepClientNotification, StepArchive}

func (s SubmissionStep) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepCustomsAuthority:
		return "customs_authority"
	case StepClientNotification:
		return "client_notification"
	case StepArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// MarshalText encodes the step by name.
func (s SubmissionStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name produced by MarshalText.
func (s *SubmissionStep) UnmarshalText(text []byte) error {
	for _, step := range append([]SubmissionStep{StepNone}, SubmissionSteps...) {
		if step.String() == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown submission step %q", string(text))
}
