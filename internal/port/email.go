package port

import "context"

// SubmissionNotice is the content of a client notification.
type SubmissionNotice struct {
	ToEmail          string
	ToName           string
	SessionReference int64
	AuthorityReceipt string
	InvoiceNumber    string
	BLNumber         string
	DeclaredValue    string
	Currency         string
}

// EmailSender defines the contract for sending client emails.
type EmailSender interface {
	SendSubmissionNotice(ctx context.Context, notice SubmissionNotice) error
}
