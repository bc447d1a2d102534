package noop

import (
	"context"
	"log"

	"customsdesk/internal/port"
)

type noopSender struct {
	dashboardURL string
}

// NewNoopSender creates a no-op EmailSender that logs notices to stdout.
func NewNoopSender(dashboardURL string) port.EmailSender {
	return &noopSender{dashboardURL: dashboardURL}
}

func (s *noopSender) SendSubmissionNotice(_ context.Context, n port.SubmissionNotice) error {
	log.Printf("[NOOP EMAIL] Declaration #%d lodged for %s (%s): authority ref %s, %s/sessions/%d",
		n.SessionReference, n.ToName, n.ToEmail, n.AuthorityReceipt, s.dashboardURL, n.SessionReference)
	return nil
}
