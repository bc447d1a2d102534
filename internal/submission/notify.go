package submission

import (
	"context"
	"fmt"
	"strings"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// NotifyStep tells the client their declaration was lodged.
type NotifyStep struct {
	sender           port.EmailSender
	defaultRecipient string
}

// NewNotifyStep creates the client notification step. defaultRecipient is
// used for sessions started without a client email.
func NewNotifyStep(sender port.EmailSender, defaultRecipient string) *NotifyStep {
	return &NotifyStep{sender: sender, defaultRecipient: defaultRecipient}
}

func (n *NotifyStep) Step() domain.SubmissionStep {
	return domain.StepClientNotification
}

func (n *NotifyStep) recipient(input port.SubmissionInput) string {
	if to := strings.TrimSpace(input.ClientEmail); to != "" {
		return to
	}
	return n.defaultRecipient
}

// Precheck refuses a run that would lodge the declaration and then have
// nobody to notify.
func (n *NotifyStep) Precheck(input port.SubmissionInput) error {
	if n.recipient(input) == "" {
		return fmt.Errorf("session %s: %w", input.SessionID, domain.ErrNoNotifyRecipient)
	}
	return nil
}

func (n *NotifyStep) Execute(ctx context.Context, input port.SubmissionInput) (*port.StepResult, error) {
	to := n.recipient(input)
	if to == "" {
		return nil, domain.Fatal(fmt.Errorf("session %s: %w", input.SessionID, domain.ErrNoNotifyRecipient))
	}

	notice := port.SubmissionNotice{
		ToEmail:          to,
		ToName:           input.ClientName,
		SessionReference: input.Reference,
		AuthorityReceipt: input.Receipts[domain.StepCustomsAuthority].Reference,
	}
	if d := input.Declaration; d != nil {
		notice.InvoiceNumber = d.Documentation.InvoiceNumber
		notice.BLNumber = d.BillOfLading.BLNumber
		notice.DeclaredValue = d.Goods.Value
		notice.Currency = d.Goods.Currency
	}

	if err := n.sender.SendSubmissionNotice(ctx, notice); err != nil {
		return nil, domain.Retryable(fmt.Errorf("sending submission notice: %w", err))
	}
	return &port.StepResult{Reference: to}, nil
}
