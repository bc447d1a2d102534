package ses

import (
	"context"
	"fmt"
	"html"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"customsdesk/internal/port"
)

type sesSender struct {
	client       *sesv2.Client
	fromAddress  string
	fromName     string
	dashboardURL string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName, dashboardURL string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return &sesSender{
		client:       sesv2.NewFromConfig(cfg),
		fromAddress:  fromAddress,
		fromName:     fromName,
		dashboardURL: dashboardURL,
	}, nil
}

func (s *sesSender) SendSubmissionNotice(ctx context.Context, notice port.SubmissionNotice) error {
	subject := fmt.Sprintf("Customs declaration #%d lodged", notice.SessionReference)
	htmlBody := buildNoticeHTML(notice, s.dashboardURL)
	textBody := buildNoticeText(notice, s.dashboardURL)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{notice.ToEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func greetingName(notice port.SubmissionNotice) string {
	if notice.ToName == "" {
		return "there"
	}
	return notice.ToName
}

func buildNoticeText(n port.SubmissionNotice, dashboardURL string) string {
	return fmt.Sprintf(`Hi %s,

Your customs declaration #%d has been lodged with the customs authority.

Authority reference: %s
Invoice number:      %s
Bill of lading:      %s
Declared value:      %s %s

View the declaration: %s/sessions/%d

Customs Desk`,
		greetingName(n), n.SessionReference, n.AuthorityReceipt, n.InvoiceNumber, n.BLNumber,
		n.DeclaredValue, n.Currency, dashboardURL, n.SessionReference)
}

func buildNoticeHTML(n port.SubmissionNotice, dashboardURL string) string {
	link := fmt.Sprintf("%s/sessions/%d", dashboardURL, n.SessionReference)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Declaration #%d lodged</h2>
  <p>Hi %s,</p>
  <p>Your customs declaration has been lodged with the customs authority.</p>
  <table style="border-collapse: collapse; margin: 20px 0;">
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Authority reference</td><td><strong>%s</strong></td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Invoice number</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Bill of lading</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0; color: #666;">Declared value</td><td>%s %s</td></tr>
  </table>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">View Declaration</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Customs Desk</p>
</body>
</html>`,
		n.SessionReference,
		html.EscapeString(greetingName(n)),
		html.EscapeString(n.AuthorityReceipt),
		html.EscapeString(n.InvoiceNumber),
		html.EscapeString(n.BLNumber),
		html.EscapeString(n.DeclaredValue), html.EscapeString(n.Currency),
		html.EscapeString(link))
}
