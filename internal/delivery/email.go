package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
)

// Mailer sends report artifacts. Failures surface as ErrDeliveryFailure
// and are reported to the user, never retried automatically.
type Mailer interface {
	SendReport(ctx context.Context, to, subject, body string, attachmentName string, attachment []byte) error
}

type resendMailer struct {
	client *resend.Client
	from   string
	log    *slog.Logger
}

// NewMailer builds the production mailer. An empty API key yields a mailer
// that refuses sends with a clear error instead of panicking at send time.
func NewMailer(apiKey, from string, logger *slog.Logger) Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	if from == "" {
		from = "Accounts Manager <reports@accounts-manager.local>"
	}
	return &resendMailer{client: client, from: from, log: logger}
}

func (m *resendMailer) SendReport(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) error {
	if m.client == nil {
		return fmt.Errorf("%w: mailer not configured", common.ErrDeliveryFailure)
	}
	if to == "" {
		return fmt.Errorf("%w: no destination address", common.ErrDeliveryFailure)
	}

	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}
	if len(attachment) > 0 {
		req.Attachments = []*resend.Attachment{{
			Filename: attachmentName,
			Content:  attachment,
		}}
	}

	sent, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		m.log.Error("delivery.email_failed", "to", to, "subject", subject, "error", err)
		return fmt.Errorf("%w: %v", common.ErrDeliveryFailure, err)
	}
	m.log.Info("delivery.email_sent", "to", to, "subject", subject, "message_id", sent.Id, "attachment_bytes", len(attachment))
	return nil
}
