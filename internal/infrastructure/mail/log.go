package mail

import (
	"context"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"go.uber.org/zap"
)

// LogMailer logs outgoing email instead of delivering it. Used in development
// and by deployments without an SMTP relay.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mail")}
}

// Send logs msg and always succeeds unless ctx is already done
func (m *LogMailer) Send(ctx context.Context, msg appinvoicing.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("Email not delivered (log driver)",
		zap.String("to", msg.To),
		zap.Strings("cc", msg.Cc),
		zap.String("from", msg.From),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)))
	return nil
}

var _ appinvoicing.MailSender = (*LogMailer)(nil)
