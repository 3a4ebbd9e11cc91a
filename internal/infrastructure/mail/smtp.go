package mail

import (
	"context"
	"fmt"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	gomail "github.com/wneessen/go-mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/erp/invoicing/mail"

// SMTPMailer delivers reminder emails over SMTP. Each message is sent as
// plain text with an HTML alternative.
type SMTPMailer struct {
	cfg    config.MailConfig
	client *gomail.Client
	logger *zap.Logger
}

// NewSMTPMailer creates an SMTP mailer. No connection is made until the first send.
func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPMailer{cfg: cfg, client: client, logger: logger.Named("smtp")}, nil
}

// Send delivers msg, bounded by the configured mail timeout
func (m *SMTPMailer) Send(ctx context.Context, msg appinvoicing.MailMessage) error {
	gm, err := buildMessage(msg)
	if err != nil {
		return err
	}

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "smtp.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("smtp.host", m.cfg.Host),
			attribute.Int("smtp.port", m.cfg.Port),
		))
	defer span.End()

	start := time.Now()
	if err := m.client.DialAndSendWithContext(ctx, gm); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "smtp delivery failed")
		return fmt.Errorf("smtp delivery to %s failed: %w", msg.To, err)
	}

	m.logger.Debug("Email delivered",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// buildMessage converts msg into a MIME message. Invalid addresses are returned as errors.
func buildMessage(msg appinvoicing.MailMessage) (*gomail.Msg, error) {
	gm := gomail.NewMsg()

	if msg.FromName != "" {
		if err := gm.FromFormat(msg.FromName, msg.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := gm.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := gm.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}
	if len(msg.Cc) > 0 {
		if err := gm.Cc(msg.Cc...); err != nil {
			return nil, fmt.Errorf("invalid cc address: %w", err)
		}
	}

	gm.Subject(msg.Subject)
	gm.SetDate()
	gm.SetMessageID()
	gm.SetBodyString(gomail.TypeTextPlain, msg.Body)
	gm.AddAlternativeString(gomail.TypeTextHTML, PlainTextToHTML(msg.Body))

	return gm, nil
}

func tlsPolicy(policy string) gomail.TLSPolicy {
	switch policy {
	case "opportunistic":
		return gomail.TLSOpportunistic
	case "none":
		return gomail.NoTLS
	default:
		return gomail.TLSMandatory
	}
}

var _ appinvoicing.MailSender = (*SMTPMailer)(nil)
