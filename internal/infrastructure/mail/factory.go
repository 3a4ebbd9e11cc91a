package mail

import (
	"fmt"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewSender returns the mail sender selected by cfg.Driver
func NewSender(cfg config.MailConfig, logger *zap.Logger) (appinvoicing.MailSender, error) {
	switch cfg.Driver {
	case "smtp":
		logger.Info("Using SMTP mail sender",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("tls_policy", cfg.TLSPolicy))
		return NewSMTPMailer(cfg, logger)
	case "log", "":
		logger.Warn("Using log mail sender, reminder emails will not be delivered")
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
