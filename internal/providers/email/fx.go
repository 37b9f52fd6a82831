package email

import (
	"strings"

	"github.com/smallbiznis/estatebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	log = log.Named("providers.email")
	switch cfg.Email.Provider {
	case "resend":
		if strings.TrimSpace(cfg.Email.ResendAPIKey) == "" {
			log.Warn("resend api key missing, email delivery disabled")
			return &NoOpProvider{}
		}
		return NewResend(cfg.Email.ResendAPIKey, cfg.Email.SMTPFrom)
	case "noop", "none":
		return &NoOpProvider{}
	default:
		if strings.TrimSpace(cfg.Email.SMTPHost) == "" {
			log.Warn("smtp host missing, email delivery disabled")
			return &NoOpProvider{}
		}
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
	}
}
