package email

import (
	"context"
	"fmt"

	"github.com/smallbiznis/redevance/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	log = log.Named("providers.email")
	switch cfg.Email.Channel {
	case "smtp":
		log.Info("notification channel", zap.String("channel", "smtp"), zap.String("host", cfg.Email.SMTPHost))
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		}), nil
	case "ses":
		log.Info("notification channel", zap.String("channel", "ses"), zap.String("region", cfg.Email.SESRegion))
		return NewSES(context.Background(), cfg.Email.SESRegion, cfg.Email.From)
	case "", "noop":
		if cfg.IsProduction() {
			log.Warn("notification channel is noop in production; escalation notices will not reach taxpayers")
		} else {
			log.Info("notification channel", zap.String("channel", "noop"))
		}
		return &NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Email.Channel)
	}
}
