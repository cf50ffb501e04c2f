package storage

import (
	"context"

	"github.com/smallbiznis/redevance/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.storage",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) (Archive, error) {
	if !cfg.Storage.Enabled() {
		log.Named("providers.storage").Info("artifact archive disabled")
		return NoOpArchive{}, nil
	}
	return NewS3Archive(context.Background(), cfg.Storage)
}
