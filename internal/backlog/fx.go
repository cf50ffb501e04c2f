package backlog

import (
	"context"
	"time"

	"github.com/smallbiznis/redevance/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("backlog.metrics",
	fx.Provide(func(cfg config.Config) *Gauges {
		return NewGauges(cfg.AppName, cfg.Environment)
	}),
	fx.Provide(NewPusher),
	fx.Invoke(Run),
)

// Run refreshes the gauges on cfg.Backlog.Interval and pushes them when a gateway is configured.
func Run(lc fx.Lifecycle, cfg config.Config, gauges *Gauges, pusher Pusher, db *gorm.DB, log *zap.Logger) {
	if cfg.Backlog.Interval <= 0 {
		return
	}
	log = log.Named("backlog")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting backlog metrics worker", zap.Duration("interval", cfg.Backlog.Interval))
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Backlog.Interval)
				defer ticker.Stop()

				for {
					Tick(ctx, gauges, pusher, db, log)
					select {
					case <-ticker.C:
					case <-ctx.Done():
						log.Info("stopping backlog metrics worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// Tick performs one refresh and push. Failures are logged and never stop the worker.
func Tick(ctx context.Context, gauges *Gauges, pusher Pusher, db *gorm.DB, log *zap.Logger) {
	if err := gauges.Refresh(ctx, db); err != nil {
		log.Warn("backlog refresh failed", zap.Error(err))
		return
	}
	if pusher == nil {
		return
	}
	if err := pusher.Push(ctx, gauges.Registry()); err != nil {
		log.Warn("backlog push failed", zap.Error(err))
	}
}
