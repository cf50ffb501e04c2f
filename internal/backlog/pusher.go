package backlog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/smallbiznis/redevance/internal/config"
	obstracing "github.com/smallbiznis/redevance/internal/observability/tracing"
	"go.uber.org/zap"
)

const defaultPushTimeout = 5 * time.Second

// Pusher ships a registry to an external collector.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher returns nil when no gateway is configured; the gauges are then only refreshed.
func NewPusher(cfg config.Config, log *zap.Logger) Pusher {
	endpoint := strings.TrimSpace(cfg.Backlog.PushEndpoint)
	if endpoint == "" {
		return nil
	}
	log.Info("backlog metrics push enabled", zap.String("endpoint", endpoint))
	return NewPushgatewayPusher(endpoint, cfg.AppName, map[string]string{
		"environment": strings.TrimSpace(cfg.Environment),
	})
}

// PushgatewayPusher replaces the job's series on a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint   string
	job        string
	grouping   map[string]string
	httpClient *http.Client
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	if strings.TrimSpace(job) == "" {
		job = "redevance"
	}
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      job,
		grouping: grouping,
		httpClient: obstracing.WrapHTTPClient(&http.Client{
			Timeout: defaultPushTimeout,
		}),
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}

	pusher := push.New(p.endpoint, p.job).
		Client(p.httpClient).
		Gatherer(registry)
	for key, value := range p.grouping {
		if strings.TrimSpace(value) == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}
