package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/redevance/internal/fault"
)

// EnforcementMetrics tracks the escalation pipeline and outbound notifications.
type EnforcementMetrics struct {
	transitions     *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	dossiers        *prometheus.CounterVec
	tickDuration    prometheus.Observer
	operationErrors *prometheus.CounterVec
}

var (
	enforcementMetricsOnce sync.Once
	enforcementMetrics     *EnforcementMetrics
)

// Enforcement returns the singleton enforcement metrics registry.
func Enforcement() *EnforcementMetrics {
	return EnforcementWithConfig(Config{})
}

func EnforcementWithConfig(cfg Config) *EnforcementMetrics {
	enforcementMetricsOnce.Do(func() {
		enforcementMetrics = newEnforcementMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return enforcementMetrics
}

// ResetEnforcementMetricsForTest resets the enforcement metrics singleton for tests.
func ResetEnforcementMetricsForTest() {
	enforcementMetricsOnce = sync.Once{}
	enforcementMetrics = nil
}

func newEnforcementMetrics(registerer prometheus.Registerer, cfg Config) *EnforcementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "redevance_escalation_transitions_total",
		Help:        "Escalation stage transitions applied by the tick.",
		ConstLabels: labels,
	}, []string{"from", "to"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "redevance_notification_deliveries_total",
		Help:        "Notification delivery attempts by template and outcome.",
		ConstLabels: labels,
	}, []string{"template", "outcome"})
	dossiers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "redevance_recovery_dossiers_total",
		Help:        "Recovery dossier events.",
		ConstLabels: labels,
	}, []string{"event"})
	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "redevance_escalation_tick_duration_seconds",
		Help:        "Duration of a full escalation tick.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: labels,
	})
	operationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "redevance_operation_errors_total",
		Help:        "Domain operation failures by error kind.",
		ConstLabels: labels,
	}, []string{"operation", "kind"})

	registerer.MustRegister(transitions, deliveries, dossiers, tickDuration, operationErrors)

	return &EnforcementMetrics{
		transitions:     transitions,
		deliveries:      deliveries,
		dossiers:        dossiers,
		tickDuration:    tickDuration,
		operationErrors: operationErrors,
	}
}

func (m *EnforcementMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// IncDelivery records a notification attempt. outcome is sent, failed or exhausted.
func (m *EnforcementMetrics) IncDelivery(template, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(template, outcome).Inc()
}

// IncDossier records dossier lifecycle events by name.
func (m *EnforcementMetrics) IncDossier(event string) {
	if m == nil || m.dossiers == nil {
		return
	}
	m.dossiers.WithLabelValues(event).Inc()
}

func (m *EnforcementMetrics) ObserveTick(duration time.Duration) {
	if m == nil || m.tickDuration == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
}

// IncOperationError counts a failed operation under its fault kind.
func (m *EnforcementMetrics) IncOperationError(operation string, err error) {
	if m == nil || err == nil || m.operationErrors == nil {
		return
	}
	kind := "internal"
	if k := fault.KindOf(err); k != nil {
		kind = k.Error()
	}
	m.operationErrors.WithLabelValues(operation, kind).Inc()
}
