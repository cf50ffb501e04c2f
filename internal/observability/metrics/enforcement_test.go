package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/redevance/internal/fault"
	"github.com/stretchr/testify/assert"
)

func TestEnforcementMetricsCounters(t *testing.T) {
	m := newEnforcementMetrics(prometheus.NewRegistry(), Config{ServiceName: "redevance", Environment: "test"})

	m.IncTransition("none", "reminder")
	m.IncTransition("none", "reminder")
	m.IncDelivery("reminder", "sent")
	m.IncDossier("opened")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("none", "reminder")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deliveries.WithLabelValues("reminder", "sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dossiers.WithLabelValues("opened")))
}

func TestIncOperationErrorUsesKind(t *testing.T) {
	m := newEnforcementMetrics(prometheus.NewRegistry(), Config{})

	m.IncOperationError("file_dispute", fault.Conflict("dispute_window_closed"))
	m.IncOperationError("file_dispute", errors.New("boom"))
	m.IncOperationError("file_dispute", nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationErrors.WithLabelValues("file_dispute", "conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationErrors.WithLabelValues("file_dispute", "internal")))
}

func TestNilEnforcementMetricsIsSafe(t *testing.T) {
	var m *EnforcementMetrics
	assert.NotPanics(t, func() {
		m.IncTransition("a", "b")
		m.ObserveTick(0)
	})
}
