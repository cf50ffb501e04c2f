package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/redevance/internal/fault"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "forbidden", err: fault.Unauthorized("forbidden"), want: SchedulerJobReasonForbidden},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "transient", err: fault.Transient(errors.New("database is locked")), want: SchedulerJobReasonTransient},
		{name: "business_rule", err: fmt.Errorf("tick: %w", fault.Conflict("note_void")), want: SchedulerJobReasonBusinessRule},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.True(t, IsSchedulerErrorRetryable(fault.Transient(errors.New("busy"))))
	assert.True(t, IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsSchedulerErrorRetryable(fault.Invalid("bad")))
	assert.False(t, IsSchedulerErrorRetryable(nil))
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "redevance", Environment: "test"})

	metrics.AddBatchProcessed("escalation_tick", "notes", 3)
	metrics.AddBatchProcessed("escalation_tick", "notes", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("escalation_tick", "notes"))
	assert.Equal(t, float64(3), got)
}

func TestIncJobSkipped(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.IncJobSkipped("notification_retry", SchedulerSkipReasonLockHeld)

	got := testutil.ToFloat64(metrics.jobSkipped.WithLabelValues("notification_retry", SchedulerSkipReasonLockHeld))
	assert.Equal(t, float64(1), got)
}
