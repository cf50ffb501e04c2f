package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/clock"
	escalationdomain "github.com/smallbiznis/redevance/internal/escalation/domain"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeEscalation struct {
	calls  int
	actors []actorcontext.Actor
	report escalationdomain.TickReport
	err    error
}

func (f *fakeEscalation) RunTick(ctx context.Context) (escalationdomain.TickReport, error) {
	f.calls++
	if actor, ok := actorcontext.FromContext(ctx); ok {
		f.actors = append(f.actors, actor)
	}
	return f.report, f.err
}

func (f *fakeEscalation) Get(context.Context, string) (escalationdomain.Escalation, error) {
	return escalationdomain.Escalation{}, nil
}

type fakeNotifications struct {
	retryCalls int
	limits     []int
}

func (f *fakeNotifications) Enqueue(context.Context, *gorm.DB, notificationdomain.EnqueueCommand) (*notificationdomain.Notification, bool, error) {
	return nil, false, nil
}

func (f *fakeNotifications) Deliver(context.Context, ...snowflake.ID) notificationdomain.DeliveryReport {
	return notificationdomain.DeliveryReport{}
}

func (f *fakeNotifications) RetryPending(_ context.Context, limit int) (notificationdomain.DeliveryReport, error) {
	f.retryCalls++
	f.limits = append(f.limits, limit)
	return notificationdomain.DeliveryReport{Attempted: 2, Sent: 2}, nil
}

func (f *fakeNotifications) ListBySubject(context.Context, notificationdomain.SubjectType, snowflake.ID) ([]notificationdomain.Notification, error) {
	return nil, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ttl <= 0 {
		return "", false, errors.New("ttl")
	}
	if l.held[key] {
		return "", false, nil
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	l.held[key] = true
	return "token-" + key, true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token == "token-"+key {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	return nil
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *fakeEscalation, *fakeNotifications, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "redevance",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	escalation := &fakeEscalation{}
	notifications := &fakeNotifications{}
	s, err := New(Params{
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Escalation:    escalation,
		Notifications: notifications,
		Config:        cfg,
	})
	require.NoError(t, err)
	return s, escalation, notifications, registry
}

func TestNewRequiresServices(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	s, _, _, registry := newTestScheduler(t, Config{})

	err := s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{"service": "redevance", "env": "test", "job": "timeout_job"}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "redevance_scheduler_job_timeouts_total", labels))

	errorLabels := map[string]string{
		"service": "redevance",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "redevance_scheduler_job_errors_total", errorLabels))
}

func TestRunOnceRunsBothJobsAsSystem(t *testing.T) {
	s, escalation, notifications, registry := newTestScheduler(t, Config{RetryBatchSize: 7})
	escalation.report = escalationdomain.TickReport{Scanned: 3}

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, 1, escalation.calls)
	require.Len(t, escalation.actors, 1)
	assert.Equal(t, actorcontext.RoleSystem, escalation.actors[0].Role)
	assert.Equal(t, []int{7}, notifications.limits)

	labels := map[string]string{"service": "redevance", "env": "test", "job": JobEscalationTick, "resource": "note"}
	assert.Equal(t, 3.0, getCounterValue(t, registry, "redevance_scheduler_batch_processed_total", labels))
}

func TestRunOnceJoinsJobErrors(t *testing.T) {
	s, escalation, notifications, _ := newTestScheduler(t, Config{})
	escalation.err = errors.New("database unavailable")

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobEscalationTick)
	assert.Equal(t, 1, notifications.retryCalls)
}

func TestEnabledJobsFilter(t *testing.T) {
	s, escalation, notifications, registry := newTestScheduler(t, Config{EnabledJobs: []string{" Notification_Retry "}})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, escalation.calls)
	assert.Equal(t, 1, notifications.retryCalls)

	labels := map[string]string{"service": "redevance", "env": "test", "job": JobEscalationTick, "reason": obsmetrics.SchedulerSkipReasonDisabled}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "redevance_scheduler_job_skipped_total", labels))
}

func TestHeldLockSkipsJob(t *testing.T) {
	s, escalation, notifications, registry := newTestScheduler(t, Config{})
	locker := &fakeLocker{held: map[string]bool{lockKeyPrefix + JobEscalationTick: true}}
	s.locker = locker

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, escalation.calls)
	assert.Equal(t, 1, notifications.retryCalls)
	assert.Equal(t, []string{lockKeyPrefix + JobNotificationRetry}, locker.released)

	labels := map[string]string{"service": "redevance", "env": "test", "job": JobEscalationTick, "reason": obsmetrics.SchedulerSkipReasonLockHeld}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "redevance_scheduler_job_skipped_total", labels))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{TickTimeout: time.Hour, LockTTL: time.Minute}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 50, cfg.RetryBatchSize)
	assert.Equal(t, time.Hour+time.Minute, cfg.LockTTL)
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			require.NotNil(t, metric.Counter, "metric %s is not a counter", name)
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
