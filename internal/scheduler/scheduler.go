package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redevance/internal/actorcontext"
	"github.com/smallbiznis/redevance/internal/clock"
	escalationdomain "github.com/smallbiznis/redevance/internal/escalation/domain"
	notificationdomain "github.com/smallbiznis/redevance/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Escalation    escalationdomain.Service
	Notifications notificationdomain.Service
	Locker        *ratelimit.Locker `optional:"true"`
	Config        Config            `optional:"true"`
}

// jobLocker is satisfied by *ratelimit.Locker.
type jobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	escalation    escalationdomain.Service
	notifications notificationdomain.Service
	locker        jobLocker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Escalation == nil || p.Notifications == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		escalation:    p.Escalation,
		notifications: p.Notifications,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	schedMetrics := obsmetrics.Scheduler()
	if !s.isJobEnabled(name) {
		schedMetrics.IncJobSkipped(name, obsmetrics.SchedulerSkipReasonDisabled)
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = actorcontext.WithActor(ctx, actorcontext.System())
	release, acquired, err := s.acquire(ctx, name)
	if err != nil {
		schedMetrics.IncJobError(name, err)
		return fmt.Errorf("%s: lock: %w", name, err)
	}
	if !acquired {
		schedMetrics.IncJobSkipped(name, obsmetrics.SchedulerSkipReasonLockHeld)
		s.logger(ctx).Debug("scheduler.job.skipped", zap.String("job", name), zap.String("reason", "lock_held"))
		return nil
	}
	defer release()

	ctx, run := s.startJobRun(ctx, name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.id),
	)
	schedMetrics.IncJobRun(name)

	err = fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.failures == 0 {
		run.fail(1)
	}
	s.finishJobRun(ctx, run)
	if err == nil {
		return nil
	}

	// deadlines are soft: the next run resumes where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name      string
		BatchSize int
		Timeout   time.Duration
		Run       func(context.Context) error
	}{
		{JobEscalationTick, 0, s.cfg.TickTimeout, s.EscalationTickJob},
		{JobNotificationRetry, s.cfg.RetryBatchSize, s.cfg.RetryTimeout, s.NotificationRetryJob},
	}

	var err error
	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, job.BatchSize, job.Timeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) EscalationTickJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	report, err := s.escalation.RunTick(ctx)
	obsmetrics.Scheduler().AddBatchProcessed(JobEscalationTick, "note", report.Scanned)
	run.count("notes_scanned", report.Scanned)
	run.count("notes_overdue", report.MarkedOverdue)
	run.count("transitions", len(report.Transitions))
	run.count("notifications_attempted", report.Deliveries.Attempted)
	run.fail(report.Failed)
	if err != nil {
		s.jobFailed(ctx, run, "escalation tick failed", err)
		return err
	}
	return nil
}

func (s *Scheduler) NotificationRetryJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	report, err := s.notifications.RetryPending(ctx, s.cfg.RetryBatchSize)
	if err != nil {
		s.jobFailed(ctx, run, "notification retry failed", err)
		return err
	}
	obsmetrics.Scheduler().AddBatchProcessed(JobNotificationRetry, "notification", report.Attempted)
	run.count("notifications_attempted", report.Attempted)
	run.count("notifications_exhausted", report.Exhausted)
	if report.Exhausted > 0 {
		s.logger(ctx).Warn("notifications exhausted",
			zap.Int("exhausted", report.Exhausted),
		)
	}
	return nil
}
