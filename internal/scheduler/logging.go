package scheduler

import (
	"context"
	"sort"
	"time"

	obslogger "github.com/smallbiznis/redevance/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// jobRun is one execution of a scheduled job. Its id is the correlation id of
// every transition, delivery and log line the run produces.
type jobRun struct {
	job       string
	id        string
	batchSize int
	startedAt time.Time
	counts    map[string]int
	failures  int
}

type jobRunKey struct{}

// count adds n to a named tally reported when the run finishes.
func (r *jobRun) count(key string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.counts[key] += n
}

func (r *jobRun) fail(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.failures += n
}

func (r *jobRun) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("job", r.job),
		zap.String("run_id", r.id),
		zap.Int64("duration_ms", time.Since(r.startedAt).Milliseconds()),
		zap.Int("failures", r.failures),
	}
	keys := make([]string, 0, len(r.counts))
	for key := range r.counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fields = append(fields, zap.Int(key, r.counts[key]))
	}
	return fields
}

func (s *Scheduler) startJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
		counts:    map[string]int{},
	}
	ctx = correlation.ContextWithCorrelationID(ctx, run.id)
	ctx = context.WithValue(ctx, jobRunKey{}, run)

	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", job),
		zap.String("run_id", run.id),
		zap.Int("batch_size", batchSize),
		zap.Time("as_of", s.clock.Now()),
	)
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) finishJobRun(ctx context.Context, run *jobRun) {
	log := s.logger(ctx)
	if run.failures > 0 {
		log.Warn("scheduler.job.finish", run.fields()...)
		return
	}
	log.Info("scheduler.job.finish", run.fields()...)
}

// jobFailed records err against the run and logs it with its retry class.
func (s *Scheduler) jobFailed(ctx context.Context, run *jobRun, msg string, err error) {
	run.fail(1)
	s.logger(ctx).Error(msg,
		zap.String("job", run.job),
		zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
