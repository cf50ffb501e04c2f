package scheduler

import (
	"context"

	"go.uber.org/zap"
)

const lockKeyPrefix = "redevance:scheduler:"

// acquire takes the job lease when a distributed locker is configured. Without one every
// replica runs the job; note-level row locks keep the work itself idempotent.
func (s *Scheduler) acquire(ctx context.Context, job string) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	key := lockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("scheduler lock release failed", zap.String("job", job), zap.Error(err))
		}
	}, true, nil
}
