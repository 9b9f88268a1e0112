package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

// withRetry runs fn until it succeeds, fails with a non-conflict error,
// or the retry budget is spent.  Each attempt is a fresh transaction, so
// a conflicted attempt leaves nothing behind.
func (s *Service) withRetry(ctx context.Context, fields logrus.Fields, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.log.WithFields(fields).WithField("attempt", attempt).WithError(err).Debug("retrying after write conflict")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
		err = fn()
		if err == nil || !repository.IsConflict(err) {
			return err
		}
	}
	s.log.WithFields(fields).WithError(err).Warn("write conflict retries exhausted")
	return repository.ErrTransientConflict
}
