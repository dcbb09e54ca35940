package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultExpirySchedule runs the sweep daily at 03:00 (cron with seconds).
const DefaultExpirySchedule = "0 0 3 * * *"

const sweepTimeout = 5 * time.Minute

// CardExpirer is the operation run by the expiry sweep.
type CardExpirer interface {
	ExpireStaleCards(ctx context.Context) (int, error)
}

// ExpiryScheduler periodically moves stale ACTIVE cards to EXPIRED
type ExpiryScheduler struct {
	cron    *cron.Cron
	expirer CardExpirer
	log     *logrus.Logger
}

// NewExpiryScheduler registers the sweep on spec
func NewExpiryScheduler(spec string, expirer CardExpirer, log *logrus.Logger) (*ExpiryScheduler, error) {
	if spec == "" {
		spec = DefaultExpirySchedule
	}
	s := &ExpiryScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
		),
		expirer: expirer,
		log:     log,
	}
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", spec, err)
	}
	return s, nil
}

// Sweep runs one expiry pass
func (s *ExpiryScheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.expirer.ExpireStaleCards(ctx)
	if err != nil {
		s.log.Errorf("Expiry sweep failed after %d cards: %v", n, err)
		return
	}
	s.log.Infof("Expiry sweep finished: %d cards expired in %s", n, time.Since(start))
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *ExpiryScheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("Expiry scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("Expiry scheduler stopped")
	return nil
}
