package rate

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

type Syncer interface {
	Sync(ctx context.Context, force bool, hadCachedRates bool) (SyncOutcome, error)
	HasRates() bool
}

// Scheduler periodically runs a non-forced sync so stale rates get refreshed
// without user interaction. A zero interval disables it.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	// -----
	mu    sync.Mutex
	sched gocron.Scheduler
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		logrus.Info("Rates recheck scheduler disabled")
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	job := func(jobCtx context.Context) {
		outcome, syncErr := s.syncer.Sync(jobCtx, false, s.syncer.HasRates())
		if syncErr != nil {
			logrus.Errorf("Scheduled rates sync failed: %v", syncErr)
			return
		}
		logrus.Debugf("Scheduled rates sync finished with status %s", outcome.Status)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(job),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}

	s.mu.Lock()
	s.sched = scheduler
	s.mu.Unlock()
	scheduler.Start()

	// Stop scheduler when the provided context is canceled.
	go func() {
		<-ctx.Done()
		if sdErr := s.Shutdown(); sdErr != nil {
			logrus.Errorf("Scheduler shutdown error: %v", sdErr)
		}
	}()
	return nil
}

// Shutdown stops the scheduler. Safe to call more than once and concurrently.
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	if sched == nil {
		return nil
	}
	return sched.Shutdown()
}

func (s *Scheduler) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched != nil
}

func NewScheduler(syncer Syncer, interval time.Duration) *Scheduler {
	return &Scheduler{syncer: syncer, interval: interval}
}
