package miner

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MineFunc mines one block the same way a manual request does
type MineFunc func(ctx context.Context) error

// Scheduler issues mine requests on a fixed period. A zero period pauses it.
type Scheduler struct {
	mine   MineFunc
	log    *logrus.Logger
	mutex  sync.Mutex
	period time.Duration
	reset  chan struct{}
}

// NewScheduler creates a scheduler firing every period
func NewScheduler(mine MineFunc, period time.Duration, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		mine:   mine,
		log:    log,
		period: period,
		reset:  make(chan struct{}, 1),
	}
}

// SetPeriod changes the period; zero pauses interval mining
func (s *Scheduler) SetPeriod(period time.Duration) {
	s.mutex.Lock()
	s.period = period
	s.mutex.Unlock()
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Period returns the current period
func (s *Scheduler) Period() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.period
}

// Run fires mine requests until ctx is done. A failed tick is logged and
// the next tick tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	start := func() {
		stop()
		if period := s.Period(); period > 0 {
			ticker = time.NewTicker(period)
			tick = ticker.C
			s.log.WithField("period", period).Info("Interval mining started")
		}
	}
	defer stop()

	start()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.reset:
			start()
		case <-tick:
			if err := s.mine(ctx); err != nil {
				s.log.Errorf("Failed to mine scheduled block: %v", err)
			}
		}
	}
}
