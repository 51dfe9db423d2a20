package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/sicney/eve-mo/internal/engine"
	"github.com/sicney/eve-mo/internal/logger"
)

// Runner performs one analysis run.
type Runner interface {
	Run(ctx context.Context, progress func(string)) (*engine.RunResult, error)
}

// Scheduler triggers analysis runs on a cron schedule or on demand. At most one
// run is in flight; triggers that arrive during a run are dropped.
type Scheduler struct {
	Cron    *cron.Cron
	runner  Runner
	publish func(*engine.RunResult)
	ctx     context.Context

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Scheduler. publish receives every successful result and may be nil.
func New(ctx context.Context, runner Runner, publish func(*engine.RunResult)) *Scheduler {
	if publish == nil {
		publish = func(*engine.RunResult) {}
	}
	return &Scheduler{
		Cron:    cron.New(),
		runner:  runner,
		publish: publish,
		ctx:     ctx,
	}
}

// Register schedules runs with a standard 5-field cron expression.
func (s *Scheduler) Register(schedule string) error {
	if _, err := s.Cron.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("register schedule %q: %w", schedule, err)
	}
	logger.Info("Scheduler", fmt.Sprintf("Analysis scheduled: %s", schedule))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Info("Scheduler", "Scheduler started")
}

// Stop stops the cron scheduler and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	logger.Info("Scheduler", "Scheduler stopped")
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RunNow starts a run in the background. It returns false when one is already running.
func (s *Scheduler) RunNow() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run()
	}()
	return true
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		logger.Warn("Scheduler", "Previous run still in progress, skipping")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Store(false)
	s.run()
}

func (s *Scheduler) run() {
	logger.Section("Scheduled analysis")
	res, err := s.runner.Run(s.ctx, func(msg string) { logger.Info("Scheduler", msg) })
	if err != nil {
		logger.Error("Scheduler", fmt.Sprintf("Run failed: %v", err))
		return
	}
	s.publish(res)
	logger.Success("Scheduler", fmt.Sprintf("Run finished: %d BUY, %d SELL", res.Summary.BuyCount, res.Summary.SellCount))
}
