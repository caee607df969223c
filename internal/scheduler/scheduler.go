package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"invoice-scanner-go/internal/config"
	"invoice-scanner-go/internal/model"
	"invoice-scanner-go/internal/scanner"
)

// Runner performs one scan pass
type Runner interface {
	Run(ctx context.Context) (*model.Summary, error)
}

// Scheduler runs periodic scans
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	runner    Runner
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	lastRun   time.Time
	lastErr   error
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		config: cfg,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler. It may be called again after Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("@every %dm", s.config.IntervalMinutes)
	entryID, err := s.cron.AddFunc(schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)

	if s.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScan(s.currentContext())
		}()
	}
	return nil
}

// Stop stops the scheduler and cancels a scan in flight
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.cron.Remove(s.entryID)
	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce runs one scan immediately (for manual triggering)
func (s *Scheduler) RunOnce(ctx context.Context) (*model.Summary, error) {
	logrus.Info("Running invoice scan once")
	s.wg.Add(1)
	defer s.wg.Done()
	return s.runScan(ctx)
}

func (s *Scheduler) runScheduled() {
	s.wg.Add(1)
	defer s.wg.Done()
	s.runScan(s.currentContext())
}

func (s *Scheduler) currentContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Scheduler) runScan(ctx context.Context) (*model.Summary, error) {
	logrus.Info("Starting invoice scan")
	summary, err := s.runner.Run(ctx)

	s.mu.Lock()
	if !errors.Is(err, scanner.ErrScanInProgress) {
		s.lastRun = time.Now()
		s.lastErr = err
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, scanner.ErrScanInProgress):
		logrus.Info("Scan already in progress, skipping")
	case err != nil:
		logrus.Errorf("Scan failed: %v", err)
	case summary.InvoicesFound > 0:
		logrus.Infof("Found %d new invoices", summary.InvoicesFound)
	default:
		logrus.Info("No new invoices found")
	}
	return summary, err
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time the last scan finished, scheduled or manual
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// LastError returns the error of the last scan, if any
func (s *Scheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Wait waits for running scans to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
