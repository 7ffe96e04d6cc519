package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const confirmationBatchSize = 50

// ConfirmationRetrier resends undelivered booking confirmations.
type ConfirmationRetrier interface {
	RetryPendingConfirmations(ctx context.Context, limit int) (int, error)
}

// Scheduler runs background jobs until stopped or its context ends.
type Scheduler struct {
	retrier  ConfirmationRetrier
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(retrier ConfirmationRetrier, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		retrier:  retrier,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("confirmation_interval", s.interval))
	go s.runConfirmationTask(ctx)
}

// Stop ends the jobs and waits for the running one to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

func (s *Scheduler) runConfirmationTask(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.retryConfirmations(ctx)
		case <-s.stopChan:
			s.logger.Info("Confirmation retry task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Confirmation retry task cancelled")
			return
		}
	}
}

func (s *Scheduler) retryConfirmations(ctx context.Context) {
	sent, err := s.retrier.RetryPendingConfirmations(ctx, confirmationBatchSize)
	if err != nil {
		s.logger.Error("Failed to retry confirmations", zap.Error(err))
		return
	}
	if sent > 0 {
		s.logger.Info("Pending confirmations delivered", zap.Int("sent", sent))
	}
}
