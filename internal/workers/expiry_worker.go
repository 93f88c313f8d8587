package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultSweepBatch = 200

// OverdueExpirer settles pending payments past their deadline.
type OverdueExpirer interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker periodically expires payments nobody else finished: PIX
// payments (which have no monitor) and Bitcoin payments whose monitor was lost.
type ExpiryWorker struct {
	expirer  OverdueExpirer
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

func NewExpiryWorker(expirer OverdueExpirer, interval time.Duration, logger *zap.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		expirer:  expirer,
		interval: interval,
		batch:    defaultSweepBatch,
		logger:   logger,
	}
}

// Start runs the sweep loop in the background until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *ExpiryWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass, draining full batches until the backlog is gone.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		settled, err := w.expirer.ExpireOverdue(ctx, w.batch)
		total += settled
		if err != nil {
			w.logger.Error("Error expiring overdue payments", zap.Error(err))
			break
		}
		if settled < w.batch {
			break
		}
	}
	if total > 0 {
		w.logger.Info("Expired overdue payments", zap.Int("count", total))
	}
	return total
}
