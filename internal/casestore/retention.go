package casestore

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PruneSignals deletes signal events older than before and returns how many
// were removed.
func PruneSignals(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", before).Delete(&SignalEvent{})
	return res.RowsAffected, res.Error
}

// RetentionWorker periodically prunes old signal events.
type RetentionWorker struct {
	db       *gorm.DB
	keep     time.Duration
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewRetentionWorker(db *gorm.DB, keep, interval time.Duration, log *zap.Logger) *RetentionWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetentionWorker{
		db:       db,
		keep:     keep,
		interval: interval,
		log:      log.Named("retention"),
		now:      time.Now,
	}
}

// Run prunes once immediately and then on every tick until ctx is done.
// A zero keep duration disables pruning.
func (w *RetentionWorker) Run(ctx context.Context) error {
	if w.keep <= 0 {
		w.log.Info("signal retention disabled")
		return nil
	}
	w.log.Info("starting", zap.Duration("keep", w.keep), zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runCycle(ctx)
	for {
		select {
		case <-ticker.C:
			w.runCycle(ctx)
		case <-ctx.Done():
			w.log.Info("stopping")
			return nil
		}
	}
}

func (w *RetentionWorker) runCycle(ctx context.Context) {
	start := w.now()
	n, err := PruneSignals(ctx, w.db, start.Add(-w.keep))
	if err != nil {
		w.log.Warn("prune failed", zap.Error(err))
		return
	}
	w.log.Info("prune cycle complete", zap.Int64("deleted", n), zap.Duration("took", time.Since(start)))
}
