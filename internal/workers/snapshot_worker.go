package workers

import (
	"context"
	"log/slog"
	"time"

	"paygate_backend/internal/logger"
	"paygate_backend/internal/services"
)

// SnapshotWorker copies the ledger into object storage on a fixed interval.
type SnapshotWorker struct {
	snapshots services.SnapshotService
	interval  time.Duration
	log       *slog.Logger
}

func NewSnapshotWorker(snapshots services.SnapshotService, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		snapshots: snapshots,
		interval:  interval,
		log:       logger.With("worker", "snapshot"),
	}
}

// Start runs the worker in the background until ctx is cancelled. A
// non-positive interval disables it.
func (w *SnapshotWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("Snapshot worker disabled")
		return
	}
	go w.run(ctx)
}

func (w *SnapshotWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("Snapshot worker started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Snapshot worker stopped")
			return
		case <-ticker.C:
			w.snapshotOnce(ctx)
		}
	}
}

func (w *SnapshotWorker) snapshotOnce(ctx context.Context) {
	res, err := w.snapshots.CreateSnapshot(ctx)
	if err != nil {
		w.log.Error("Scheduled ledger snapshot failed", "error", err.Error())
		return
	}
	w.log.Info("Scheduled ledger snapshot stored", "path", res.Path, "records", res.Records)
}
