package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtm0log"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
	pebblestore "github.com/i-melnichenko/dtm0-lab/internal/storage/pebble"
)

// LogRoot is the segment root under which the node keeps its log.
const LogRoot = "dtm0.log"

// StorageMetrics observes both the log and the Pebble store below it.
type StorageMetrics interface {
	dtm0log.Metrics
	pebblestore.MetricsHook
}

// Storage owns the node's log and, for the persistent backend, the store
// and segment that hold it.
type Storage struct {
	DB      *pebblestore.DB
	Segment *be.Segment
	Log     *dtm0log.Log
}

// OpenStorage opens the log selected by cfg. A persistent log is created
// on first start and reopened from LogRoot afterwards.
func OpenStorage(ctx context.Context, cfg Config, logger dtm0log.Logger, metrics StorageMetrics) (*Storage, error) {
	opts := dtm0log.Options{Logger: logger}
	if metrics != nil {
		opts.Metrics = metrics
	}

	if cfg.LogBackend == LogBackendVolatile {
		l, err := dtm0log.NewVolatile(dtx.LogicalClock{}, opts)
		if err != nil {
			return nil, fmt.Errorf("app: open volatile log: %w", err)
		}
		return &Storage{Log: l}, nil
	}

	mode, err := pebblestore.ParseSyncMode(cfg.Fsync)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	storeOpts := pebblestore.Options{
		DataDir: filepath.Join(cfg.DataDir, "log"),
		Sync:    mode,
	}
	if metrics != nil {
		storeOpts.Metrics = metrics
	}
	db, err := pebblestore.Open(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	seg, err := be.OpenSegment(db, be.SegmentOptions{
		Capacity:    cfg.SegmentCapacity,
		MaxTxCredit: be.Credit{Bytes: cfg.MaxTxCreditBytes},
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app: open segment: %w", err)
	}

	ptr, ok := seg.Root(LogRoot)
	if !ok {
		if ptr, err = createLog(ctx, seg); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	l, err := dtm0log.OpenPersistent(seg, ptr, dtx.LogicalClock{}, opts)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app: open persistent log: %w", err)
	}
	return &Storage{DB: db, Segment: seg, Log: l}, nil
}

func createLog(ctx context.Context, seg *be.Segment) (be.Ptr, error) {
	tx, err := seg.Open(dtm0log.Credit(dtm0log.OpCreate, 0, 0).Add(be.RootCredit(LogRoot)))
	if err != nil {
		return 0, fmt.Errorf("app: create log: %w", err)
	}
	ptr, err := dtm0log.Create(tx)
	if err != nil {
		tx.Abort()
		return 0, fmt.Errorf("app: create log: %w", err)
	}
	tx.SetRoot(LogRoot, ptr)
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("app: commit log creation: %w", err)
	}
	return ptr, nil
}

// Close finalises the log and closes the store.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	if s.Log != nil {
		s.Log.Fini()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
