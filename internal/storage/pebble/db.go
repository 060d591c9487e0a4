// Package pebblestore wraps a Pebble database with a commit sync policy and
// a metrics hook. It is the durable medium behind be.Segment.
package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = pebble.ErrNotFound

// SyncMode controls when committed batches reach stable storage.
type SyncMode int

const (
	// SyncAlways fsyncs the WAL on every commit.
	SyncAlways SyncMode = iota
	// SyncInterval lets Pebble group WAL syncs within SyncInterval.
	SyncInterval
	// SyncNever leaves syncing to Pebble. Committed data may be lost on crash.
	SyncNever
)

// ParseSyncMode accepts "always", "interval" and "never".
func ParseSyncMode(s string) (SyncMode, error) {
	switch s {
	case "always", "":
		return SyncAlways, nil
	case "interval":
		return SyncInterval, nil
	case "never":
		return SyncNever, nil
	default:
		return 0, fmt.Errorf("pebblestore: unknown sync mode %q", s)
	}
}

func (m SyncMode) String() string {
	switch m {
	case SyncAlways:
		return "always"
	case SyncInterval:
		return "interval"
	case SyncNever:
		return "never"
	default:
		return fmt.Sprintf("sync(%d)", int(m))
	}
}

// Options configures Open.
type Options struct {
	// DataDir is the database directory. Ignored when InMemory is set.
	DataDir string
	Sync    SyncMode
	// SyncInterval is the group-commit window for SyncInterval.
	SyncInterval time.Duration
	// InMemory keeps the database on an in-memory filesystem.
	InMemory bool
	// PebbleOptions overrides the Pebble defaults when set.
	PebbleOptions *pebble.Options
	Metrics       MetricsHook
}

// MetricsHook observes storage operations.
type MetricsHook interface {
	ObserveStoreRead(d time.Duration, bytes int)
	ObserveStoreCommit(d time.Duration, ops uint32, bytes int)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) ObserveStoreRead(time.Duration, int)           {}
func (NoopMetrics) ObserveStoreCommit(time.Duration, uint32, int) {}

// DB is an open Pebble database.
type DB struct {
	inner   *pebble.DB
	sync    bool
	metrics MetricsHook
}

// Open creates or opens a database.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" && !opts.InMemory {
		return nil, errors.New("pebblestore: data dir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	if opts.InMemory {
		po.FS = vfs.NewMem()
	}

	switch opts.Sync {
	case SyncAlways, SyncNever:
	case SyncInterval:
		interval := opts.SyncInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		return nil, fmt.Errorf("pebblestore: unknown sync mode %d", int(opts.Sync))
	}

	dir := opts.DataDir
	if opts.InMemory && dir == "" {
		dir = "mem"
	}
	inner, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %q: %w", dir, err)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &DB{
		inner:   inner,
		sync:    opts.Sync != SyncNever,
		metrics: metrics,
	}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch returns a write-only batch. The caller commits it with
// CommitBatch and closes it afterwards.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch applies b atomically using the configured sync policy.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebblestore: nil batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	ops, size := b.Count(), b.Len()

	wo := pebble.NoSync
	if db.sync {
		wo = pebble.Sync
	}
	if err := b.Commit(wo); err != nil {
		return fmt.Errorf("pebblestore: commit: %w", err)
	}
	db.metrics.ObserveStoreCommit(time.Since(start), ops, size)
	return nil
}

// Get returns a copy of the value stored under key.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer.Close() }()
	out := append([]byte(nil), val...)
	db.metrics.ObserveStoreRead(time.Since(start), len(out))
	return out, nil
}

// Set writes a single key outside of any batch.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer func() { _ = b.Close() }()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Delete removes a single key outside of any batch.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer func() { _ = b.Close() }()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// ScanPrefix calls fn for every key starting with prefix, in key order.
// Key and value are only valid during the call. Returning false stops the
// scan.
func (db *DB) ScanPrefix(prefix []byte, fn func(key, value []byte) bool) error {
	it, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("pebblestore: iter: %w", err)
	}
	for ok := it.First(); ok; ok = it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return fmt.Errorf("pebblestore: iter: %w", err)
	}
	return it.Close()
}

// Flush forces memtables to disk.
func (db *DB) Flush() error {
	return db.inner.Flush()
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
