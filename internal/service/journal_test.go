package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtm0log"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
	pebblestore "github.com/i-melnichenko/dtm0-lab/internal/storage/pebble"
)

var (
	origin = dtx.FID{Container: 0x100, Key: 1}
	pa1    = dtx.FID{Container: 0x200, Key: 1}
	pa2    = dtx.FID{Container: 0x200, Key: 2}
)

type recordingMetrics struct {
	mu      sync.Mutex
	ops     map[string]int
	pruned  int
	pruners map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: map[string]int{}, pruners: map[string]int{}}
}

func (m *recordingMetrics) ObserveJournalOp(_, op, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op+"/"+result]++
}

func (m *recordingMetrics) AddJournalPruned(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned += n
}

func (m *recordingMetrics) IncJournalPrunerRun(_, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruners[result]++
}

func (m *recordingMetrics) op(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops[key]
}

func (m *recordingMetrics) prunerRuns(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruners[result]
}

func newVolatileJournal(t *testing.T, metrics Metrics) *Journal {
	t.Helper()
	l, err := dtm0log.NewVolatile(dtx.LogicalClock{}, dtm0log.Options{})
	if err != nil {
		t.Fatalf("NewVolatile: %v", err)
	}
	t.Cleanup(l.Fini)
	j, err := NewJournal(l, nil, slog.Default(), testTracer, metrics, "n1")
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	return j
}

func newPersistentJournal(t *testing.T, metrics Metrics, opts be.SegmentOptions) (*Journal, *be.Segment) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{InMemory: true, Sync: pebblestore.SyncNever})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	seg, err := be.OpenSegment(db, opts)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	tx, err := seg.Open(dtm0log.Credit(dtm0log.OpCreate, 0, 0))
	if err != nil {
		t.Fatalf("open tx: %v", err)
	}
	ptr, err := dtm0log.Create(tx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	l, err := dtm0log.OpenPersistent(seg, ptr, dtx.LogicalClock{}, dtm0log.Options{})
	if err != nil {
		t.Fatalf("OpenPersistent: %v", err)
	}
	t.Cleanup(l.Fini)
	j, err := NewJournal(l, seg, slog.Default(), testTracer, metrics, "n1")
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	return j, seg
}

func forEachJournal(t *testing.T, fn func(t *testing.T, j *Journal)) {
	t.Run("volatile", func(t *testing.T) {
		fn(t, newVolatileJournal(t, nil))
	})
	t.Run("persistent", func(t *testing.T) {
		j, _ := newPersistentJournal(t, nil, be.SegmentOptions{})
		fn(t, j)
	})
}

func txid(ts uint64) dtx.ID {
	return dtx.ID{Originator: origin, Timestamp: ts}
}

func desc(ts uint64, s1, s2 dtx.State) dtx.Descriptor {
	return dtx.Descriptor{
		ID: txid(ts),
		Participants: []dtx.Participant{
			{FID: pa1, State: s1},
			{FID: pa2, State: s2},
		},
	}
}

func TestNewJournal_RejectsBackendSegmentMismatch(t *testing.T) {
	l, err := dtm0log.NewVolatile(dtx.LogicalClock{}, dtm0log.Options{})
	if err != nil {
		t.Fatalf("NewVolatile: %v", err)
	}
	db, err := pebblestore.Open(pebblestore.Options{InMemory: true, Sync: pebblestore.SyncNever})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()
	seg, err := be.OpenSegment(db, be.SegmentOptions{})
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}

	if _, err := NewJournal(l, seg, slog.Default(), testTracer, nil, "n1"); err == nil {
		t.Fatalf("expected error for volatile log with segment")
	}
	if _, err := NewJournal(nil, nil, slog.Default(), testTracer, nil, "n1"); err == nil {
		t.Fatalf("expected error for nil log")
	}
}

func TestJournal_RecordFindAndList(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j *Journal) {
		ctx := context.Background()
		if err := j.Record(ctx, dtm0log.OpSent, desc(1, dtx.InProgress, dtx.InProgress), []byte("req")); err != nil {
			t.Fatalf("record sent: %v", err)
		}
		if err := j.Record(ctx, dtm0log.OpPersistent, desc(1, dtx.Persistent, dtx.InProgress), nil); err != nil {
			t.Fatalf("record persistent: %v", err)
		}

		r, ok, err := j.Find(ctx, txid(1))
		if err != nil || !ok {
			t.Fatalf("expected record, got ok=%v err=%v", ok, err)
		}
		if want := desc(1, dtx.Persistent, dtx.InProgress); !r.Descriptor.Equal(want) {
			t.Fatalf("expected %s, got %s", want, r.Descriptor)
		}
		if string(r.Payload) != "req" {
			t.Fatalf("expected payload req, got %q", r.Payload)
		}

		recs, err := j.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
	})
}

func TestJournal_RecordRejectsNonRecordOps(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j *Journal) {
		for _, op := range []dtm0log.Op{dtm0log.OpCreate, dtm0log.OpDestroy, dtm0log.OpPrune} {
			err := j.Record(context.Background(), op, desc(1, dtx.InProgress, dtx.InProgress), nil)
			if !errors.Is(err, ErrInvalidOp) {
				t.Fatalf("expected ErrInvalidOp for %s, got %v", op, err)
			}
		}
	})
}

func TestJournal_RecordHonorsCanceledContext(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j *Journal) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := j.Record(ctx, dtm0log.OpSent, desc(1, dtx.InProgress, dtx.InProgress), nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if recs, _ := j.List(context.Background()); len(recs) != 0 {
			t.Fatalf("expected nothing recorded, got %d", len(recs))
		}
	})
}

func TestJournal_PruneAndPruneStable(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j *Journal) {
		ctx := context.Background()
		for ts := uint64(1); ts <= 3; ts++ {
			if err := j.Record(ctx, dtm0log.OpPersistent, desc(ts, dtx.Persistent, dtx.Persistent), []byte{byte(ts)}); err != nil {
				t.Fatalf("record %d: %v", ts, err)
			}
		}
		if err := j.Record(ctx, dtm0log.OpExecuted, desc(4, dtx.Executed, dtx.Persistent), []byte{4}); err != nil {
			t.Fatalf("record 4: %v", err)
		}
		if err := j.Record(ctx, dtm0log.OpPersistent, desc(5, dtx.Persistent, dtx.Persistent), []byte{5}); err != nil {
			t.Fatalf("record 5: %v", err)
		}

		n, err := j.Prune(ctx, txid(1))
		if err != nil || n != 1 {
			t.Fatalf("expected 1 pruned, got n=%d err=%v", n, err)
		}
		if _, err := j.Prune(ctx, txid(5)); !errors.Is(err, dtm0log.ErrUnstable) {
			t.Fatalf("expected ErrUnstable, got %v", err)
		}

		last, n, err := j.PruneStable(ctx)
		if err != nil {
			t.Fatalf("PruneStable: %v", err)
		}
		if n != 2 || last != txid(3) {
			t.Fatalf("expected 2 pruned through 3, got n=%d last=%s", n, last)
		}

		// Head is now unstable: nothing to do.
		if _, n, err := j.PruneStable(ctx); err != nil || n != 0 {
			t.Fatalf("expected idle PruneStable, got n=%d err=%v", n, err)
		}

		info, err := j.Info(ctx)
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		if info.Records != 2 || info.StableRecords != 0 {
			t.Fatalf("unexpected info %+v", info)
		}
	})
}

func TestJournal_RedoPlanSkipsPlaceholders(t *testing.T) {
	forEachJournal(t, func(t *testing.T, j *Journal) {
		ctx := context.Background()
		if err := j.Record(ctx, dtm0log.OpExecuted, desc(1, dtx.Persistent, dtx.Executed), []byte("one")); err != nil {
			t.Fatalf("record 1: %v", err)
		}
		// Persistent notice from pa1 before the request reached us.
		if err := j.Record(ctx, dtm0log.OpPersistent, desc(2, dtx.Persistent, dtx.InProgress), nil); err != nil {
			t.Fatalf("record 2: %v", err)
		}
		if err := j.Record(ctx, dtm0log.OpPersistent, desc(3, dtx.Persistent, dtx.Persistent), []byte("three")); err != nil {
			t.Fatalf("record 3: %v", err)
		}

		plan, err := j.RedoPlan(ctx, pa2)
		if err != nil {
			t.Fatalf("RedoPlan: %v", err)
		}
		if len(plan) != 1 || plan[0].ID() != txid(1) {
			t.Fatalf("expected plan [1], got %+v", plan)
		}
	})
}

func TestJournal_PersistentNoSpaceIsReported(t *testing.T) {
	metrics := newRecordingMetrics()
	j, seg := newPersistentJournal(t, metrics, be.SegmentOptions{Capacity: 400})
	used := seg.Used()

	err := j.Record(context.Background(), dtm0log.OpSent, desc(1, dtx.InProgress, dtx.InProgress), make([]byte, 1024))
	if !errors.Is(err, be.ErrNoSpace) {
		t.Fatalf("expected ErrNoSpace, got %v", err)
	}
	if got := seg.Used(); got != used {
		t.Fatalf("expected usage %d unchanged, got %d", used, got)
	}
	if got := metrics.op("sent/no_space"); got != 1 {
		t.Fatalf("expected one no_space observation, got %d", got)
	}
}

func TestJournal_PersistentTxTooLarge(t *testing.T) {
	j, _ := newPersistentJournal(t, nil, be.SegmentOptions{MaxTxCredit: be.Credit{Ops: 1 << 10, Bytes: 256}})
	err := j.Record(context.Background(), dtm0log.OpSent, desc(1, dtx.InProgress, dtx.InProgress), make([]byte, 4096))
	if !errors.Is(err, be.ErrTxTooLarge) {
		t.Fatalf("expected ErrTxTooLarge, got %v", err)
	}
}

func TestJournal_RunPrunerRemovesStableRecords(t *testing.T) {
	metrics := newRecordingMetrics()
	j := newVolatileJournal(t, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for ts := uint64(1); ts <= 3; ts++ {
		if err := j.Record(ctx, dtm0log.OpPersistent, desc(ts, dtx.Persistent, dtx.Persistent), nil); err != nil {
			t.Fatalf("record %d: %v", ts, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- j.RunPruner(ctx, 5*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		info, err := j.Info(context.Background())
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		if info.Records == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pruner did not empty the log, %d records left", info.Records)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from pruner, got %v", err)
	}
	if metrics.prunerRuns("pruned") == 0 {
		t.Fatalf("expected at least one pruning run")
	}
}

func TestJournal_RunPrunerDisabled(t *testing.T) {
	j := newVolatileJournal(t, nil)
	if err := j.RunPruner(context.Background(), 0); err != nil {
		t.Fatalf("expected nil for disabled pruner, got %v", err)
	}
}
