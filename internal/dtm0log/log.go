// Package dtm0log is the DTM0 transaction log: an ordered journal of
// distributed transaction descriptors used to decide which transactions a
// recovering participant must have redone.
//
// A Log is either volatile (kept in memory, used by originators) or
// persistent (kept in a be.Segment and mutated only inside be.Tx
// transactions, used by participants). All record operations go through a
// Guard obtained from Lock.
package dtm0log

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// Options carries optional dependencies of a Log.
type Options struct {
	Logger  Logger
	Metrics Metrics
}

// Log is an ordered sequence of transaction records.
type Log struct {
	mu      sync.Mutex
	clock   dtx.Clock
	store   store
	logger  Logger
	metrics Metrics
	closed  bool
}

// NewVolatile returns an empty in-memory log.
func NewVolatile(clock dtx.Clock, opts Options) (*Log, error) {
	return newLog(clock, newVolatileStore(), opts)
}

// OpenPersistent attaches to the durable log whose header lives at ptr in
// seg. The log must have been formatted with Create.
func OpenPersistent(seg *be.Segment, ptr be.Ptr, clock dtx.Clock, opts Options) (*Log, error) {
	if seg == nil {
		return nil, errors.New("dtm0log: nil segment")
	}
	st, err := openDurable(seg, ptr)
	if err != nil {
		return nil, err
	}
	return newLog(clock, st, opts)
}

func newLog(clock dtx.Clock, st store, opts Options) (*Log, error) {
	if clock == nil {
		return nil, errors.New("dtm0log: nil clock")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	l := &Log{
		clock:   clock,
		store:   st,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	l.metrics.SetDTM0LogRecords(string(st.backend()), st.len())
	return l, nil
}

// Create formats an empty persistent log inside tx and returns the address
// of its header. The transaction must reserve Credit(OpCreate, 0, 0).
func Create(tx *be.Tx) (be.Ptr, error) {
	if tx == nil {
		panic("dtm0log: create without a transaction")
	}
	return createDurable(tx)
}

// Destroy releases the durable objects of an empty persistent log inside
// tx and finalizes l. The transaction must reserve Credit(OpDestroy, 0, 0)
// plus be.FreeCredit() for the log header.
func Destroy(tx *be.Tx, l *Log) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.store.(*durableStore)
	if !ok {
		panic("dtm0log: destroy of a volatile log")
	}
	if tx == nil {
		panic("dtm0log: destroy without a transaction")
	}
	if l.closed {
		panic("dtm0log: destroy of a finalized log")
	}
	if err := st.destroy(tx); err != nil {
		return err
	}
	l.closed = true
	return nil
}

// Fini drops the in-memory state of l. Durable records are left in place.
// Calling Fini more than once is allowed.
func (l *Log) Fini() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.store.fini()
	l.closed = true
}

// Backend reports where l keeps its records.
func (l *Log) Backend() Backend {
	return l.store.backend()
}

// IsPersistent reports whether l is backed by a segment.
func (l *Log) IsPersistent() bool {
	return l.store.backend() == Persistent
}

// Lock acquires the log mutex and returns the Guard through which records
// are accessed. The caller must call Guard.Unlock.
func (l *Log) Lock() *Guard {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		panic("dtm0log: use of a finalized log")
	}
	return &Guard{log: l, held: true}
}

// Guard is proof that the log mutex is held.
type Guard struct {
	log  *Log
	held bool
}

// Unlock releases the log mutex. The Guard must not be used afterwards.
func (g *Guard) Unlock() {
	g.check()
	g.held = false
	g.log.mu.Unlock()
}

func (g *Guard) check() {
	if !g.held {
		panic("dtm0log: guard used after Unlock")
	}
}

func (g *Guard) checkTx(tx *be.Tx) {
	switch persistent := g.log.IsPersistent(); {
	case persistent && tx == nil:
		panic("dtm0log: persistent log mutated without a transaction")
	case !persistent && tx != nil:
		panic("dtm0log: volatile log mutated inside a transaction")
	}
}

// Len returns the number of records.
func (g *Guard) Len() int {
	g.check()
	return g.log.store.len()
}

// Find returns a copy of the record logged under id.
func (g *Guard) Find(id dtx.ID) (Record, bool, error) {
	g.check()
	l := g.log
	s, ok, err := find(l.store, l.clock, id)
	if err != nil || !ok {
		l.metrics.IncDTM0LogFind(string(l.store.backend()), false)
		return Record{}, false, err
	}
	r, err := l.store.load(s)
	if err != nil {
		return Record{}, false, err
	}
	l.metrics.IncDTM0LogFind(string(l.store.backend()), true)
	return r, true, nil
}

// Update logs d. An unknown transaction is appended at the tail. For a
// known one the payload is attached if the record has none yet, and every
// participant state advances to the later of the logged and incoming
// states.
//
// A persistent log captures all changes in tx, which must reserve
// Credit(op, len(d.Participants), len(payload)) for the operation that
// produced d. A volatile log requires a nil tx. On error the caller must
// abort tx.
func (g *Guard) Update(tx *be.Tx, d dtx.Descriptor, payload []byte) error {
	g.check()
	g.checkTx(tx)
	l := g.log
	backend := string(l.store.backend())
	start := time.Now()

	result, err := g.update(tx, d, payload)
	if err != nil {
		result = "error"
	}
	l.metrics.ObserveDTM0LogUpdate(backend, result, time.Since(start))
	l.metrics.SetDTM0LogRecords(backend, l.store.len())
	return err
}

func (g *Guard) update(tx *be.Tx, d dtx.Descriptor, payload []byte) (string, error) {
	l := g.log
	if err := d.Validate(); err != nil {
		return "", err
	}

	s, ok, err := find(l.store, l.clock, d.ID)
	if err != nil {
		return "", err
	}
	if ok {
		if !s.desc.SameGroup(d) {
			return "", fmt.Errorf("%w: %s logged with %d participants, got %d",
				ErrGroupMismatch, d.ID, len(s.desc.Participants), len(d.Participants))
		}
		if err := l.store.merge(tx, s, d, payload); err != nil {
			return "", err
		}
		l.logger.Debug("dtm0 log record merged", "id", d.ID, "backend", l.store.backend())
		return "merged", nil
	}

	if last, ok, err := l.store.tail(); err != nil {
		return "", err
	} else if ok && l.clock.Compare(last.desc.ID, d.ID) == dtx.Greater {
		l.metrics.IncDTM0LogOutOfOrder(string(l.store.backend()))
		l.logger.Warn("dtm0 log insert out of order", "id", d.ID, "tail", last.desc.ID)
	}
	if err := l.store.insert(tx, d, payload); err != nil {
		return "", err
	}
	l.logger.Debug("dtm0 log record inserted",
		"id", d.ID,
		"backend", l.store.backend(),
		"placeholder", len(payload) == 0,
	)
	return "inserted", nil
}

// Records returns copies of all records in log order.
func (g *Guard) Records() ([]Record, error) {
	g.check()
	st := g.log.store
	out := make([]Record, 0, st.len())
	var loadErr error
	err := st.walk(func(s slot) bool {
		r, err := st.load(s)
		if err != nil {
			loadErr = err
			return false
		}
		out = append(out, r)
		return true
	})
	if err := errors.Join(err, loadErr); err != nil {
		return nil, err
	}
	return out, nil
}

// RedoCandidates returns, in log order, the records in which participant
// fid takes part but has not persisted the transaction yet. These are the
// transactions a recovering fid needs redone.
func (g *Guard) RedoCandidates(fid dtx.FID) ([]Record, error) {
	g.check()
	st := g.log.store
	var (
		out     []Record
		loadErr error
	)
	err := st.walk(func(s slot) bool {
		state, ok := s.desc.StateOf(fid)
		if !ok || state == dtx.Persistent {
			return true
		}
		r, err := st.load(s)
		if err != nil {
			loadErr = err
			return false
		}
		out = append(out, r)
		return true
	})
	if err := errors.Join(err, loadErr); err != nil {
		return nil, err
	}
	return out, nil
}

// StablePrefix returns the ID of the last record of the longest prefix of
// the log in which every record is stable, and the length of that prefix.
func (g *Guard) StablePrefix() (dtx.ID, int, error) {
	g.check()
	var (
		last dtx.ID
		n    int
	)
	err := g.log.store.walk(func(s slot) bool {
		if !s.desc.IsStable() {
			return false
		}
		last = s.desc.ID
		n++
		return true
	})
	return last, n, err
}
