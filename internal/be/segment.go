// Package be is a small transactional backing engine: a durable segment of
// addressable objects, credit-reserved transactions over it, and a durable
// doubly linked list built from segment objects.
package be

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tidwall/btree"

	pebblestore "github.com/i-melnichenko/dtm0-lab/internal/storage/pebble"
)

var (
	// ErrNoSpace is returned when an allocation does not fit the segment.
	ErrNoSpace = errors.New("be: no space left in segment")
	// ErrTxTooLarge is returned by Open when the requested credit exceeds
	// the per-transaction maximum.
	ErrTxTooLarge = errors.New("be: tx credit too large")
	// ErrTxDone is returned when committing a closed transaction.
	ErrTxDone = errors.New("be: tx already closed")
	// ErrBadPtr is returned when reading an address that is not allocated.
	ErrBadPtr = errors.New("be: pointer is not allocated")
	// ErrCorrupt is returned when stored data cannot be decoded.
	ErrCorrupt = errors.New("be: corrupt object")
)

// Ptr is the address of an object inside a segment.
type Ptr uint64

// NilPtr never addresses an object.
const NilPtr Ptr = 0

func (p Ptr) String() string {
	return fmt.Sprintf("%#x", uint64(p))
}

// SegmentOptions configures OpenSegment.
type SegmentOptions struct {
	// Capacity bounds the total size of live objects. Zero means unbounded.
	Capacity uint64
	// MaxTxCredit bounds the credit of a single transaction. A zero field
	// leaves that dimension unbounded.
	MaxTxCredit Credit
}

// Segment is a durable address space. The whole image is kept in memory;
// transactions mutate the image immediately and persist their changes as
// one Pebble batch on commit.
type Segment struct {
	db   *pebblestore.DB
	opts SegmentOptions

	mu      sync.RWMutex
	allocs  btree.Map[Ptr, uint64]
	objects map[Ptr][]byte
	roots   map[string]Ptr
	next    Ptr
	used    uint64
}

var (
	allocPrefix = []byte("be/a/")
	objPrefix   = []byte("be/o/")
	rootPrefix  = []byte("be/r/")
	nextKey     = []byte("be/n")
)

// OpenSegment loads the segment stored in db.
func OpenSegment(db *pebblestore.DB, opts SegmentOptions) (*Segment, error) {
	if db == nil {
		return nil, errors.New("be: nil store")
	}
	s := &Segment{
		db:      db,
		opts:    opts,
		objects: make(map[Ptr][]byte),
		roots:   make(map[string]Ptr),
		next:    1,
	}

	var decodeErr error
	err := db.ScanPrefix(allocPrefix, func(k, v []byte) bool {
		ptr, ok := ptrFromKey(k, allocPrefix)
		if !ok || len(v) != 8 {
			decodeErr = fmt.Errorf("%w: allocation entry %q", ErrCorrupt, k)
			return false
		}
		size := binary.BigEndian.Uint64(v)
		s.allocs.Set(ptr, size)
		s.used += size
		return true
	})
	if err := errors.Join(err, decodeErr); err != nil {
		return nil, fmt.Errorf("be: load allocations: %w", err)
	}

	err = db.ScanPrefix(objPrefix, func(k, v []byte) bool {
		ptr, ok := ptrFromKey(k, objPrefix)
		if !ok {
			decodeErr = fmt.Errorf("%w: object key %q", ErrCorrupt, k)
			return false
		}
		if _, live := s.allocs.Get(ptr); !live {
			decodeErr = fmt.Errorf("%w: object %s has no allocation", ErrCorrupt, ptr)
			return false
		}
		s.objects[ptr] = append([]byte(nil), v...)
		return true
	})
	if err := errors.Join(err, decodeErr); err != nil {
		return nil, fmt.Errorf("be: load objects: %w", err)
	}

	err = db.ScanPrefix(rootPrefix, func(k, v []byte) bool {
		if len(v) != 8 {
			decodeErr = fmt.Errorf("%w: root %q", ErrCorrupt, k)
			return false
		}
		s.roots[string(k[len(rootPrefix):])] = Ptr(binary.BigEndian.Uint64(v))
		return true
	})
	if err := errors.Join(err, decodeErr); err != nil {
		return nil, fmt.Errorf("be: load roots: %w", err)
	}

	v, err := db.Get(nextKey)
	switch {
	case err == nil && len(v) == 8:
		s.next = Ptr(binary.BigEndian.Uint64(v))
	case err == nil:
		return nil, fmt.Errorf("be: load next address: %w", ErrCorrupt)
	case !errors.Is(err, pebblestore.ErrNotFound):
		return nil, fmt.Errorf("be: load next address: %w", err)
	}
	if last, _, ok := s.allocs.Max(); ok && last >= s.next {
		s.next = last + 1
	}
	return s, nil
}

// Read returns a copy of the object at ptr. An allocated object that was
// never captured reads as nil.
func (s *Segment) Read(ptr Ptr) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.allocs.Get(ptr); !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadPtr, ptr)
	}
	return append([]byte(nil), s.objects[ptr]...), nil
}

// Size returns the allocated size of the object at ptr.
func (s *Segment) Size(ptr Ptr) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allocs.Get(ptr)
}

// Root returns the address registered under name.
func (s *Segment) Root(name string) (Ptr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.roots[name]
	return p, ok
}

// Used returns the total size of live objects.
func (s *Segment) Used() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Capacity returns the configured capacity, zero when unbounded.
func (s *Segment) Capacity() uint64 {
	return s.opts.Capacity
}

// Available returns how many more bytes can be allocated.
func (s *Segment) Available() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableLocked()
}

func (s *Segment) availableLocked() uint64 {
	if s.opts.Capacity == 0 {
		return math.MaxUint64
	}
	if s.used >= s.opts.Capacity {
		return 0
	}
	return s.opts.Capacity - s.used
}

// Allocations returns the number of live objects.
func (s *Segment) Allocations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allocs.Len()
}

// ScanAllocations calls fn for every live object in address order.
func (s *Segment) ScanAllocations(fn func(ptr Ptr, size uint64) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.allocs.Scan(fn)
}

// Open starts a transaction that may consume up to credit.
func (s *Segment) Open(credit Credit) (*Tx, error) {
	if limit := s.opts.MaxTxCredit; (limit.Ops != 0 && credit.Ops > limit.Ops) || (limit.Bytes != 0 && credit.Bytes > limit.Bytes) {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTxTooLarge, credit, s.opts.MaxTxCredit)
	}
	return &Tx{
		seg:      s,
		batch:    s.db.NewBatch(),
		reserved: credit,
		undo:     make(map[Ptr]undoEntry),
		rootUndo: make(map[string]rootUndo),
	}, nil
}

func ptrKey(prefix []byte, p Ptr) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], uint64(p))
	return k
}

func ptrFromKey(k, prefix []byte) (Ptr, bool) {
	if len(k) != len(prefix)+8 {
		return NilPtr, false
	}
	return Ptr(binary.BigEndian.Uint64(k[len(prefix):])), true
}

func rootKey(name string) []byte {
	return append(append([]byte(nil), rootPrefix...), name...)
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
