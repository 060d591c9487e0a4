package dtm0log

import (
	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// Backend identifies where a log keeps its records.
type Backend string

// Supported backends.
const (
	Volatile   Backend = "volatile"
	Persistent Backend = "persistent"
)

// slot is a record as seen while walking a backend. The payload is not
// loaded. A volatile slot shares its descriptor with the stored record, so
// it is read-only and only valid while the log mutex is held; load returns
// an independent copy.
type slot struct {
	desc       dtx.Descriptor
	hasPayload bool

	// volatile position
	idx int
	// durable record
	rec durableRecord
}

// store is the ordered record sequence behind a Log. Methods are called
// with the log mutex held. Durable implementations capture every change
// in tx; volatile ones receive a nil tx.
type store interface {
	backend() Backend
	len() int
	// walk visits records head to tail until fn returns false.
	walk(fn func(slot) bool) error
	tail() (slot, bool, error)
	load(s slot) (Record, error)
	insert(tx *be.Tx, d dtx.Descriptor, payload []byte) error
	merge(tx *be.Tx, s slot, d dtx.Descriptor, payload []byte) error
	// removeHead releases the first n records in order.
	removeHead(tx *be.Tx, n int) error
	// removeCredit is the credit removeHead needs for s.
	removeCredit(s slot) be.Credit
	fini()
}

func find(st store, clock dtx.Clock, id dtx.ID) (slot, bool, error) {
	var (
		found slot
		ok    bool
	)
	err := st.walk(func(s slot) bool {
		if clock.Compare(s.desc.ID, id) == dtx.Equal {
			found, ok = s, true
			return false
		}
		return true
	})
	return found, ok, err
}
