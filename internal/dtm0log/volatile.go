package dtm0log

import (
	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// volatileStore keeps records in an index-addressed slice. Pruning
// advances head; the dead prefix is reclaimed once it dominates the slice.
type volatileStore struct {
	recs []*Record
	head int
}

func newVolatileStore() *volatileStore {
	return &volatileStore{}
}

func (v *volatileStore) backend() Backend { return Volatile }

func (v *volatileStore) len() int { return len(v.recs) - v.head }

func (v *volatileStore) walk(fn func(slot) bool) error {
	for i := v.head; i < len(v.recs); i++ {
		if !fn(v.slotAt(i)) {
			return nil
		}
	}
	return nil
}

func (v *volatileStore) tail() (slot, bool, error) {
	if v.len() == 0 {
		return slot{}, false, nil
	}
	return v.slotAt(len(v.recs) - 1), true, nil
}

func (v *volatileStore) slotAt(i int) slot {
	r := v.recs[i]
	return slot{desc: r.Descriptor, hasPayload: !r.IsPlaceholder(), idx: i}
}

func (v *volatileStore) load(s slot) (Record, error) {
	r := v.recs[s.idx]
	return cloneRecord(r.Descriptor, r.Payload), nil
}

func (v *volatileStore) insert(_ *be.Tx, d dtx.Descriptor, payload []byte) error {
	r := cloneRecord(d, payload)
	v.recs = append(v.recs, &r)
	return nil
}

func (v *volatileStore) merge(_ *be.Tx, s slot, d dtx.Descriptor, payload []byte) error {
	r := v.recs[s.idx]
	if r.IsPlaceholder() && len(payload) > 0 {
		r.Payload = append([]byte(nil), payload...)
	}
	r.Descriptor.Merge(d)
	return nil
}

func (v *volatileStore) removeHead(_ *be.Tx, n int) error {
	for i := v.head; i < v.head+n; i++ {
		v.recs[i] = nil
	}
	v.head += n
	if v.head == len(v.recs) {
		v.recs, v.head = v.recs[:0], 0
	} else if v.head > len(v.recs)/2 {
		v.recs = append([]*Record(nil), v.recs[v.head:]...)
		v.head = 0
	}
	return nil
}

func (v *volatileStore) removeCredit(slot) be.Credit { return be.Credit{} }

func (v *volatileStore) fini() {
	v.recs, v.head = nil, 0
}
