package dtm0log

import (
	"fmt"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// durableStore keeps records in a segment. Every record is three objects
// (record, participant array, optional payload) plus a link in the main
// list.
type durableStore struct {
	seg  *be.Segment
	hdr  be.Ptr
	main *be.List
	aux  *be.List
	n    int
}

// createDurable formats an empty log inside tx and returns its header.
func createDurable(tx *be.Tx) (be.Ptr, error) {
	hdr, err := tx.Alloc(logHeaderSize)
	if err != nil {
		return be.NilPtr, err
	}
	main, err := be.CreateList(tx)
	if err != nil {
		tx.Free(hdr)
		return be.NilPtr, err
	}
	aux, err := be.CreateList(tx)
	if err != nil {
		tx.Free(main.Ptr())
		tx.Free(hdr)
		return be.NilPtr, err
	}
	tx.Capture(hdr, encodeLogHeader(logHeader{main: main.Ptr(), aux: aux.Ptr()}))
	return hdr, nil
}

func openDurable(seg *be.Segment, ptr be.Ptr) (*durableStore, error) {
	b, err := seg.Read(ptr)
	if err != nil {
		return nil, fmt.Errorf("dtm0log: open %s: %w", ptr, err)
	}
	h, err := decodeLogHeader(ptr, b)
	if err != nil {
		return nil, err
	}
	main, err := be.OpenList(seg, h.main)
	if err != nil {
		return nil, fmt.Errorf("dtm0log: open main list: %w", err)
	}
	aux, err := be.OpenList(seg, h.aux)
	if err != nil {
		return nil, fmt.Errorf("dtm0log: open aux list: %w", err)
	}
	n, err := main.Len()
	if err != nil {
		return nil, err
	}
	return &durableStore{seg: seg, hdr: ptr, main: main, aux: aux, n: int(n)}, nil
}

func (d *durableStore) backend() Backend { return Persistent }

func (d *durableStore) len() int { return d.n }

func (d *durableStore) readSlot(ptr be.Ptr) (slot, error) {
	b, err := d.seg.Read(ptr)
	if err != nil {
		return slot{}, err
	}
	rec, err := decodeRecord(ptr, b)
	if err != nil {
		return slot{}, err
	}
	pb, err := d.seg.Read(rec.pa)
	if err != nil {
		return slot{}, err
	}
	ps, err := decodeParticipants(rec.pa, pb, rec.nr)
	if err != nil {
		return slot{}, err
	}
	return slot{
		desc:       dtx.Descriptor{ID: rec.id, Participants: ps},
		hasPayload: rec.payload != be.NilPtr,
		rec:        rec,
	}, nil
}

func (d *durableStore) walk(fn func(slot) bool) error {
	var walkErr error
	err := d.main.ForEach(func(e be.Elem) bool {
		s, err := d.readSlot(e.Owner)
		if err != nil {
			walkErr = err
			return false
		}
		return fn(s)
	})
	if err != nil {
		return err
	}
	return walkErr
}

func (d *durableStore) tail() (slot, bool, error) {
	e, ok, err := d.main.Tail()
	if err != nil || !ok {
		return slot{}, false, err
	}
	s, err := d.readSlot(e.Owner)
	if err != nil {
		return slot{}, false, err
	}
	return s, true, nil
}

func (d *durableStore) load(s slot) (Record, error) {
	r := Record{Descriptor: s.desc.Clone()}
	if s.rec.payload == be.NilPtr {
		return r, nil
	}
	b, err := d.seg.Read(s.rec.payload)
	if err != nil {
		return Record{}, fmt.Errorf("dtm0log: payload of %s: %w", s.desc.ID, err)
	}
	if uint64(len(b)) != s.rec.payloadLen {
		return Record{}, fmt.Errorf("%w: payload of %s has %d bytes, want %d",
			ErrCorrupt, s.desc.ID, len(b), s.rec.payloadLen)
	}
	r.Payload = b
	return r, nil
}

func (d *durableStore) insert(tx *be.Tx, desc dtx.Descriptor, payload []byte) error {
	nr := len(desc.Participants)
	need := recordSize + participantsSize(nr) + uint64(len(payload))
	if avail := d.seg.Available(); need > avail {
		return fmt.Errorf("%w: record %s needs %d bytes, %d available", be.ErrNoSpace, desc.ID, need, avail)
	}

	rec := durableRecord{id: desc.ID, nr: uint64(nr), payloadLen: uint64(len(payload))}
	var allocated []be.Ptr
	unwind := func(err error) error {
		for i := len(allocated) - 1; i >= 0; i-- {
			tx.Free(allocated[i])
		}
		return err
	}

	var err error
	if rec.ptr, err = tx.Alloc(recordSize); err != nil {
		return err
	}
	allocated = append(allocated, rec.ptr)
	if rec.pa, err = tx.Alloc(participantsSize(nr)); err != nil {
		return unwind(err)
	}
	allocated = append(allocated, rec.pa)
	if len(payload) > 0 {
		if rec.payload, err = tx.Alloc(uint64(len(payload))); err != nil {
			return unwind(err)
		}
		allocated = append(allocated, rec.payload)
	}
	if rec.link, err = be.CreateLink(tx, rec.ptr); err != nil {
		return unwind(err)
	}

	tx.Capture(rec.pa, encodeParticipants(desc.Participants))
	if len(payload) > 0 {
		tx.Capture(rec.payload, payload)
	}
	tx.Capture(rec.ptr, encodeRecord(rec))
	if err := d.main.AddTail(tx, rec.link); err != nil {
		return err
	}
	d.n++
	return nil
}

func (d *durableStore) merge(tx *be.Tx, s slot, desc dtx.Descriptor, payload []byte) error {
	rec := s.rec
	if !s.hasPayload && len(payload) > 0 {
		p, err := tx.Alloc(uint64(len(payload)))
		if err != nil {
			return err
		}
		tx.Capture(p, payload)
		rec.payload, rec.payloadLen = p, uint64(len(payload))
		tx.Capture(rec.ptr, encodeRecord(rec))
	}
	merged := s.desc
	if merged.Merge(desc) {
		tx.Capture(rec.pa, encodeParticipants(merged.Participants))
	}
	return nil
}

func (d *durableStore) removeHead(tx *be.Tx, n int) error {
	for i := 0; i < n; i++ {
		e, ok, err := d.main.Head()
		if err != nil {
			return err
		}
		if !ok {
			panic(fmt.Sprintf("dtm0log: removing %d records from a log of %d", n, i))
		}
		b, err := d.seg.Read(e.Owner)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(e.Owner, b)
		if err != nil {
			return err
		}
		if err := d.main.Del(tx, e.Link); err != nil {
			return err
		}
		if err := be.DestroyLink(tx, e.Link); err != nil {
			return err
		}
		if rec.payload != be.NilPtr {
			tx.Free(rec.payload)
		}
		tx.Free(rec.pa)
		tx.Free(rec.ptr)
		d.n--
	}
	return nil
}

func (d *durableStore) removeCredit(s slot) be.Credit {
	c := be.ListCredit(be.ListDel, 1).
		Add(be.ListCredit(be.LinkDestroy, 1)).
		Add(be.FreeCredit().Mul(2))
	if s.hasPayload {
		c = c.Add(be.FreeCredit())
	}
	return c
}

// destroy releases both lists and the header. The main list must be empty.
func (d *durableStore) destroy(tx *be.Tx) error {
	if d.n != 0 {
		panic(fmt.Sprintf("dtm0log: destroy of log %s holding %d records", d.hdr, d.n))
	}
	if err := d.main.Destroy(tx); err != nil {
		return err
	}
	if err := d.aux.Destroy(tx); err != nil {
		return err
	}
	tx.Free(d.hdr)
	return nil
}

func (d *durableStore) fini() {}
