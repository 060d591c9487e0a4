package be

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Tx groups segment mutations into one atomic unit. Every mutation
// consumes part of the credit reserved by Segment.Open; running past the
// reservation is a programming error and panics.
//
// A Tx is not safe for concurrent use. Transactions that touch the same
// objects must be serialized by the caller.
type Tx struct {
	seg      *Segment
	batch    *pebble.Batch
	reserved Credit
	used     Credit
	undo     map[Ptr]undoEntry
	rootUndo map[string]rootUndo
	done     bool
}

// undoEntry is the state of an object before the tx first touched it.
type undoEntry struct {
	allocated bool
	size      uint64
	data      []byte
	hasData   bool
}

type rootUndo struct {
	ptr    Ptr
	exists bool
}

// Segment returns the segment the transaction mutates.
func (tx *Tx) Segment() *Segment { return tx.seg }

// Reserved returns the credit reserved at open.
func (tx *Tx) Reserved() Credit { return tx.reserved }

// Used returns the credit consumed so far.
func (tx *Tx) Used() Credit { return tx.used }

// Read returns the current contents of ptr, including changes made by this
// transaction.
func (tx *Tx) Read(ptr Ptr) ([]byte, error) {
	return tx.seg.Read(ptr)
}

func (tx *Tx) consume(c Credit, what string) {
	next := tx.used.Add(c)
	if !tx.reserved.Covers(next) {
		panic(fmt.Sprintf("be: %s overruns tx credit: need %s, reserved %s", what, next, tx.reserved))
	}
	tx.used = next
}

func (tx *Tx) mustBeOpen(op string) {
	if tx.done {
		panic("be: " + op + " on closed tx")
	}
}

func (tx *Tx) remember(ptr Ptr, u undoEntry) {
	if _, seen := tx.undo[ptr]; !seen {
		tx.undo[ptr] = u
	}
}

// Alloc reserves size bytes and returns the new object's address.
func (tx *Tx) Alloc(size uint64) (Ptr, error) {
	tx.mustBeOpen("alloc")
	if size == 0 {
		panic("be: zero-sized alloc")
	}
	s := tx.seg
	s.mu.Lock()
	defer s.mu.Unlock()

	if avail := s.availableLocked(); size > avail {
		return NilPtr, fmt.Errorf("%w: need %d bytes, %d available", ErrNoSpace, size, avail)
	}
	tx.consume(AllocCredit(), "alloc")

	ptr := s.next
	s.next++
	s.allocs.Set(ptr, size)
	s.used += size
	tx.remember(ptr, undoEntry{})

	_ = tx.batch.Set(ptrKey(allocPrefix, ptr), u64(size), nil)
	_ = tx.batch.Set(nextKey, u64(uint64(s.next)), nil)
	return ptr, nil
}

// Free releases the object at ptr. Releasing an object allocated by the
// same transaction is not charged, so unwinding a failed construction never
// needs credit beyond what the construction reserved.
func (tx *Tx) Free(ptr Ptr) {
	tx.mustBeOpen("free")
	s := tx.seg
	s.mu.Lock()
	defer s.mu.Unlock()

	size, ok := s.allocs.Get(ptr)
	if !ok {
		panic(fmt.Sprintf("be: free of unallocated %s", ptr))
	}
	if u, seen := tx.undo[ptr]; !seen || u.allocated {
		tx.consume(FreeCredit(), "free")
	}

	data, hasData := s.objects[ptr]
	tx.remember(ptr, undoEntry{allocated: true, size: size, data: data, hasData: hasData})
	s.allocs.Delete(ptr)
	delete(s.objects, ptr)
	s.used -= size

	_ = tx.batch.Delete(ptrKey(allocPrefix, ptr), nil)
	_ = tx.batch.Delete(ptrKey(objPrefix, ptr), nil)
}

// Capture replaces the contents of the object at ptr with data.
func (tx *Tx) Capture(ptr Ptr, data []byte) {
	tx.mustBeOpen("capture")
	s := tx.seg
	s.mu.Lock()
	defer s.mu.Unlock()

	size, ok := s.allocs.Get(ptr)
	if !ok {
		panic(fmt.Sprintf("be: capture of unallocated %s", ptr))
	}
	if uint64(len(data)) > size {
		panic(fmt.Sprintf("be: capture of %d bytes into %d-byte object %s", len(data), size, ptr))
	}
	tx.consume(CaptureCredit(uint64(len(data))), "capture")

	old, hasData := s.objects[ptr]
	tx.remember(ptr, undoEntry{allocated: true, size: size, data: old, hasData: hasData})
	cp := append([]byte(nil), data...)
	s.objects[ptr] = cp

	_ = tx.batch.Set(ptrKey(objPrefix, ptr), cp, nil)
}

// SetRoot registers ptr under name.
func (tx *Tx) SetRoot(name string, ptr Ptr) {
	tx.mustBeOpen("set root")
	tx.consume(RootCredit(name), "set root")
	s := tx.seg
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.rememberRoot(name)
	s.roots[name] = ptr
	_ = tx.batch.Set(rootKey(name), u64(uint64(ptr)), nil)
}

// DelRoot removes the root registered under name.
func (tx *Tx) DelRoot(name string) {
	tx.mustBeOpen("delete root")
	tx.consume(RootCredit(name), "delete root")
	s := tx.seg
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.rememberRoot(name)
	delete(s.roots, name)
	_ = tx.batch.Delete(rootKey(name), nil)
}

func (tx *Tx) rememberRoot(name string) {
	if _, seen := tx.rootUndo[name]; seen {
		return
	}
	p, ok := tx.seg.roots[name]
	tx.rootUndo[name] = rootUndo{ptr: p, exists: ok}
}

// Commit makes the transaction durable. If the write fails the segment
// image is rolled back as if Abort had been called.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	if err := tx.seg.db.CommitBatch(ctx, tx.batch); err != nil {
		tx.rollback()
		tx.close()
		return fmt.Errorf("be: commit: %w", err)
	}
	tx.close()
	return nil
}

// Abort discards every change made by the transaction. Aborting a closed
// transaction does nothing.
func (tx *Tx) Abort() {
	if tx.done {
		return
	}
	tx.rollback()
	tx.close()
}

func (tx *Tx) rollback() {
	s := tx.seg
	s.mu.Lock()
	defer s.mu.Unlock()

	for ptr, u := range tx.undo {
		if !u.allocated {
			if size, ok := s.allocs.Delete(ptr); ok {
				s.used -= size
			}
			delete(s.objects, ptr)
			continue
		}
		if _, ok := s.allocs.Get(ptr); !ok {
			s.used += u.size
		}
		s.allocs.Set(ptr, u.size)
		if u.hasData {
			s.objects[ptr] = u.data
		} else {
			delete(s.objects, ptr)
		}
	}
	for name, r := range tx.rootUndo {
		if r.exists {
			s.roots[name] = r.ptr
		} else {
			delete(s.roots, name)
		}
	}
}

func (tx *Tx) close() {
	tx.done = true
	_ = tx.batch.Close()
	tx.undo = nil
	tx.rootUndo = nil
}
