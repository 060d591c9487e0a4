package be

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	pebblestore "github.com/i-melnichenko/dtm0-lab/internal/storage/pebble"
)

func newSegment(t *testing.T, opts SegmentOptions) *Segment {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{InMemory: true, Sync: pebblestore.SyncNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	seg, err := OpenSegment(db, opts)
	require.NoError(t, err)
	return seg
}

func bigCredit() Credit {
	return Credit{Ops: 1 << 20, Bytes: 1 << 30}
}

func TestCreditArithmetic(t *testing.T) {
	c := CaptureCredit(10).Add(AllocCredit()).Mul(2)
	require.Equal(t, Credit{Ops: 4, Bytes: 2 * (10 + allocMetaSize)}, c)
	require.True(t, c.Covers(CaptureCredit(10)))
	require.False(t, CaptureCredit(10).Covers(c))
	require.True(t, Credit{}.IsZero())
	require.Equal(t, ObjectCredit(5), AllocCredit().Add(CaptureCredit(5)))
}

func TestWordsCodec(t *testing.T) {
	b := EncodeWords(1, 2, 1<<63)
	require.Len(t, b, int(WordsSize(3)))

	w, err := DecodeWords(b, 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 1 << 63}, w)

	_, err = DecodeWords(b, 2)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = DecodeWords(b[:len(b)-1], -1)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = DecodeWords([]byte{0x08, 0x01}, -1) // varint field
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestTxCommitPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir})
	require.NoError(t, err)
	seg, err := OpenSegment(db, SegmentOptions{})
	require.NoError(t, err)

	tx, err := seg.Open(ObjectCredit(5).Add(RootCredit("obj")))
	require.NoError(t, err)
	ptr, err := tx.Alloc(5)
	require.NoError(t, err)
	tx.Capture(ptr, []byte("hello"))
	tx.SetRoot("obj", ptr)
	require.NoError(t, tx.Commit(context.Background()))
	require.ErrorIs(t, tx.Commit(context.Background()), ErrTxDone)
	require.NoError(t, db.Close())

	db, err = pebblestore.Open(pebblestore.Options{DataDir: dir})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	seg, err = OpenSegment(db, SegmentOptions{})
	require.NoError(t, err)

	root, ok := seg.Root("obj")
	require.True(t, ok)
	require.Equal(t, ptr, root)
	got, err := seg.Read(root)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.Equal(t, uint64(5), seg.Used())

	// Addresses are never reused after reopen.
	tx, err = seg.Open(ObjectCredit(1))
	require.NoError(t, err)
	next, err := tx.Alloc(1)
	require.NoError(t, err)
	require.Greater(t, uint64(next), uint64(ptr))
	tx.Abort()
}

func TestTxAbortRestoresImage(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})
	ctx := context.Background()

	tx, err := seg.Open(ObjectCredit(3))
	require.NoError(t, err)
	keep, err := tx.Alloc(3)
	require.NoError(t, err)
	tx.Capture(keep, []byte("abc"))
	require.NoError(t, tx.Commit(ctx))

	tx, err = seg.Open(bigCredit())
	require.NoError(t, err)
	tx.Capture(keep, []byte("xyz"))
	fresh, err := tx.Alloc(8)
	require.NoError(t, err)
	tx.Capture(fresh, []byte("temp"))
	tx.SetRoot("r", fresh)
	tx.Free(keep)
	tx.Abort()
	tx.Abort()

	got, err := seg.Read(keep)
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
	_, err = seg.Read(fresh)
	require.ErrorIs(t, err, ErrBadPtr)
	_, ok := seg.Root("r")
	require.False(t, ok)
	require.Equal(t, uint64(3), seg.Used())
	require.Equal(t, 1, seg.Allocations())
}

func TestAllocNoSpace(t *testing.T) {
	seg := newSegment(t, SegmentOptions{Capacity: 10})

	tx, err := seg.Open(bigCredit())
	require.NoError(t, err)
	_, err = tx.Alloc(8)
	require.NoError(t, err)
	_, err = tx.Alloc(4)
	require.True(t, errors.Is(err, ErrNoSpace), "got %v", err)
	require.Equal(t, uint64(2), seg.Available())
	tx.Abort()
	require.Equal(t, uint64(10), seg.Available())
}

func TestOpenRejectsOversizedCredit(t *testing.T) {
	seg := newSegment(t, SegmentOptions{MaxTxCredit: Credit{Ops: 4, Bytes: 100}})

	_, err := seg.Open(Credit{Ops: 5, Bytes: 10})
	require.ErrorIs(t, err, ErrTxTooLarge)

	tx, err := seg.Open(Credit{Ops: 4, Bytes: 100})
	require.NoError(t, err)
	tx.Abort()
}

func TestOpenBoundsOnlyNonZeroDimensions(t *testing.T) {
	bytesOnly := newSegment(t, SegmentOptions{MaxTxCredit: Credit{Bytes: 100}})
	tx, err := bytesOnly.Open(Credit{Ops: 1000, Bytes: 100})
	require.NoError(t, err)
	tx.Abort()
	_, err = bytesOnly.Open(Credit{Ops: 1, Bytes: 101})
	require.ErrorIs(t, err, ErrTxTooLarge)

	opsOnly := newSegment(t, SegmentOptions{MaxTxCredit: Credit{Ops: 2}})
	tx, err = opsOnly.Open(Credit{Ops: 2, Bytes: 1 << 30})
	require.NoError(t, err)
	tx.Abort()
	_, err = opsOnly.Open(Credit{Ops: 3})
	require.ErrorIs(t, err, ErrTxTooLarge)
}

func TestCreditOverrunPanics(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})

	tx, err := seg.Open(ObjectCredit(4))
	require.NoError(t, err)
	defer tx.Abort()
	ptr, err := tx.Alloc(4)
	require.NoError(t, err)
	tx.Capture(ptr, []byte("ab"))
	require.Panics(t, func() { tx.Capture(ptr, []byte("cd")) })
}

func TestMisusePanics(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})

	tx, err := seg.Open(bigCredit())
	require.NoError(t, err)
	ptr, err := tx.Alloc(2)
	require.NoError(t, err)

	require.Panics(t, func() { tx.Capture(ptr, []byte("too long")) })
	require.Panics(t, func() { tx.Free(ptr + 100) })
	require.Panics(t, func() { _, _ = tx.Alloc(0) })
	tx.Abort()
	require.Panics(t, func() { tx.Capture(ptr, []byte("x")) })
}

func TestListOperations(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})
	ctx := context.Background()

	tx, err := seg.Open(ListCredit(ListCreate, 1))
	require.NoError(t, err)
	l, err := CreateList(tx)
	require.NoError(t, err)
	require.LessOrEqual(t, tx.Used().Bytes, tx.Reserved().Bytes)
	require.NoError(t, tx.Commit(ctx))

	owners := []Ptr{101, 102, 103}
	links := make([]Ptr, 0, len(owners))
	for _, o := range owners {
		credit := ListCredit(LinkCreate, 1).Add(ListCredit(ListAdd, 1))
		tx, err := seg.Open(credit)
		require.NoError(t, err)
		lk, err := CreateLink(tx, o)
		require.NoError(t, err)
		require.NoError(t, l.AddTail(tx, lk))
		require.True(t, tx.Reserved().Covers(tx.Used()))
		require.NoError(t, tx.Commit(ctx))
		links = append(links, lk)
	}

	require.Equal(t, owners, collectOwners(t, l))
	n, err := l.Len()
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	// Remove the middle element, then the head.
	for _, lk := range []Ptr{links[1], links[0]} {
		credit := ListCredit(ListDel, 1).Add(ListCredit(LinkDestroy, 1))
		tx, err := seg.Open(credit)
		require.NoError(t, err)
		require.NoError(t, l.Del(tx, lk))
		require.NoError(t, DestroyLink(tx, lk))
		require.True(t, tx.Reserved().Covers(tx.Used()))
		require.NoError(t, tx.Commit(ctx))
	}
	require.Equal(t, []Ptr{103}, collectOwners(t, l))

	reopened, err := OpenList(seg, l.Ptr())
	require.NoError(t, err)
	require.Equal(t, []Ptr{103}, collectOwners(t, reopened))

	tx, err = seg.Open(bigCredit())
	require.NoError(t, err)
	require.Panics(t, func() { _ = l.Destroy(tx) })
	require.Panics(t, func() { _ = DestroyLink(tx, links[2]) })
	require.NoError(t, l.Del(tx, links[2]))
	require.NoError(t, DestroyLink(tx, links[2]))
	require.NoError(t, l.Destroy(tx))
	require.NoError(t, tx.Commit(ctx))
	require.Equal(t, 0, seg.Allocations())
}

func TestOpenListRejectsForeignObject(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})

	tx, err := seg.Open(ObjectCredit(listHeaderSize))
	require.NoError(t, err)
	ptr, err := tx.Alloc(listHeaderSize)
	require.NoError(t, err)
	tx.Capture(ptr, EncodeWords(1, 2, 3, 4))
	require.NoError(t, tx.Commit(context.Background()))

	_, err = OpenList(seg, ptr)
	require.ErrorIs(t, err, ErrCorrupt)
}

func collectOwners(t *testing.T, l *List) []Ptr {
	t.Helper()
	var out []Ptr
	require.NoError(t, l.ForEach(func(e Elem) bool {
		out = append(out, e.Owner)
		return true
	}))
	return out
}

func TestFreeOfOwnAllocationIsNotCharged(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})

	tx, err := seg.Open(AllocCredit().Mul(2))
	require.NoError(t, err)
	a, err := tx.Alloc(4)
	require.NoError(t, err)
	b, err := tx.Alloc(4)
	require.NoError(t, err)
	tx.Free(b)
	tx.Free(a)
	require.Equal(t, AllocCredit().Mul(2), tx.Used())
	require.NoError(t, tx.Commit(context.Background()))
	require.Equal(t, 0, seg.Allocations())
	require.Equal(t, uint64(0), seg.Used())
}

func TestListTail(t *testing.T) {
	seg := newSegment(t, SegmentOptions{})

	tx, err := seg.Open(bigCredit())
	require.NoError(t, err)
	defer tx.Abort()
	l, err := CreateList(tx)
	require.NoError(t, err)

	_, ok, err := l.Tail()
	require.NoError(t, err)
	require.False(t, ok)

	for _, owner := range []Ptr{7, 8} {
		lk, err := CreateLink(tx, owner)
		require.NoError(t, err)
		require.NoError(t, l.AddTail(tx, lk))
	}
	tail, ok, err := l.Tail()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Ptr(8), tail.Owner)
}
