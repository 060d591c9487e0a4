package be

import "fmt"

const (
	listMagic uint64 = 0x62655f6c69737431 // "be_list1"
	linkMagic uint64 = 0x62655f6c696e6b31 // "be_link1"
)

// Header: magic, head, tail, nr.
// Link:   magic, owner, list, prev, next.
var (
	listHeaderSize = WordsSize(4)
	linkSize       = WordsSize(5)
)

// ListOp names a list operation for credit calculation.
type ListOp int

// List operations.
const (
	ListCreate ListOp = iota
	ListDestroy
	LinkCreate
	LinkDestroy
	ListAdd
	ListDel
)

// ListCredit returns the credit of nr operations of kind op.
func ListCredit(op ListOp, nr uint64) Credit {
	var c Credit
	switch op {
	case ListCreate:
		c = ObjectCredit(listHeaderSize)
	case ListDestroy, LinkDestroy:
		c = FreeCredit()
	case LinkCreate:
		c = ObjectCredit(linkSize)
	case ListAdd:
		// new link, old tail, header
		c = CaptureCredit(linkSize).Mul(2).Add(CaptureCredit(listHeaderSize))
	case ListDel:
		// removed link, both neighbours, header
		c = CaptureCredit(linkSize).Mul(3).Add(CaptureCredit(listHeaderSize))
	default:
		panic(fmt.Sprintf("be: unknown list op %d", op))
	}
	return c.Mul(nr)
}

// Elem is one list position: the link object and the object it points at.
type Elem struct {
	Link  Ptr
	Owner Ptr
}

type listHeader struct {
	head, tail Ptr
	nr         uint64
}

type link struct {
	owner, list, prev, next Ptr
}

// List is a durable doubly linked list of link objects. Each link points
// at an owner object chosen by the caller.
type List struct {
	seg *Segment
	ptr Ptr
}

// CreateList allocates an empty list.
func CreateList(tx *Tx) (*List, error) {
	ptr, err := tx.Alloc(listHeaderSize)
	if err != nil {
		return nil, err
	}
	l := &List{seg: tx.seg, ptr: ptr}
	l.writeHeader(tx, listHeader{})
	return l, nil
}

// OpenList attaches to the list whose header lives at ptr.
func OpenList(seg *Segment, ptr Ptr) (*List, error) {
	l := &List{seg: seg, ptr: ptr}
	if _, err := l.header(); err != nil {
		return nil, err
	}
	return l, nil
}

// Ptr returns the address of the list header.
func (l *List) Ptr() Ptr { return l.ptr }

// Len returns the number of linked elements.
func (l *List) Len() (uint64, error) {
	h, err := l.header()
	if err != nil {
		return 0, err
	}
	return h.nr, nil
}

// Destroy frees the list header. The list must be empty.
func (l *List) Destroy(tx *Tx) error {
	h, err := l.header()
	if err != nil {
		return err
	}
	if h.nr != 0 || h.head != NilPtr {
		panic(fmt.Sprintf("be: destroy of non-empty list %s (%d elements)", l.ptr, h.nr))
	}
	tx.Free(l.ptr)
	return nil
}

// CreateLink allocates an unlinked link pointing at owner.
func CreateLink(tx *Tx, owner Ptr) (Ptr, error) {
	ptr, err := tx.Alloc(linkSize)
	if err != nil {
		return NilPtr, err
	}
	writeLink(tx, ptr, link{owner: owner})
	return ptr, nil
}

// DestroyLink frees an unlinked link.
func DestroyLink(tx *Tx, ptr Ptr) error {
	lk, err := readLink(tx.seg, ptr)
	if err != nil {
		return err
	}
	if lk.list != NilPtr {
		panic(fmt.Sprintf("be: destroy of link %s still in list %s", ptr, lk.list))
	}
	tx.Free(ptr)
	return nil
}

// AddTail appends an unlinked link to the list.
func (l *List) AddTail(tx *Tx, ptr Ptr) error {
	h, err := l.header()
	if err != nil {
		return err
	}
	lk, err := readLink(l.seg, ptr)
	if err != nil {
		return err
	}
	if lk.list != NilPtr {
		panic(fmt.Sprintf("be: link %s already in list %s", ptr, lk.list))
	}

	var tail link
	if h.tail != NilPtr {
		if tail, err = readLink(l.seg, h.tail); err != nil {
			return err
		}
	}

	lk.list, lk.prev, lk.next = l.ptr, h.tail, NilPtr
	if h.tail != NilPtr {
		tail.next = ptr
		writeLink(tx, h.tail, tail)
	} else {
		h.head = ptr
	}
	h.tail = ptr
	h.nr++
	writeLink(tx, ptr, lk)
	l.writeHeader(tx, h)
	return nil
}

// Del unlinks ptr from the list. The link itself stays allocated.
func (l *List) Del(tx *Tx, ptr Ptr) error {
	h, err := l.header()
	if err != nil {
		return err
	}
	lk, err := readLink(l.seg, ptr)
	if err != nil {
		return err
	}
	if lk.list != l.ptr {
		panic(fmt.Sprintf("be: link %s is not in list %s", ptr, l.ptr))
	}

	var prev, next link
	if lk.prev != NilPtr {
		if prev, err = readLink(l.seg, lk.prev); err != nil {
			return err
		}
	}
	if lk.next != NilPtr {
		if next, err = readLink(l.seg, lk.next); err != nil {
			return err
		}
	}

	if lk.prev != NilPtr {
		prev.next = lk.next
		writeLink(tx, lk.prev, prev)
	} else {
		h.head = lk.next
	}
	if lk.next != NilPtr {
		next.prev = lk.prev
		writeLink(tx, lk.next, next)
	} else {
		h.tail = lk.prev
	}
	h.nr--
	writeLink(tx, ptr, link{owner: lk.owner})
	l.writeHeader(tx, h)
	return nil
}

// Head returns the first element.
func (l *List) Head() (Elem, bool, error) {
	h, err := l.header()
	if err != nil || h.head == NilPtr {
		return Elem{}, false, err
	}
	lk, err := readLink(l.seg, h.head)
	if err != nil {
		return Elem{}, false, err
	}
	return Elem{Link: h.head, Owner: lk.owner}, true, nil
}

// Tail returns the last element.
func (l *List) Tail() (Elem, bool, error) {
	h, err := l.header()
	if err != nil || h.tail == NilPtr {
		return Elem{}, false, err
	}
	lk, err := readLink(l.seg, h.tail)
	if err != nil {
		return Elem{}, false, err
	}
	return Elem{Link: h.tail, Owner: lk.owner}, true, nil
}

// Next returns the element after e.
func (l *List) Next(e Elem) (Elem, bool, error) {
	lk, err := readLink(l.seg, e.Link)
	if err != nil || lk.next == NilPtr {
		return Elem{}, false, err
	}
	nx, err := readLink(l.seg, lk.next)
	if err != nil {
		return Elem{}, false, err
	}
	return Elem{Link: lk.next, Owner: nx.owner}, true, nil
}

// ForEach walks the list from head to tail until fn returns false.
func (l *List) ForEach(fn func(Elem) bool) error {
	e, ok, err := l.Head()
	for ; ok && err == nil; e, ok, err = l.Next(e) {
		if !fn(e) {
			return nil
		}
	}
	return err
}

func (l *List) header() (listHeader, error) {
	b, err := l.seg.Read(l.ptr)
	if err != nil {
		return listHeader{}, err
	}
	w, err := DecodeWords(b, 4)
	if err != nil {
		return listHeader{}, fmt.Errorf("be: list %s header: %w", l.ptr, err)
	}
	if w[0] != listMagic {
		return listHeader{}, fmt.Errorf("%w: list %s has magic %#x", ErrCorrupt, l.ptr, w[0])
	}
	return listHeader{head: Ptr(w[1]), tail: Ptr(w[2]), nr: w[3]}, nil
}

func (l *List) writeHeader(tx *Tx, h listHeader) {
	tx.Capture(l.ptr, EncodeWords(listMagic, uint64(h.head), uint64(h.tail), h.nr))
}

func readLink(seg *Segment, ptr Ptr) (link, error) {
	b, err := seg.Read(ptr)
	if err != nil {
		return link{}, err
	}
	w, err := DecodeWords(b, 5)
	if err != nil {
		return link{}, fmt.Errorf("be: link %s: %w", ptr, err)
	}
	if w[0] != linkMagic {
		return link{}, fmt.Errorf("%w: link %s has magic %#x", ErrCorrupt, ptr, w[0])
	}
	return link{owner: Ptr(w[1]), list: Ptr(w[2]), prev: Ptr(w[3]), next: Ptr(w[4])}, nil
}

func writeLink(tx *Tx, ptr Ptr, lk link) {
	tx.Capture(ptr, EncodeWords(linkMagic, uint64(lk.owner), uint64(lk.list), uint64(lk.prev), uint64(lk.next)))
}
