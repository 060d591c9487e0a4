package be

import "fmt"

// Credit is the space reservation a transaction needs: the number of
// mutating operations and the number of bytes they capture.
type Credit struct {
	Ops   uint64 `json:"ops"`
	Bytes uint64 `json:"bytes"`
}

// allocMetaSize is the allocator bookkeeping written per alloc or free:
// the size entry plus the next-address counter.
const allocMetaSize = 16

// Add returns c + o.
func (c Credit) Add(o Credit) Credit {
	return Credit{Ops: c.Ops + o.Ops, Bytes: c.Bytes + o.Bytes}
}

// Mul returns c scaled by n.
func (c Credit) Mul(n uint64) Credit {
	return Credit{Ops: c.Ops * n, Bytes: c.Bytes * n}
}

// Covers reports whether c is at least o in both dimensions.
func (c Credit) Covers(o Credit) bool {
	return c.Ops >= o.Ops && c.Bytes >= o.Bytes
}

// IsZero reports whether c reserves nothing.
func (c Credit) IsZero() bool {
	return c.Ops == 0 && c.Bytes == 0
}

func (c Credit) String() string {
	return fmt.Sprintf("(ops=%d, bytes=%d)", c.Ops, c.Bytes)
}

// CaptureCredit is the cost of capturing n bytes of one object.
func CaptureCredit(n uint64) Credit {
	return Credit{Ops: 1, Bytes: n}
}

// AllocCredit is the cost of one allocation.
func AllocCredit() Credit {
	return Credit{Ops: 1, Bytes: allocMetaSize}
}

// FreeCredit is the cost of releasing one allocation.
func FreeCredit() Credit {
	return Credit{Ops: 1, Bytes: allocMetaSize}
}

// ObjectCredit is the cost of allocating an object of n bytes and capturing
// its initial contents.
func ObjectCredit(n uint64) Credit {
	return AllocCredit().Add(CaptureCredit(n))
}

// RootCredit is the cost of setting or deleting the named segment root.
func RootCredit(name string) Credit {
	return Credit{Ops: 1, Bytes: uint64(len(name)) + 8}
}
