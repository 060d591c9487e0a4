package dtm0log

import (
	"fmt"
	"strings"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// Op names a log operation whose transaction credit can be computed.
type Op int

const (
	OpCreate Op = iota
	OpDestroy
	OpSent
	OpExecuted
	OpPersistent
	OpRedo
	OpPrune
)

var opNames = [...]string{
	OpCreate:     "create",
	OpDestroy:    "destroy",
	OpSent:       "sent",
	OpExecuted:   "executed",
	OpPersistent: "persistent",
	OpRedo:       "redo",
	OpPrune:      "prune",
}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp is the inverse of Op.String.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if strings.EqualFold(s, name) {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("dtm0log: unknown operation %q", s)
}

// Credit returns the transaction credit a persistent log needs for op on a
// transaction with nrPA participants and a payload of size bytes.
//
// OpDestroy does not include the log header: the caller frees it and adds
// be.FreeCredit(). OpPrune depends on log contents and must be computed
// with Guard.PruneCredit.
func Credit(op Op, nrPA int, size int) be.Credit {
	switch op {
	case OpCreate:
		return be.ObjectCredit(logHeaderSize).
			Add(be.ListCredit(be.ListCreate, 2))
	case OpDestroy:
		return be.ListCredit(be.ListDestroy, 2)
	case OpSent, OpExecuted, OpRedo, OpPersistent:
		return recordCredit(nrPA, size)
	case OpPrune:
		panic("dtm0log: prune credit depends on log contents, use Guard.PruneCredit")
	default:
		panic(fmt.Sprintf("dtm0log: credit for unknown operation %s", op))
	}
}

// recordCredit covers both an insert of a new record and a merge into an
// existing one. The payload is reserved whenever size is non-zero, since the
// caller cannot tell in advance whether the record is a placeholder.
func recordCredit(nrPA int, size int) be.Credit {
	c := be.ListCredit(be.LinkCreate, 1).
		Add(be.ListCredit(be.ListAdd, 1)).
		Add(be.ObjectCredit(recordSize)).
		Add(be.ObjectCredit(participantsSize(nrPA)))
	if size > 0 {
		c = c.Add(be.ObjectCredit(uint64(size)))
	}
	return c
}

// PruneCredit returns the credit Prune(tx, id) needs: the removal cost of
// every record from the head up to and including the one logged under id.
// It is zero when id is not in the log and always zero for a volatile log.
func (g *Guard) PruneCredit(id dtx.ID) (be.Credit, error) {
	g.check()
	l := g.log
	var (
		sum   be.Credit
		found bool
	)
	err := l.store.walk(func(s slot) bool {
		sum = sum.Add(l.store.removeCredit(s))
		if l.clock.Compare(s.desc.ID, id) == dtx.Equal {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return be.Credit{}, err
	}
	if !found {
		return be.Credit{}, nil
	}
	return sum, nil
}
