package dtm0log

import (
	"errors"
	"fmt"
	"time"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
)

// Prune removes every record from the head of the log up to and including
// the one logged under id.
//
// Each visited record must be stable, otherwise ErrUnstable is returned.
// If the walk reaches a record that orders after id, or the end of the
// log, before finding id, ErrNotFound is returned. Nothing is removed
// unless the whole range qualifies.
//
// A persistent log needs tx reserving PruneCredit(id); a volatile log
// requires a nil tx.
func (g *Guard) Prune(tx *be.Tx, id dtx.ID) error {
	g.check()
	g.checkTx(tx)
	l := g.log
	backend := string(l.store.backend())
	start := time.Now()

	n, err := g.prune(tx, id)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnstable):
		result = "unstable"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	l.metrics.ObserveDTM0LogPrune(backend, result, n, time.Since(start))
	l.metrics.SetDTM0LogRecords(backend, l.store.len())
	return err
}

func (g *Guard) prune(tx *be.Tx, id dtx.ID) (int, error) {
	l := g.log
	var (
		count   int
		stop    dtx.Ordering
		reached bool
		walkErr error
	)
	err := l.store.walk(func(s slot) bool {
		if !s.desc.IsStable() {
			walkErr = fmt.Errorf("%w: %s", ErrUnstable, s.desc)
			return false
		}
		count++
		stop = l.clock.Compare(s.desc.ID, id)
		if stop != dtx.Less {
			reached = true
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if walkErr != nil {
		return 0, walkErr
	}
	if !reached || stop != dtx.Equal {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := l.store.removeHead(tx, count); err != nil {
		return 0, err
	}
	l.logger.Debug("dtm0 log pruned", "id", id, "removed", count, "backend", l.store.backend())
	return count, nil
}
