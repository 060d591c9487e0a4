package dtm0log

import "github.com/i-melnichenko/dtm0-lab/internal/dtx"

// Record is a copy of one logged transaction.
type Record struct {
	Descriptor dtx.Descriptor `json:"descriptor"`
	// Payload is the original request. It is empty for a placeholder,
	// a record created by a persistent notice that arrived before the
	// request itself.
	Payload []byte `json:"payload,omitempty"`
}

// ID returns the transaction ID of the record.
func (r Record) ID() dtx.ID { return r.Descriptor.ID }

// IsPlaceholder reports whether the record carries no payload.
func (r Record) IsPlaceholder() bool { return len(r.Payload) == 0 }

// IsStable reports whether every participant has persisted the record.
func (r Record) IsStable() bool { return r.Descriptor.IsStable() }

func cloneRecord(d dtx.Descriptor, payload []byte) Record {
	r := Record{Descriptor: d.Clone()}
	if len(payload) > 0 {
		r.Payload = append([]byte(nil), payload...)
	}
	return r
}
