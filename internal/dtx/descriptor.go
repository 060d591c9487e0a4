package dtx

import (
	"errors"
	"fmt"
	"math"
)

// MaxParticipants bounds the participant group of one transaction.
const MaxParticipants = math.MaxUint16

// ErrInvalidDescriptor is returned by Descriptor.Validate.
var ErrInvalidDescriptor = errors.New("dtx: invalid descriptor")

// Participant is one slot of a transaction descriptor.
type Participant struct {
	FID   FID   `json:"fid"`
	State State `json:"state"`
}

// Descriptor carries a transaction ID and the state of every participant.
type Descriptor struct {
	ID           ID            `json:"id"`
	Participants []Participant `json:"participants"`
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	out := Descriptor{ID: d.ID}
	if d.Participants != nil {
		out.Participants = append([]Participant(nil), d.Participants...)
	}
	return out
}

// Validate checks that d can be logged.
func (d Descriptor) Validate() error {
	if err := d.ID.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if len(d.Participants) == 0 {
		return fmt.Errorf("%w: %s has no participants", ErrInvalidDescriptor, d.ID)
	}
	if len(d.Participants) > MaxParticipants {
		return fmt.Errorf("%w: %s has %d participants, max %d",
			ErrInvalidDescriptor, d.ID, len(d.Participants), MaxParticipants)
	}
	seen := make(map[FID]struct{}, len(d.Participants))
	for i, p := range d.Participants {
		if p.FID.IsZero() {
			return fmt.Errorf("%w: %s participant %d has zero fid", ErrInvalidDescriptor, d.ID, i)
		}
		if !p.State.Valid() {
			return fmt.Errorf("%w: %s participant %s has state %d",
				ErrInvalidDescriptor, d.ID, p.FID, uint8(p.State))
		}
		if _, dup := seen[p.FID]; dup {
			return fmt.Errorf("%w: %s lists participant %s twice", ErrInvalidDescriptor, d.ID, p.FID)
		}
		seen[p.FID] = struct{}{}
	}
	return nil
}

// IsStable reports whether every participant has persisted the transaction.
func (d Descriptor) IsStable() bool {
	for _, p := range d.Participants {
		if p.State != Persistent {
			return false
		}
	}
	return true
}

// StateOf returns the state of the participant identified by fid.
func (d Descriptor) StateOf(fid FID) (State, bool) {
	for _, p := range d.Participants {
		if p.FID == fid {
			return p.State, true
		}
	}
	return 0, false
}

// SameGroup reports whether d and other list the same participants in the
// same slots.
func (d Descriptor) SameGroup(other Descriptor) bool {
	if len(d.Participants) != len(other.Participants) {
		return false
	}
	for i := range d.Participants {
		if d.Participants[i].FID != other.Participants[i].FID {
			return false
		}
	}
	return true
}

// Merge advances every slot of d to the later of its own state and the
// state of the same slot in incoming. It reports whether any slot changed.
// Both descriptors must describe the same group.
func (d Descriptor) Merge(incoming Descriptor) bool {
	changed := false
	for i := range d.Participants {
		next := d.Participants[i].State.Advance(incoming.Participants[i].State)
		if next != d.Participants[i].State {
			d.Participants[i].State = next
			changed = true
		}
	}
	return changed
}

// Equal reports whether d and other carry the same ID and slots.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.ID != other.ID || len(d.Participants) != len(other.Participants) {
		return false
	}
	for i := range d.Participants {
		if d.Participants[i] != other.Participants[i] {
			return false
		}
	}
	return true
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s%v", d.ID, d.Participants)
}
