// Package dtx defines distributed transaction identity: process FIDs,
// transaction IDs and their ordering, participant states and descriptors.
package dtx

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FID identifies a process or service taking part in distributed
// transactions, either as an originator or as a participant.
type FID struct {
	Container uint64 `json:"container"`
	Key       uint64 `json:"key"`
}

// FIDFromUUID derives a FID from the two halves of a UUID.
func FIDFromUUID(u uuid.UUID) FID {
	return FID{
		Container: binary.BigEndian.Uint64(u[:8]),
		Key:       binary.BigEndian.Uint64(u[8:]),
	}
}

// NewFID returns a random FID.
func NewFID() FID {
	return FIDFromUUID(uuid.New())
}

// IsZero reports whether f is the zero FID.
func (f FID) IsZero() bool {
	return f.Container == 0 && f.Key == 0
}

// Compare orders FIDs by container, then key.
func (f FID) Compare(other FID) Ordering {
	switch {
	case f.Container < other.Container:
		return Less
	case f.Container > other.Container:
		return Greater
	case f.Key < other.Key:
		return Less
	case f.Key > other.Key:
		return Greater
	default:
		return Equal
	}
}

func (f FID) String() string {
	return fmt.Sprintf("<%#x:%#x>", f.Container, f.Key)
}

// ParseFID parses the "<container:key>" form produced by String. Both parts
// accept any base understood by strconv (0x prefix for hex).
func ParseFID(s string) (FID, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.TrimSuffix(raw, ">")
	left, right, ok := strings.Cut(raw, ":")
	if !ok {
		return FID{}, fmt.Errorf("dtx: invalid fid %q", s)
	}
	c, err := strconv.ParseUint(strings.TrimSpace(left), 0, 64)
	if err != nil {
		return FID{}, fmt.Errorf("dtx: invalid fid container %q: %w", s, err)
	}
	k, err := strconv.ParseUint(strings.TrimSpace(right), 0, 64)
	if err != nil {
		return FID{}, fmt.Errorf("dtx: invalid fid key %q: %w", s, err)
	}
	return FID{Container: c, Key: k}, nil
}
