package dtx

import (
	"fmt"
	"strconv"
	"strings"
)

// Ordering is the result of comparing two transaction IDs.
type Ordering int8

// Comparison results.
const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return fmt.Sprintf("ordering(%d)", int8(o))
	}
}

// ID identifies a distributed transaction: the originator that started it
// and a logical timestamp assigned by that originator.
type ID struct {
	Originator FID    `json:"originator"`
	Timestamp  uint64 `json:"timestamp"`
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool {
	return id.Timestamp == 0 && id.Originator.IsZero()
}

// Validate reports whether id can be logged.
func (id ID) Validate() error {
	if id.Timestamp == 0 {
		return fmt.Errorf("dtx: id %s: zero timestamp", id)
	}
	if id.Originator.IsZero() {
		return fmt.Errorf("dtx: id %s: zero originator", id)
	}
	return nil
}

func (id ID) String() string {
	return strconv.FormatUint(id.Timestamp, 10) + "@" + id.Originator.String()
}

// ParseID parses the "<timestamp>@<fid>" form produced by String.
func ParseID(s string) (ID, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return ID{}, fmt.Errorf("dtx: invalid id %q", s)
	}
	ts, err := strconv.ParseUint(left, 0, 64)
	if err != nil {
		return ID{}, fmt.Errorf("dtx: invalid id timestamp %q: %w", s, err)
	}
	fid, err := ParseFID(right)
	if err != nil {
		return ID{}, err
	}
	return ID{Originator: fid, Timestamp: ts}, nil
}

// Clock orders transaction IDs. Implementations must provide a total order
// that stays stable for the lifetime of any log using them.
type Clock interface {
	Compare(a, b ID) Ordering
}

// LogicalClock orders IDs by timestamp and breaks ties by originator.
type LogicalClock struct{}

// Compare implements Clock.
func (LogicalClock) Compare(a, b ID) Ordering {
	switch {
	case a.Timestamp < b.Timestamp:
		return Less
	case a.Timestamp > b.Timestamp:
		return Greater
	default:
		return a.Originator.Compare(b.Originator)
	}
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func(a, b ID) Ordering

// Compare implements Clock.
func (f ClockFunc) Compare(a, b ID) Ordering { return f(a, b) }
