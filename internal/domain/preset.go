package domain

import (
	"fmt"

	"github.com/danmuck/domainkit/internal/bits"
)

// Preset supplies a caller-chosen value during specialization. Preset values
// replace memory, fixed values and generation, and are not validated against
// the variable's type.
type Preset interface {
	Next() (bits.Value, error)
}

// Literal returns the same value every time.
type Literal bits.Value

func (l Literal) Next() (bits.Value, error) { return bits.Value(l), nil }

// Func calls a function for every value.
type Func func() (bits.Value, error)

func (f Func) Next() (bits.Value, error) { return f() }

// Sequence hands out values in order and fails once they run out.
type Sequence struct {
	values []bits.Value
	next   int
}

func NewSequence(values ...bits.Value) *Sequence {
	return &Sequence{values: append([]bits.Value(nil), values...)}
}

func (s *Sequence) Next() (bits.Value, error) {
	if s.next >= len(s.values) {
		return bits.Value{}, fmt.Errorf("%w: preset sequence exhausted after %d values", ErrGeneration, len(s.values))
	}
	v := s.values[s.next]
	s.next++
	return v, nil
}

// Remaining reports how many values are left.
func (s *Sequence) Remaining() int { return len(s.values) - s.next }
