package datatype

import (
	"errors"
	"math/rand"

	"github.com/danmuck/domainkit/internal/bits"
)

// Unbounded marks a Size maximum with no upper limit.
const Unbounded = -1

// DefaultUnboundedSpan caps generated length above the minimum for unbounded types.
const DefaultUnboundedSpan = 32

var (
	ErrEncode      = errors.New("datatype: value does not fit type")
	ErrInvalidType = errors.New("datatype: invalid type parameters")
)

// Type describes the admissible bit patterns of a variable.
type Type interface {
	Name() string
	// Size is in bits. max may be Unbounded.
	Size() (min, max int)
	CanParse(v bits.Value) bool
	Generate(g *Generator) bits.Value
}

// Encoder re-encodes a relation result according to the type's layout.
type Encoder interface {
	Encode(b []byte) (bits.Value, error)
}

// FixedSize reports the bit width of t when min == max.
func FixedSize(t Type) (int, bool) {
	min, max := t.Size()
	if max == Unbounded || min != max {
		return 0, false
	}
	return min, true
}

func inBounds(n, min, max int) bool {
	return n >= min && (max == Unbounded || n <= max)
}

// Generator is the randomness source handed to Type.Generate. It is not safe
// for concurrent use.
type Generator struct {
	rng           *rand.Rand
	UnboundedSpan int
}

func NewGenerator(rng *rand.Rand, unboundedSpan int) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if unboundedSpan <= 0 {
		unboundedSpan = DefaultUnboundedSpan
	}
	return &Generator{rng: rng, UnboundedSpan: unboundedSpan}
}

func (g *Generator) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return g.rng.Intn(n)
}

func (g *Generator) Uint64() uint64 { return g.rng.Uint64() }

func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return g.rng.Int63n(n)
}

// Length draws a length in [min, max]; an unbounded max extends to min+UnboundedSpan.
func (g *Generator) Length(min, max int) int {
	if max == Unbounded {
		max = min + g.UnboundedSpan
	}
	if max <= min {
		return min
	}
	return min + g.rng.Intn(max-min+1)
}

func (g *Generator) Bytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(g.rng.Intn(256))
	}
	return out
}

func (g *Generator) Bits(n int) bits.Value {
	v, _ := bits.New(g.Bytes((n+7)/8), n)
	return v
}
