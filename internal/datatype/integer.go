package datatype

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/domainkit/internal/bits"
)

type Endianness int

const (
	BigEndian Endianness = iota
	LittleEndian
)

func (e Endianness) String() string {
	if e == LittleEndian {
		return "little"
	}
	return "big"
}

type Sign int

const (
	Unsigned Sign = iota
	Signed
)

// Integer is a fixed-width integer of 8, 16, 32 or 64 bits, optionally
// restricted to the value interval [Min, Max].
type Integer struct {
	UnitSize   int
	Sign       Sign
	Endianness Endianness
	Bounded    bool
	Min, Max   int64
}

func Uint8() Integer { return Integer{UnitSize: 8} }

func Uint(unitSize int, e Endianness) Integer {
	return Integer{UnitSize: unitSize, Endianness: e}
}

func Int(unitSize int, e Endianness) Integer {
	return Integer{UnitSize: unitSize, Sign: Signed, Endianness: e}
}

// Between restricts the admissible values.
func (i Integer) Between(min, max int64) Integer {
	i.Bounded = true
	i.Min, i.Max = min, max
	return i
}

func (i Integer) Validate() error {
	switch i.UnitSize {
	case 8, 16, 32, 64:
	default:
		return fmt.Errorf("%w: integer unit size %d", ErrInvalidType, i.UnitSize)
	}
	if i.Bounded && i.Min > i.Max {
		return fmt.Errorf("%w: integer interval [%d,%d]", ErrInvalidType, i.Min, i.Max)
	}
	return nil
}

func (i Integer) Name() string {
	s := "uint"
	if i.Sign == Signed {
		s = "int"
	}
	return fmt.Sprintf("%s%d/%s", s, i.UnitSize, i.Endianness)
}

func (i Integer) Size() (int, int) { return i.UnitSize, i.UnitSize }

func (i Integer) CanParse(v bits.Value) bool {
	if v.Len() != i.UnitSize {
		return false
	}
	if !i.Bounded {
		return true
	}
	if i.Sign == Unsigned {
		u, err := i.Uint(v)
		if err != nil || i.Max < 0 {
			return false
		}
		return u >= uint64(max(i.Min, 0)) && u <= uint64(i.Max)
	}
	n, err := i.Int(v)
	return err == nil && n >= i.Min && n <= i.Max
}

func (i Integer) Generate(g *Generator) bits.Value {
	if !i.Bounded {
		return bits.FromUint(g.Uint64(), i.UnitSize)
	}
	lo, hi := i.Min, i.Max
	if i.Sign == Unsigned && lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return i.EncodeInt(lo)
	}
	span := uint64(hi - lo)
	var off uint64
	switch {
	case span < math.MaxInt64:
		off = uint64(g.Int63n(int64(span) + 1))
	case span == math.MaxUint64:
		off = g.Uint64()
	default:
		off = g.Uint64() % (span + 1)
	}
	return i.EncodeUint(uint64(lo) + off)
}

// Encode takes a big-endian magnitude and lays it out in the type's
// endianness. Leading zero bytes beyond the unit size are dropped; any other
// overflow is rejected.
func (i Integer) Encode(b []byte) (bits.Value, error) {
	width := i.UnitSize / 8
	for _, c := range b[:max(0, len(b)-width)] {
		if c != 0 {
			return bits.Value{}, fmt.Errorf("%w: %d bytes into %s", ErrEncode, len(b), i.Name())
		}
	}
	var buf [8]byte
	src := b
	if len(src) > width {
		src = src[len(src)-width:]
	}
	copy(buf[8-len(src):], src)
	return i.EncodeUint(binary.BigEndian.Uint64(buf[:])), nil
}

// EncodeUint writes the low UnitSize bits of u.
func (i Integer) EncodeUint(u uint64) bits.Value {
	width := i.UnitSize / 8
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	out := buf[8-width:]
	if i.Endianness == LittleEndian {
		reverse(out)
	}
	return bits.FromBytes(out)
}

func (i Integer) EncodeInt(n int64) bits.Value { return i.EncodeUint(uint64(n)) }

// Uint decodes v as an unsigned value in the type's endianness.
func (i Integer) Uint(v bits.Value) (uint64, error) {
	if v.Len() != i.UnitSize {
		return 0, fmt.Errorf("%w: %d bits for %s", ErrEncode, v.Len(), i.Name())
	}
	b := v.Bytes()
	if i.Endianness == LittleEndian {
		reverse(b)
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Int decodes v with sign extension.
func (i Integer) Int(v bits.Value) (int64, error) {
	u, err := i.Uint(v)
	if err != nil {
		return 0, err
	}
	shift := uint(64 - i.UnitSize)
	return int64(u<<shift) >> shift, nil
}

func reverse(b []byte) {
	for l, r := 0, len(b)-1; l < r; l, r = l+1, r-1 {
		b[l], b[r] = b[r], b[l]
	}
}
