package datatype

import (
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/domainkit/internal/bits"
)

// Raw is an opaque byte sequence of MinBytes..MaxBytes.
type Raw struct {
	MinBytes int
	MaxBytes int
}

func NewRaw(n int) Raw { return Raw{MinBytes: n, MaxBytes: n} }

func NewRawRange(min, max int) Raw { return Raw{MinBytes: min, MaxBytes: max} }

func (r Raw) Validate() error {
	if r.MinBytes < 0 || r.MaxBytes != Unbounded && r.MaxBytes < r.MinBytes {
		return fmt.Errorf("%w: raw [%d,%d]", ErrInvalidType, r.MinBytes, r.MaxBytes)
	}
	return nil
}

func (r Raw) Name() string { return fmt.Sprintf("raw[%s]", bounds(r.MinBytes, r.MaxBytes)) }

func (r Raw) Size() (int, int) { return scale(r.MinBytes, r.MaxBytes, 8) }

func (r Raw) CanParse(v bits.Value) bool {
	return v.ByteAligned() && inBounds(v.Len()/8, r.MinBytes, r.MaxBytes)
}

func (r Raw) Generate(g *Generator) bits.Value {
	return bits.FromBytes(g.Bytes(g.Length(r.MinBytes, r.MaxBytes)))
}

func (r Raw) Encode(b []byte) (bits.Value, error) {
	if !inBounds(len(b), r.MinBytes, r.MaxBytes) {
		return bits.Value{}, fmt.Errorf("%w: %d bytes into %s", ErrEncode, len(b), r.Name())
	}
	return bits.FromBytes(b), nil
}

type Encoding string

const (
	ASCII Encoding = "ascii"
	UTF8  Encoding = "utf-8"
)

// String is text of MinChars..MaxChars. Sizes count bytes, one per character
// for ASCII.
type String struct {
	MinChars int
	MaxChars int
	Encoding Encoding
}

func NewString(min, max int) String { return String{MinChars: min, MaxChars: max, Encoding: ASCII} }

func (s String) Validate() error {
	if s.MinChars < 0 || s.MaxChars != Unbounded && s.MaxChars < s.MinChars {
		return fmt.Errorf("%w: string [%d,%d]", ErrInvalidType, s.MinChars, s.MaxChars)
	}
	switch s.Encoding {
	case "", ASCII, UTF8:
		return nil
	default:
		return fmt.Errorf("%w: string encoding %q", ErrInvalidType, s.Encoding)
	}
}

func (s String) Name() string { return fmt.Sprintf("string[%s]", bounds(s.MinChars, s.MaxChars)) }

func (s String) Size() (int, int) { return scale(s.MinChars, s.MaxChars, 8) }

func (s String) CanParse(v bits.Value) bool {
	if !v.ByteAligned() || !inBounds(v.Len()/8, s.MinChars, s.MaxChars) {
		return false
	}
	b := v.Bytes()
	if s.Encoding == UTF8 {
		return utf8.Valid(b)
	}
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

const printable = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (s String) Generate(g *Generator) bits.Value {
	out := make([]byte, g.Length(s.MinChars, s.MaxChars))
	for i := range out {
		out[i] = printable[g.Intn(len(printable))]
	}
	return bits.FromBytes(out)
}

func (s String) Encode(b []byte) (bits.Value, error) {
	v := bits.FromBytes(b)
	if !s.CanParse(v) {
		return bits.Value{}, fmt.Errorf("%w: %q into %s", ErrEncode, b, s.Name())
	}
	return v, nil
}

// BitArray accepts any bit pattern of MinBits..MaxBits.
type BitArray struct {
	MinBits int
	MaxBits int
}

func NewBitArray(n int) BitArray { return BitArray{MinBits: n, MaxBits: n} }

func (b BitArray) Validate() error {
	if b.MinBits < 0 || b.MaxBits != Unbounded && b.MaxBits < b.MinBits {
		return fmt.Errorf("%w: bitarray [%d,%d]", ErrInvalidType, b.MinBits, b.MaxBits)
	}
	return nil
}

func (b BitArray) Name() string { return fmt.Sprintf("bits[%s]", bounds(b.MinBits, b.MaxBits)) }

func (b BitArray) Size() (int, int) { return b.MinBits, b.MaxBits }

func (b BitArray) CanParse(v bits.Value) bool { return inBounds(v.Len(), b.MinBits, b.MaxBits) }

func (b BitArray) Generate(g *Generator) bits.Value {
	return g.Bits(g.Length(b.MinBits, b.MaxBits))
}

// Encode drops leading zero bits beyond MaxBits.
func (b BitArray) Encode(in []byte) (bits.Value, error) {
	v := bits.FromBytes(in)
	if b.MaxBits != Unbounded && v.Len() > b.MaxBits {
		if v.Head(v.Len()-b.MaxBits).Equal(bits.Zeros(v.Len() - b.MaxBits)) {
			v = v.Tail(v.Len() - b.MaxBits)
		}
	}
	if !b.CanParse(v) {
		return bits.Value{}, fmt.Errorf("%w: %d bits into %s", ErrEncode, v.Len(), b.Name())
	}
	return v, nil
}

func scale(min, max, unit int) (int, int) {
	if max == Unbounded {
		return min * unit, Unbounded
	}
	return min * unit, max * unit
}

func bounds(min, max int) string {
	if max == Unbounded {
		return fmt.Sprintf("%d..", min)
	}
	if min == max {
		return fmt.Sprintf("%d", min)
	}
	return fmt.Sprintf("%d..%d", min, max)
}
