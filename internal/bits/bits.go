package bits

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfRange  = errors.New("bits: index out of range")
	ErrInvalidBits = errors.New("bits: invalid binary digit")
	ErrTooWide     = errors.New("bits: value wider than 64 bits")
)

// Value is an immutable, ordered bit sequence. Bit 0 is the most significant
// bit of the first byte. The zero Value is the empty sequence.
type Value struct {
	buf []byte // len(buf) == (n+7)/8, pad bits are always zero
	n   int
}

func Empty() Value { return Value{} }

// FromBytes copies b into a byte-aligned Value.
func FromBytes(b []byte) Value {
	if len(b) == 0 {
		return Value{}
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	return Value{buf: buf, n: len(b) * 8}
}

// New returns the first nbits of b.
func New(b []byte, nbits int) (Value, error) {
	if nbits < 0 || nbits > len(b)*8 {
		return Value{}, fmt.Errorf("%w: %d bits from %d bytes", ErrOutOfRange, nbits, len(b))
	}
	if nbits == 0 {
		return Value{}, nil
	}
	buf := make([]byte, (nbits+7)/8)
	copy(buf, b)
	clearPad(buf, nbits)
	return Value{buf: buf, n: nbits}, nil
}

// FromBinaryString parses a string of '0' and '1'. Spaces and underscores are
// ignored so long literals can be grouped.
func FromBinaryString(s string) (Value, error) {
	var w writer
	for _, r := range s {
		switch r {
		case '0':
			w.push(false)
		case '1':
			w.push(true)
		case ' ', '_':
		default:
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidBits, r)
		}
	}
	return w.value(), nil
}

func FromHex(s string) (Value, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return Value{}, fmt.Errorf("bits: decode hex: %w", err)
	}
	return FromBytes(b), nil
}

// Zeros returns n zero bits.
func Zeros(n int) Value {
	if n <= 0 {
		return Value{}
	}
	return Value{buf: make([]byte, (n+7)/8), n: n}
}

// FromUint encodes the low nbits of v, most significant bit first.
func FromUint(v uint64, nbits int) Value {
	if nbits <= 0 {
		return Value{}
	}
	if nbits > 64 {
		nbits = 64
	}
	var w writer
	for i := nbits - 1; i >= 0; i-- {
		w.push(v>>uint(i)&1 == 1)
	}
	return w.value()
}

func (v Value) Len() int { return v.n }

func (v Value) IsEmpty() bool { return v.n == 0 }

// Bit reports bit i. It panics when i is outside [0, Len()).
func (v Value) Bit(i int) bool {
	if i < 0 || i >= v.n {
		panic(fmt.Sprintf("bits: bit %d out of range [0,%d)", i, v.n))
	}
	return v.buf[i/8]&(0x80>>uint(i%8)) != 0
}

// Slice returns bits [start, end).
func (v Value) Slice(start, end int) (Value, error) {
	if start < 0 || end < start || end > v.n {
		return Value{}, fmt.Errorf("%w: [%d:%d] of %d", ErrOutOfRange, start, end, v.n)
	}
	return v.slice(start, end), nil
}

// Head returns the first n bits. It panics like slice indexing when n is out of range.
func (v Value) Head(n int) Value {
	if n < 0 || n > v.n {
		panic(fmt.Sprintf("bits: head %d out of range [0,%d]", n, v.n))
	}
	return v.slice(0, n)
}

// Tail returns the bits from index from to the end.
func (v Value) Tail(from int) Value {
	if from < 0 || from > v.n {
		panic(fmt.Sprintf("bits: tail %d out of range [0,%d]", from, v.n))
	}
	return v.slice(from, v.n)
}

func (v Value) slice(start, end int) Value {
	n := end - start
	if n == 0 {
		return Value{}
	}
	if start == 0 && end == v.n {
		return v
	}
	out := make([]byte, (n+7)/8)
	if start%8 == 0 {
		copy(out, v.buf[start/8:])
	} else {
		for i := 0; i < n; i++ {
			if v.Bit(start + i) {
				out[i/8] |= 0x80 >> uint(i%8)
			}
		}
	}
	clearPad(out, n)
	return Value{buf: out, n: n}
}

// Concat returns v followed by others.
func (v Value) Concat(others ...Value) Value {
	return Join(append([]Value{v}, others...)...)
}

// Join concatenates values in order.
func Join(values ...Value) Value {
	var w writer
	total := 0
	for _, v := range values {
		total += v.n
	}
	if total == 0 {
		return Value{}
	}
	w.buf = make([]byte, 0, (total+7)/8)
	for _, v := range values {
		w.append(v)
	}
	return w.value()
}

// Equal is length sensitive: 0b0 and 0b00 differ.
func (v Value) Equal(o Value) bool {
	return v.n == o.n && bytes.Equal(v.buf, o.buf)
}

func (v Value) HasPrefix(p Value) bool {
	if p.n > v.n {
		return false
	}
	full := p.n / 8
	if !bytes.Equal(v.buf[:full], p.buf[:full]) {
		return false
	}
	for i := full * 8; i < p.n; i++ {
		if v.Bit(i) != p.Bit(i) {
			return false
		}
	}
	return true
}

// Bytes returns a fresh copy of the packed bits, right-padded with zero bits.
func (v Value) Bytes() []byte {
	out := make([]byte, len(v.buf))
	copy(out, v.buf)
	return out
}

func (v Value) ByteAligned() bool { return v.n%8 == 0 }

// Uint interprets the sequence as an unsigned big-endian integer.
func (v Value) Uint() (uint64, error) {
	if v.n > 64 {
		return 0, fmt.Errorf("%w: %d", ErrTooWide, v.n)
	}
	var out uint64
	for i := 0; i < v.n; i++ {
		out <<= 1
		if v.Bit(i) {
			out |= 1
		}
	}
	return out, nil
}

func (v Value) Clone() Value {
	if v.n == 0 {
		return Value{}
	}
	return Value{buf: v.Bytes(), n: v.n}
}

func (v Value) String() string {
	var sb strings.Builder
	sb.Grow(v.n)
	for i := 0; i < v.n; i++ {
		if v.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (v Value) Hex() string { return hex.EncodeToString(v.buf) }

func clearPad(buf []byte, n int) {
	if r := n % 8; r != 0 {
		buf[len(buf)-1] &= byte(0xFF << uint(8-r))
	}
}

type writer struct {
	buf []byte
	n   int
}

func (w *writer) push(bit bool) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if bit {
		w.buf[w.n/8] |= 0x80 >> uint(w.n%8)
	}
	w.n++
}

func (w *writer) append(v Value) {
	if v.n == 0 {
		return
	}
	if w.n%8 == 0 {
		w.buf = append(w.buf, v.buf...)
		w.n += v.n
		return
	}
	for i := 0; i < v.n; i++ {
		w.push(v.Bit(i))
	}
}

func (w *writer) value() Value {
	if w.n == 0 {
		return Value{}
	}
	return Value{buf: w.buf, n: w.n}
}
