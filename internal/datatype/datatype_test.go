package datatype

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/testutil/testlog"
)

func newGen() *Generator { return NewGenerator(rand.New(rand.NewSource(7)), 4) }

func TestCanParseRejectsOutsideInterval(t *testing.T) {
	testlog.Start(t)

	types := []Type{NewRaw(2), NewRawRange(1, 3), NewString(2, 4), NewBitArray(5), Uint(16, BigEndian)}
	for _, typ := range types {
		min, max := typ.Size()
		if min > 0 && typ.CanParse(bits.Zeros(min-1)) {
			t.Fatalf("%s accepted %d bits below min %d", typ.Name(), min-1, min)
		}
		if max != Unbounded && typ.CanParse(bits.Zeros(max+8)) {
			t.Fatalf("%s accepted %d bits above max %d", typ.Name(), max+8, max)
		}
	}
}

func TestGenerateCoversEveryLength(t *testing.T) {
	testlog.Start(t)

	g := newGen()
	types := []Type{NewRawRange(0, 3), NewString(1, 4), BitArray{MinBits: 3, MaxBits: 6}}
	for _, typ := range types {
		min, max := typ.Size()
		seen := map[int]bool{}
		for i := 0; i < 500; i++ {
			v := typ.Generate(g)
			if !typ.CanParse(v) {
				t.Fatalf("%s generated unparseable %s", typ.Name(), v)
			}
			seen[v.Len()] = true
		}
		step := 8
		if _, ok := typ.(BitArray); ok {
			step = 1
		}
		for n := min; n <= max; n += step {
			if !seen[n] {
				t.Fatalf("%s never generated %d bits", typ.Name(), n)
			}
		}
	}
}

func TestUnboundedGenerateUsesSpan(t *testing.T) {
	testlog.Start(t)

	g := newGen()
	typ := NewRawRange(2, Unbounded)
	for i := 0; i < 100; i++ {
		n := typ.Generate(g).Len() / 8
		if n < 2 || n > 2+g.UnboundedSpan {
			t.Fatalf("unbounded raw generated %d bytes", n)
		}
	}
}

func TestIntegerEndiannessAndSign(t *testing.T) {
	testlog.Start(t)

	le := Uint(16, LittleEndian)
	v := le.EncodeUint(0x0102)
	if v.Hex() != "0201" {
		t.Fatalf("little endian encode: got %s", v.Hex())
	}
	u, err := le.Uint(v)
	if err != nil || u != 0x0102 {
		t.Fatalf("little endian decode: got %x,%v", u, err)
	}

	s := Int(8, BigEndian)
	n, err := s.Int(bits.FromBytes([]byte{0xFE}))
	if err != nil || n != -2 {
		t.Fatalf("signed decode: got %d,%v", n, err)
	}
	if s.EncodeInt(-2).Hex() != "fe" {
		t.Fatalf("signed encode: got %s", s.EncodeInt(-2).Hex())
	}
}

func TestIntegerIntervalBoundsParseAndGenerate(t *testing.T) {
	testlog.Start(t)

	typ := Uint8().Between(10, 12)
	if typ.CanParse(bits.FromBytes([]byte{9})) || typ.CanParse(bits.FromBytes([]byte{13})) {
		t.Fatalf("interval not enforced")
	}
	if !typ.CanParse(bits.FromBytes([]byte{11})) {
		t.Fatalf("in-interval value rejected")
	}
	g := newGen()
	for i := 0; i < 100; i++ {
		if v := typ.Generate(g); !typ.CanParse(v) {
			t.Fatalf("generated out-of-interval %s", v.Hex())
		}
	}

	signed := Int(16, BigEndian).Between(-5, 5)
	if !signed.CanParse(signed.EncodeInt(-5)) || signed.CanParse(signed.EncodeInt(-6)) {
		t.Fatalf("signed interval not enforced")
	}
}

func TestIntegerEncodeRejectsOverflow(t *testing.T) {
	testlog.Start(t)

	typ := Uint(16, BigEndian)
	v, err := typ.Encode([]byte{0, 0, 0, 0, 0, 0, 0x01, 0x2C})
	if err != nil || v.Hex() != "012c" {
		t.Fatalf("encode: got %s,%v", v.Hex(), err)
	}
	if _, err := typ.Encode([]byte{0x01, 0x00, 0x00}); !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	short, err := Uint(32, LittleEndian).Encode([]byte{0x05})
	if err != nil || short.Hex() != "05000000" {
		t.Fatalf("short encode: got %s,%v", short.Hex(), err)
	}
}

func TestStringEncodingChecks(t *testing.T) {
	testlog.Start(t)

	ascii := NewString(1, 10)
	if ascii.CanParse(bits.FromBytes([]byte("héllo"))) {
		t.Fatalf("ascii accepted non-ascii")
	}
	utf := String{MinChars: 1, MaxChars: 10, Encoding: UTF8}
	if !utf.CanParse(bits.FromBytes([]byte("héllo"))) {
		t.Fatalf("utf-8 rejected valid text")
	}
	if utf.CanParse(bits.FromBytes([]byte{0xFF, 0xFE})) {
		t.Fatalf("utf-8 accepted invalid bytes")
	}
	if ascii.CanParse(bits.Zeros(12)) {
		t.Fatalf("unaligned content accepted")
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	testlog.Start(t)

	checks := []interface{ Validate() error }{
		NewRawRange(4, 2), String{MinChars: 3, MaxChars: 1}, BitArray{MinBits: -1},
		Integer{UnitSize: 12}, Uint8().Between(5, 1), String{Encoding: "latin1"},
	}
	for _, c := range checks {
		if err := c.Validate(); !errors.Is(err, ErrInvalidType) {
			t.Fatalf("%T: expected ErrInvalidType, got %v", c, err)
		}
	}
}

func TestBitArrayEncodeDropsLeadingZeros(t *testing.T) {
	testlog.Start(t)

	v, err := NewBitArray(4).Encode([]byte{0x0A})
	if err != nil || v.String() != "1010" {
		t.Fatalf("encode: got %s,%v", v, err)
	}
	if _, err := NewBitArray(4).Encode([]byte{0xFA}); !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}
