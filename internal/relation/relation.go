package relation

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"

	"github.com/danmuck/domainkit/internal/bits"
)

var (
	ErrUnknownAlgorithm = errors.New("relation: unknown algorithm")
	ErrNegativeSize     = errors.New("relation: negative size")
)

// Operation is a pure function from the concatenated target bits to the
// relation's raw output bytes.
type Operation interface {
	Name() string
	Compute(data bits.Value) ([]byte, error)
}

// BitOperation yields bits directly instead of bytes for the relation's
// type to encode.
type BitOperation interface {
	Operation
	ComputeBits(data bits.Value) (bits.Value, error)
}

// LengthOperation only needs the total target length, so it can be evaluated
// before the targets themselves are known.
type LengthOperation interface {
	Operation
	ComputeLength(nbits int) ([]byte, error)
}

// Size computes int(nbits*Factor + Offset) as an 8-byte big-endian magnitude.
type Size struct {
	Factor float64
	Offset int
}

// ByteSize counts target bytes.
func ByteSize() Size { return Size{Factor: 1.0 / 8} }

func (s Size) Name() string { return "size" }

func (s Size) Compute(data bits.Value) ([]byte, error) { return s.ComputeLength(data.Len()) }

func (s Size) ComputeLength(nbits int) ([]byte, error) {
	n := int64(float64(nbits)*s.Factor + float64(s.Offset))
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSize, n)
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(n))
	return out, nil
}

type Algorithm string

const (
	MD5     Algorithm = "md5"
	SHA1    Algorithm = "sha1"
	SHA1_96 Algorithm = "sha1-96"
	SHA224  Algorithm = "sha224"
	SHA256  Algorithm = "sha256"
	SHA384  Algorithm = "sha384"
	SHA512  Algorithm = "sha512"
)

func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, _, err := a.hash(); err != nil {
		return "", err
	}
	return a, nil
}

// DigestSize is the output length in bytes.
func (a Algorithm) DigestSize() int {
	h, trunc, err := a.hash()
	if err != nil {
		return 0
	}
	if trunc > 0 {
		return trunc
	}
	return h().Size()
}

func (a Algorithm) hash() (func() hash.Hash, int, error) {
	switch a {
	case MD5:
		return md5.New, 0, nil
	case SHA1:
		return sha1.New, 0, nil
	case SHA1_96:
		return sha1.New, 12, nil
	case SHA224:
		return sha256.New224, 0, nil
	case SHA256:
		return sha256.New, 0, nil
	case SHA384:
		return sha512.New384, 0, nil
	case SHA512:
		return sha512.New, 0, nil
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// Hash is a plain message digest over the packed target bytes.
type Hash struct {
	Algorithm Algorithm
}

func (h Hash) Name() string { return string(h.Algorithm) }

func (h Hash) Compute(data bits.Value) ([]byte, error) {
	fn, trunc, err := h.Algorithm.hash()
	if err != nil {
		return nil, err
	}
	d := fn()
	d.Write(data.Bytes())
	return truncate(d.Sum(nil), trunc), nil
}

type HMAC struct {
	Algorithm Algorithm
	Key       []byte
}

func (h HMAC) Name() string { return "hmac-" + string(h.Algorithm) }

func (h HMAC) Compute(data bits.Value) ([]byte, error) {
	fn, trunc, err := h.Algorithm.hash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(fn, h.Key)
	mac.Write(data.Bytes())
	return truncate(mac.Sum(nil), trunc), nil
}

func truncate(b []byte, n int) []byte {
	if n > 0 && n < len(b) {
		return b[:n]
	}
	return b
}

type CRC32 struct {
	Table string
}

func (c CRC32) Name() string { return "crc32" }

func (c CRC32) table() (*crc32.Table, error) {
	switch strings.ToLower(c.Table) {
	case "", "ieee":
		return crc32.IEEETable, nil
	case "castagnoli":
		return crc32.MakeTable(crc32.Castagnoli), nil
	case "koopman":
		return crc32.MakeTable(crc32.Koopman), nil
	default:
		return nil, fmt.Errorf("%w: crc32 table %q", ErrUnknownAlgorithm, c.Table)
	}
}

func (c CRC32) Compute(data bits.Value) ([]byte, error) {
	tab, err := c.table()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, crc32.Checksum(data.Bytes(), tab))
	return out, nil
}

// InternetChecksum is the RFC 1071 ones' complement sum of 16-bit words.
type InternetChecksum struct{}

func (InternetChecksum) Name() string { return "checksum" }

func (InternetChecksum) Compute(data bits.Value) ([]byte, error) {
	b := data.Bytes()
	var sum uint64
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint64(b[i])<<8 | uint64(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint64(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xFFFF + sum>>16
	}
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, ^uint16(sum))
	return out, nil
}

// Func adapts an arbitrary deterministic function.
type Func struct {
	Label string
	Fn    func(bits.Value) ([]byte, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) Compute(data bits.Value) ([]byte, error) { return f.Fn(data) }

// Value copies its target bits, passing their packed bytes through Transform
// when one is set.
type Value struct {
	Transform func([]byte) ([]byte, error)
}

func (v Value) Name() string { return "value" }

func (v Value) ComputeBits(data bits.Value) (bits.Value, error) {
	if v.Transform == nil {
		return data, nil
	}
	out, err := v.Transform(data.Bytes())
	if err != nil {
		return bits.Value{}, err
	}
	return bits.FromBytes(out), nil
}

func (v Value) Compute(data bits.Value) ([]byte, error) {
	out, err := v.ComputeBits(data)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
