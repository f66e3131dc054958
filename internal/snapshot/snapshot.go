// Package snapshot encodes a domain Memory as a sequence of records so it can
// be persisted and restored. Every record is kind(1) len(4) body. The first
// record is the header carrying the format version and entry count; each
// following entry record carries one memorized value.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/domain"
)

const Version uint16 = 1

// Record kinds.
const (
	RecordHeader uint8 = 1
	RecordEntry  uint8 = 2
)

const (
	recordPrefixLen = 1 + 4
	headerBodyLen   = 2 + 4
	entryPrefixLen  = 16 + 4
)

var (
	ErrTruncated   = errors.New("snapshot: truncated record")
	ErrBadVersion  = errors.New("snapshot: unsupported version")
	ErrBadHeader   = errors.New("snapshot: malformed header")
	ErrBadEntry    = errors.New("snapshot: malformed entry")
	ErrNoHeader    = errors.New("snapshot: missing header record")
	ErrTooLarge    = errors.New("snapshot: exceeds limits")
	ErrCountLength = errors.New("snapshot: entry count mismatch")
)

// Limits constrains decode memory use.
type Limits struct {
	MaxEntries    int
	MaxValueBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxEntries:    1 << 20,
		MaxValueBytes: 8 * 1024 * 1024,
	}
}

type record struct {
	kind uint8
	body []byte
}

func appendRecord(out []byte, kind uint8, body []byte) []byte {
	out = append(out, kind)
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

// splitRecords slices b into records. Bodies alias b.
func splitRecords(b []byte) ([]record, error) {
	var out []record
	for len(b) > 0 {
		if len(b) < recordPrefixLen {
			return nil, fmt.Errorf("%w: %d byte prefix", ErrTruncated, len(b))
		}
		n := binary.BigEndian.Uint32(b[1:recordPrefixLen])
		if uint64(len(b)-recordPrefixLen) < uint64(n) {
			return nil, fmt.Errorf("%w: body of %d bytes", ErrTruncated, n)
		}
		end := recordPrefixLen + int(n)
		out = append(out, record{kind: b[0], body: b[recordPrefixLen:end]})
		b = b[end:]
	}
	return out, nil
}

// Encode writes every entry of mem in id order, so equal memories encode to
// equal bytes.
func Encode(mem *domain.Memory) []byte {
	ids := mem.IDs()
	head := binary.BigEndian.AppendUint16(nil, Version)
	head = binary.BigEndian.AppendUint32(head, uint32(len(ids)))
	out := appendRecord(nil, RecordHeader, head)

	for _, id := range ids {
		v, _ := mem.Value(id)
		entry := make([]byte, 0, entryPrefixLen+(v.Len()+7)/8)
		entry = append(entry, id[:]...)
		entry = binary.BigEndian.AppendUint32(entry, uint32(v.Len()))
		entry = append(entry, v.Bytes()...)
		out = appendRecord(out, RecordEntry, entry)
	}
	return out
}

func Decode(b []byte) (*domain.Memory, error) {
	return DecodeLimited(b, DefaultLimits())
}

// DecodeLimited rebuilds a Memory. Records of unknown kinds are skipped.
func DecodeLimited(b []byte, limits Limits) (*domain.Memory, error) {
	recs, err := splitRecords(b)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 || recs[0].kind != RecordHeader {
		return nil, ErrNoHeader
	}
	count, err := decodeHeader(recs[0].body)
	if err != nil {
		return nil, err
	}
	if count > limits.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrTooLarge, count)
	}

	mem := domain.NewMemory()
	seen := 0
	for _, r := range recs[1:] {
		if r.kind != RecordEntry {
			continue
		}
		id, val, err := decodeEntry(r.body, limits)
		if err != nil {
			return nil, err
		}
		mem.Memorize(id, val)
		seen++
	}
	if seen != count {
		return nil, fmt.Errorf("%w: header says %d, found %d", ErrCountLength, count, seen)
	}
	return mem, nil
}

func decodeHeader(b []byte) (int, error) {
	if len(b) != headerBodyLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(b))
	}
	if v := binary.BigEndian.Uint16(b[0:2]); v != Version {
		return 0, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	return int(binary.BigEndian.Uint32(b[2:6])), nil
}

func decodeEntry(b []byte, limits Limits) (domain.ID, bits.Value, error) {
	var id domain.ID
	if len(b) < entryPrefixLen {
		return id, bits.Value{}, fmt.Errorf("%w: %d bytes", ErrBadEntry, len(b))
	}
	copy(id[:], b[0:16])
	nbits := int(binary.BigEndian.Uint32(b[16:20]))
	data := b[entryPrefixLen:]
	if len(data) > limits.MaxValueBytes {
		return id, bits.Value{}, fmt.Errorf("%w: value of %d bytes", ErrTooLarge, len(data))
	}
	if len(data) != (nbits+7)/8 {
		return id, bits.Value{}, fmt.Errorf("%w: %d bits in %d bytes", ErrBadEntry, nbits, len(data))
	}
	val, err := bits.New(data, nbits)
	if err != nil {
		return id, bits.Value{}, fmt.Errorf("%w: %w", ErrBadEntry, err)
	}
	return id, val, nil
}
