package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

func sample(t *testing.T) *domain.Memory {
	t.Helper()
	odd, err := bits.FromBinaryString("101")
	if err != nil {
		t.Fatalf("bits: %v", err)
	}
	mem := domain.NewMemory()
	mem.Memorize(domain.IDFromName(domain.ID{}, "a"), bits.FromBytes([]byte{0xAA, 0xBB}))
	mem.Memorize(domain.IDFromName(domain.ID{}, "b"), odd)
	mem.Memorize(domain.IDFromName(domain.ID{}, "c"), bits.Empty())
	return mem
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)

	mem := sample(t)
	out, err := Decode(Encode(mem))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, got := map[string]string{}, map[string]string{}
	for _, id := range mem.IDs() {
		v, _ := mem.Value(id)
		want[id.String()] = v.String()
	}
	for _, id := range out.IDs() {
		v, _ := out.Value(id)
		got[id.String()] = v.String()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("memory mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	testlog.Start(t)

	if !bytes.Equal(Encode(sample(t)), Encode(sample(t))) {
		t.Fatalf("equal memories encoded differently")
	}
	empty, err := Decode(Encode(domain.NewMemory()))
	if err != nil || empty.Len() != 0 {
		t.Fatalf("empty memory: %v len=%d", err, empty.Len())
	}
}

func TestDecodeSkipsUnknownRecords(t *testing.T) {
	testlog.Start(t)

	b := Encode(sample(t))
	b = appendRecord(b, 99, []byte{1, 2})
	mem, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mem.Len() != 3 {
		t.Fatalf("entries: got %d want 3", mem.Len())
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	testlog.Start(t)

	good := Encode(sample(t))
	badVersion := append([]byte(nil), good...)
	badVersion[recordPrefixLen+1] = 9

	entryOnly := appendRecord(nil, RecordEntry, make([]byte, entryPrefixLen))
	shortHead := appendRecord(nil, RecordHeader, []byte{0, 1, 0, 0})
	// a full header body under an entry kind is not a header
	misfiled := appendRecord(nil, RecordEntry, good[recordPrefixLen:recordPrefixLen+headerBodyLen])

	single := domain.NewMemory()
	single.Memorize(domain.NewID(), bits.Empty())
	headerOnly := Encode(single)
	headerOnly = headerOnly[:len(headerOnly)-recordPrefixLen-entryPrefixLen]

	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"short prefix", []byte{1, 2, 3}, ErrTruncated},
		{"short body", []byte{RecordHeader, 0, 0, 0, 6, 0}, ErrTruncated},
		{"truncated", good[:len(good)-1], ErrTruncated},
		{"version", badVersion, ErrBadVersion},
		{"header length", shortHead, ErrBadHeader},
		{"no header", entryOnly, ErrNoHeader},
		{"header kind", misfiled, ErrNoHeader},
		{"count", headerOnly, ErrCountLength},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecodeRejectsInconsistentEntry(t *testing.T) {
	testlog.Start(t)

	mem := domain.NewMemory()
	mem.Memorize(domain.NewID(), bits.FromBytes([]byte{1}))
	b := Encode(mem)
	// claim 16 bits for a one byte value
	b[len(b)-2] = 16
	if _, err := Decode(b); !errors.Is(err, ErrBadEntry) {
		t.Fatalf("expected ErrBadEntry, got %v", err)
	}

	_, err := DecodeLimited(Encode(sample(t)), Limits{MaxEntries: 1, MaxValueBytes: 8})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
