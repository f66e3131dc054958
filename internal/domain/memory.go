package domain

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/domainkit/internal/bits"
)

// Memory holds the values variables carry from one message to the next. It
// is not safe for concurrent use.
type Memory struct {
	values map[ID]bits.Value
}

func NewMemory() *Memory { return &Memory{values: make(map[ID]bits.Value)} }

func (m *Memory) Memorize(id ID, v bits.Value) { m.values[id] = v }

// Forget is a no-op for unknown ids.
func (m *Memory) Forget(id ID) { delete(m.values, id) }

func (m *Memory) Value(id ID) (bits.Value, bool) {
	v, ok := m.values[id]
	return v, ok
}

func (m *Memory) Has(id ID) bool {
	_, ok := m.values[id]
	return ok
}

func (m *Memory) Len() int { return len(m.values) }

// IDs returns the memorized ids in byte order.
func (m *Memory) IDs() []ID {
	ids := make([]ID, 0, len(m.values))
	for id := range m.values {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}

// Duplicate returns a deep copy; later writes to either side are invisible
// to the other.
func (m *Memory) Duplicate() *Memory {
	out := &Memory{values: make(map[ID]bits.Value, len(m.values))}
	for id, v := range m.values {
		out.values[id] = v.Clone()
	}
	return out
}

// Snapshot copies the current contents into a plain map.
func (m *Memory) Snapshot() map[ID]bits.Value {
	out := make(map[ID]bits.Value, len(m.values))
	for id, v := range m.values {
		out[id] = v.Clone()
	}
	return out
}

func (m *Memory) String() string {
	var sb strings.Builder
	sb.WriteString("Memory{")
	for i, id := range m.IDs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%s", id.short(), m.values[id].Hex())
	}
	sb.WriteString("}")
	return sb.String()
}
