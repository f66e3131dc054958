// Package symbol exposes a message format as an ordered list of named fields
// and offers the two operations callers need: abstract raw bytes into field
// values and specialize field domains into raw bytes.
package symbol

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/domain"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoFields       = errors.New("symbol: no fields")
	ErrDuplicateField = errors.New("symbol: duplicate field name")
	ErrUnknownField   = errors.New("symbol: unknown field")
	ErrAttached       = errors.New("symbol: field domain already belongs to a tree")
)

// Field names one top-level variable tree of a symbol.
type Field struct {
	Name   string
	Domain domain.Variable
}

type Symbol struct {
	name   string
	fields []Field
	index  map[string]int
	root   *domain.Agg
}

// Presets maps field names to values that bypass generation.
type Presets map[string]domain.Preset

// New lays the field domains out in order under one aggregate.
func New(name string, fields ...Field) (*Symbol, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFields, name)
	}
	s := &Symbol{name: name, fields: append([]Field(nil), fields...), index: make(map[string]int, len(fields))}
	children := make([]domain.Variable, len(fields))
	for i, f := range fields {
		if f.Name == "" || f.Domain == nil {
			return nil, fmt.Errorf("symbol %s: field %d needs a name and a domain", name, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		if f.Domain.Parent() != nil {
			return nil, fmt.Errorf("%w: %s", ErrAttached, f.Name)
		}
		s.index[f.Name] = i
		children[i] = f.Domain
	}
	s.root = domain.NewAgg(children, domain.Named(name))
	return s, nil
}

func (s *Symbol) Name() string { return s.name }

func (s *Symbol) Fields() []Field { return append([]Field(nil), s.fields...) }

// Root is the aggregate the engine resolves.
func (s *Symbol) Root() domain.Variable { return s.root }

func (s *Symbol) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Abstract parses raw as one message of s. The winning path's memory writes
// are committed into mem.
func (s *Symbol) Abstract(ctx context.Context, e *domain.Engine, raw []byte, mem *domain.Memory) (StructuredFields, error) {
	p, err := e.Abstract(ctx, bits.FromBytes(raw), s.root, mem)
	if err != nil {
		return nil, fmt.Errorf("symbol %s: %w", s.name, err)
	}
	return s.structured(p), nil
}

// Specialize generates one message. A message whose bit length is not a
// multiple of eight is padded with zero bits.
func (s *Symbol) Specialize(ctx context.Context, e *domain.Engine, mem *domain.Memory, presets Presets) ([]byte, error) {
	byID := make(map[domain.ID]domain.Preset, len(presets))
	for name, pr := range presets {
		f, ok := s.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		byID[f.Domain.ID()] = pr
	}
	p, err := e.Specialize(ctx, s.root, mem, byID)
	if err != nil {
		return nil, fmt.Errorf("symbol %s: %w", s.name, err)
	}
	val, _ := p.Value(s.root)
	return val.Bytes(), nil
}

// AbstractAll parses every message independently and in parallel, each
// against its own duplicate of mem. mem itself is not modified.
func (s *Symbol) AbstractAll(ctx context.Context, e *domain.Engine, raws [][]byte, mem *domain.Memory) ([]StructuredFields, error) {
	if mem == nil {
		return nil, domain.ErrInvalidPath
	}
	mems := make([]*domain.Memory, len(raws))
	for i := range raws {
		mems[i] = mem.Duplicate()
	}
	out := make([]StructuredFields, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, raw := range raws {
		g.Go(func() error {
			fields, err := s.Abstract(gctx, e, raw, mems[i])
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
			out[i] = fields
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Symbol) structured(p *domain.Path) StructuredFields {
	out := make(StructuredFields, 0, len(s.fields))
	for _, f := range s.fields {
		val, _ := p.Value(f.Domain)
		out = append(out, FieldValue{Name: f.Name, Value: val})
	}
	return out
}

type FieldValue struct {
	Name  string
	Value bits.Value
}

// StructuredFields are the parsed field values in declaration order.
type StructuredFields []FieldValue

func (sf StructuredFields) Get(name string) (bits.Value, bool) {
	for _, f := range sf {
		if f.Name == name {
			return f.Value, true
		}
	}
	return bits.Value{}, false
}

// Bytes reassembles the message.
func (sf StructuredFields) Bytes() []byte {
	parts := make([]bits.Value, len(sf))
	for i, f := range sf {
		parts[i] = f.Value
	}
	return bits.Join(parts...).Bytes()
}

func (sf StructuredFields) String() string {
	var b strings.Builder
	for i, f := range sf {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", f.Name, f.Value.Hex())
	}
	return b.String()
}
