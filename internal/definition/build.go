package definition

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/datatype"
	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/relation"
	"github.com/danmuck/domainkit/internal/symbol"
)

// Namespace seeds every derived variable ID.
var Namespace = domain.IDFromName(domain.ID{}, "domainkit")

// VariableID is the ID a variable named name in field of sym receives.
func VariableID(sym, field, name string) domain.ID {
	return domain.IDFromName(Namespace, sym+"/"+field+"/"+name)
}

type pendingTargets struct {
	rel     *domain.Relation
	targets []string
	where   string
}

type pendingCount struct {
	rep   *domain.Repeat
	count string
	where string
}

type builder struct {
	symbol  string
	field   string
	byName  map[string]domain.Variable
	pending []pendingTargets
	counts  []pendingCount
}

// Build turns the document into a symbol. Relation targets are resolved once
// every variable exists, so relations may refer forward.
func (d *Document) Build() (*symbol.Symbol, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	b := &builder{symbol: d.Symbol, byName: make(map[string]domain.Variable)}
	fields := make([]symbol.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		b.field = f.Name
		v, err := b.variable(f.Domain, f.Name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, symbol.Field{Name: f.Name, Domain: v})
	}
	for _, p := range b.pending {
		targets := make([]domain.Variable, 0, len(p.targets))
		for _, name := range p.targets {
			t, ok := b.byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s targets unknown variable %q", ErrInvalid, p.where, name)
			}
			targets = append(targets, t)
		}
		p.rel.SetTargets(targets...)
	}
	for _, p := range b.counts {
		c, ok := b.byName[p.count]
		if !ok {
			return nil, fmt.Errorf("%w: %s counts by unknown variable %q", ErrInvalid, p.where, p.count)
		}
		p.rep.SetCount(c)
	}
	return symbol.New(d.Symbol, fields...)
}

func (b *builder) variable(doc VarDoc, fallback string) (domain.Variable, error) {
	name := doc.Name
	if name == "" {
		name = fallback
	}
	if _, dup := b.byName[name]; dup {
		return nil, fmt.Errorf("%w: duplicate variable name %q", ErrInvalid, name)
	}
	opts := []domain.Option{domain.Named(name), domain.WithID(VariableID(b.symbol, b.field, name))}
	if doc.SVAS != "" {
		s, err := domain.ParseSVAS(doc.SVAS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, domain.WithSVAS(s))
	}

	var (
		v   domain.Variable
		err error
	)
	switch doc.Kind {
	case "data":
		v, err = b.data(doc, opts)
	case "size", "value", "hash", "hmac", "crc32", "checksum":
		v, err = b.relation(doc, name, opts)
	case "alt", "agg":
		v, err = b.node(doc, name, opts)
	case "repeat":
		v, err = b.repeat(doc, name, opts)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalid, doc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b.byName[name] = v
	return v, nil
}

func (b *builder) data(doc VarDoc, opts []domain.Option) (domain.Variable, error) {
	var t datatype.Type
	if doc.Type != nil {
		var err error
		if t, err = buildType(*doc.Type); err != nil {
			return nil, err
		}
	}
	if doc.Value != "" {
		val, err := ParseValue(doc.Value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, domain.WithValue(val))
	}
	if t == nil && doc.Value == "" {
		return nil, fmt.Errorf("%w: data needs a type or a value", ErrInvalid)
	}
	return domain.NewData(t, opts...), nil
}

func (b *builder) relation(doc VarDoc, name string, opts []domain.Option) (domain.Variable, error) {
	if len(doc.Targets) == 0 {
		return nil, fmt.Errorf("%w: %s needs targets", ErrInvalid, doc.Kind)
	}
	var r *domain.Relation
	switch doc.Kind {
	case "size":
		it := datatype.Uint8()
		if doc.Type != nil {
			t, err := buildType(*doc.Type)
			if err != nil {
				return nil, err
			}
			var ok bool
			if it, ok = t.(datatype.Integer); !ok {
				return nil, fmt.Errorf("%w: size needs an integer type", ErrInvalid)
			}
		}
		op := relation.ByteSize()
		if doc.Factor != 0 {
			op.Factor = doc.Factor
		}
		op.Offset = doc.Offset
		r = domain.NewRelation(op, it, nil, opts...)
	case "value":
		if len(doc.Targets) != 1 {
			return nil, fmt.Errorf("%w: value copies exactly one target", ErrInvalid)
		}
		var t datatype.Type = datatype.BitArray{MaxBits: datatype.Unbounded}
		if doc.Type != nil {
			var err error
			if t, err = buildType(*doc.Type); err != nil {
				return nil, err
			}
		}
		r = domain.NewValue(t, nil, nil, opts...)
	case "hash", "hmac":
		alg, err := relation.ParseAlgorithm(doc.Algorithm)
		if err != nil {
			return nil, err
		}
		if doc.Kind == "hash" {
			r = domain.NewHash(alg, nil, opts...)
			break
		}
		key, err := ParseValue(doc.Key)
		if err != nil {
			return nil, fmt.Errorf("hmac key: %w", err)
		}
		r = domain.NewHMAC(alg, key.Bytes(), nil, opts...)
	case "crc32":
		r = domain.NewRelation(relation.CRC32{Table: doc.Table}, datatype.NewRaw(4), nil, opts...)
	case "checksum":
		r = domain.NewChecksum(nil, opts...)
	}
	b.pending = append(b.pending, pendingTargets{rel: r, targets: doc.Targets, where: name})
	return r, nil
}

func (b *builder) node(doc VarDoc, name string, opts []domain.Option) (domain.Variable, error) {
	if len(doc.Children) == 0 {
		return nil, fmt.Errorf("%w: %s needs children", ErrInvalid, doc.Kind)
	}
	children := make([]domain.Variable, 0, len(doc.Children))
	for i, c := range doc.Children {
		v, err := b.variable(c, fmt.Sprintf("%s.%d", name, i))
		if err != nil {
			return nil, err
		}
		children = append(children, v)
	}
	if doc.Kind == "alt" {
		return domain.NewAlt(children, opts...), nil
	}
	return domain.NewAgg(children, opts...), nil
}

func (b *builder) repeat(doc VarDoc, name string, opts []domain.Option) (domain.Variable, error) {
	if doc.Child == nil {
		return nil, fmt.Errorf("%w: repeat needs a child", ErrInvalid)
	}
	hi := doc.Max
	if hi == 0 {
		hi = domain.MaxRepeat
	}
	if doc.Min > hi || hi > domain.MaxRepeat {
		return nil, fmt.Errorf("%w: repeat bounds [%d,%d]", ErrInvalid, doc.Min, hi)
	}
	if doc.Delimiter != "" {
		delim, err := ParseValue(doc.Delimiter)
		if err != nil {
			return nil, fmt.Errorf("delimiter: %w", err)
		}
		opts = append(opts, domain.WithDelimiter(delim))
	}
	child, err := b.variable(*doc.Child, name+".item")
	if err != nil {
		return nil, err
	}
	rep := domain.NewRepeat(child, doc.Min, hi, opts...)
	if doc.Count != "" {
		b.counts = append(b.counts, pendingCount{rep: rep, count: doc.Count, where: name})
	}
	return rep, nil
}

type validating interface{ Validate() error }

func buildType(doc TypeDoc) (datatype.Type, error) {
	lo, hi := doc.Min, doc.Max
	if doc.Size > 0 {
		lo, hi = doc.Size, doc.Size
	}
	var t datatype.Type
	switch doc.Kind {
	case "raw":
		t = datatype.NewRawRange(lo, hi)
	case "string":
		s := datatype.NewString(lo, hi)
		if doc.Encoding != "" {
			s.Encoding = datatype.Encoding(doc.Encoding)
		}
		t = s
	case "bits":
		t = datatype.BitArray{MinBits: lo, MaxBits: hi}
	case "integer":
		unit := doc.Size
		if unit == 0 {
			unit = 8
		}
		endian := datatype.BigEndian
		if doc.Endian == "little" {
			endian = datatype.LittleEndian
		}
		it := datatype.Uint(unit, endian)
		if doc.Signed {
			it = datatype.Int(unit, endian)
		}
		if doc.Lower != nil || doc.Upper != nil {
			if doc.Lower == nil || doc.Upper == nil {
				return nil, fmt.Errorf("%w: integer bounds need lower and upper", ErrInvalid)
			}
			it = it.Between(*doc.Lower, *doc.Upper)
		}
		t = it
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalid, doc.Kind)
	}
	if v, ok := t.(validating); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ParseValue reads a prefixed literal: hex:, text: or bin:.
func ParseValue(s string) (bits.Value, error) {
	prefix, body, ok := strings.Cut(s, ":")
	if !ok {
		return bits.Value{}, fmt.Errorf("%w: value %q lacks a hex:, text: or bin: prefix", ErrInvalid, s)
	}
	switch strings.ToLower(prefix) {
	case "hex":
		b, err := hex.DecodeString(strings.ReplaceAll(body, " ", ""))
		if err != nil {
			return bits.Value{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return bits.FromBytes(b), nil
	case "text":
		return bits.FromBytes([]byte(body)), nil
	case "bin":
		v, err := bits.FromBinaryString(body)
		if err != nil {
			return bits.Value{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return v, nil
	default:
		return bits.Value{}, fmt.Errorf("%w: unknown value prefix %q", ErrInvalid, prefix)
	}
}
