package domain

import (
	"fmt"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/datatype"
	"github.com/danmuck/domainkit/internal/relation"
	"github.com/google/uuid"
)

// MaxRepeat bounds the count interval of a Repeat.
const MaxRepeat = 1000

// ID is the identity of a variable. Memory is keyed by it.
type ID uuid.UUID

func NewID() ID { return ID(uuid.New()) }

// IDFromName derives a stable ID so persisted memories survive rebuilding a tree.
func IDFromName(namespace ID, name string) ID {
	return ID(uuid.NewSHA1(uuid.UUID(namespace), []byte(name)))
}

func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("domain: parse id: %w", err)
	}
	return ID(u), nil
}

func (id ID) String() string { return uuid.UUID(id).String() }

func (id ID) short() string { return id.String()[:8] }

// Variable is one node of a variable tree. The set of implementations is
// closed: *Data, *Relation, *Alt, *Agg and *Repeat.
type Variable interface {
	ID() ID
	Name() string
	SVAS() SVAS
	Parent() Variable
	String() string
	node() *variable
}

type variable struct {
	id     ID
	name   string
	svas   SVAS
	parent Variable
}

func (v *variable) ID() ID           { return v.id }
func (v *variable) Name() string     { return v.name }
func (v *variable) SVAS() SVAS       { return v.svas }
func (v *variable) Parent() Variable { return v.parent }
func (v *variable) node() *variable  { return v }

type Option func(*options)

type options struct {
	id        *ID
	name      string
	svas      *SVAS
	value     *bits.Value
	delimiter *bits.Value
	count     Variable
}

func Named(name string) Option { return func(o *options) { o.name = name } }

func WithID(id ID) Option { return func(o *options) { o.id = &id } }

func WithSVAS(s SVAS) Option { return func(o *options) { o.svas = &s } }

// WithValue fixes the value of a Data variable.
func WithValue(v bits.Value) Option { return func(o *options) { o.value = &v } }

// WithDelimiter separates Repeat iterations.
func WithDelimiter(v bits.Value) Option { return func(o *options) { o.delimiter = &v } }

// WithCount takes a Repeat's iteration count from the integer value of v.
func WithCount(v Variable) Option { return func(o *options) { o.count = v } }

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newVariable(kind string, o options, svas SVAS) variable {
	v := variable{id: NewID(), svas: svas}
	if o.id != nil {
		v.id = *o.id
	}
	if o.svas != nil {
		v.svas = *o.svas
	}
	v.name = o.name
	if v.name == "" {
		v.name = kind + "-" + v.id.short()
	}
	return v
}

// Data is a leaf holding an optional fixed value and a type.
type Data struct {
	variable
	typ   datatype.Type
	value *bits.Value
}

// NewData builds a data leaf. Without WithSVAS it is Ephemeral, or Constant
// when WithValue is given.
func NewData(t datatype.Type, opts ...Option) *Data {
	o := collect(opts)
	svas := Ephemeral
	if o.value != nil {
		svas = Constant
	}
	return &Data{variable: newVariable("data", o, svas), typ: t, value: o.value}
}

func (d *Data) Type() datatype.Type { return d.typ }

// Value returns the fixed value, if any.
func (d *Data) Value() (bits.Value, bool) {
	if d.value == nil {
		return bits.Value{}, false
	}
	return *d.value, true
}

func (d *Data) String() string {
	typ := "untyped"
	if d.typ != nil {
		typ = d.typ.Name()
	}
	return fmt.Sprintf("Data(%s %s %s)", d.name, typ, d.svas)
}

// Relation is a leaf whose value is computed from its targets. Targets are
// references, not children.
type Relation struct {
	variable
	op      relation.Operation
	typ     datatype.Type
	targets []Variable
}

// NewRelation panics when op or t is nil.
func NewRelation(op relation.Operation, t datatype.Type, targets []Variable, opts ...Option) *Relation {
	if op == nil || t == nil {
		panic("domain: relation requires an operation and a type")
	}
	r := &Relation{variable: newVariable(op.Name(), collect(opts), Volatile), op: op, typ: t}
	r.svas = Volatile
	r.SetTargets(targets...)
	return r
}

// NewSize counts target bytes into an integer of type t.
func NewSize(t datatype.Integer, targets []Variable, opts ...Option) *Relation {
	return NewRelation(relation.ByteSize(), t, targets, opts...)
}

func NewHash(alg relation.Algorithm, targets []Variable, opts ...Option) *Relation {
	return NewRelation(relation.Hash{Algorithm: alg}, datatype.NewRaw(alg.DigestSize()), targets, opts...)
}

func NewHMAC(alg relation.Algorithm, key []byte, targets []Variable, opts ...Option) *Relation {
	op := relation.HMAC{Algorithm: alg, Key: append([]byte(nil), key...)}
	return NewRelation(op, datatype.NewRaw(alg.DigestSize()), targets, opts...)
}

func NewCRC32(targets []Variable, opts ...Option) *Relation {
	return NewRelation(relation.CRC32{}, datatype.NewRaw(4), targets, opts...)
}

func NewChecksum(targets []Variable, opts ...Option) *Relation {
	return NewRelation(relation.InternetChecksum{}, datatype.NewRaw(2), targets, opts...)
}

// NewValue copies target into a relation of type t. transform may be nil.
func NewValue(t datatype.Type, target Variable, transform func([]byte) ([]byte, error), opts ...Option) *Relation {
	var targets []Variable
	if target != nil {
		targets = []Variable{target}
	}
	return NewRelation(relation.Value{Transform: transform}, t, targets, opts...)
}

func (r *Relation) Operation() relation.Operation { return r.op }

func (r *Relation) Type() datatype.Type { return r.typ }

func (r *Relation) Targets() []Variable { return append([]Variable(nil), r.targets...) }

// SetTargets replaces the targets. It exists for trees whose relations refer
// forward to variables built later.
func (r *Relation) SetTargets(targets ...Variable) {
	r.targets = append([]Variable(nil), targets...)
}

func (r *Relation) String() string {
	names := make([]string, len(r.targets))
	for i, t := range r.targets {
		names[i] = t.Name()
	}
	return fmt.Sprintf("Relation(%s %s %v)", r.name, r.op.Name(), names)
}

// encode lays out an operation result in the relation's type.
func (r *Relation) encode(out []byte) (bits.Value, error) {
	if enc, ok := r.typ.(datatype.Encoder); ok {
		return enc.Encode(out)
	}
	return bits.FromBytes(out), nil
}

// Alt matches exactly one of its children.
type Alt struct {
	variable
	children []Variable
}

func NewAlt(children []Variable, opts ...Option) *Alt {
	a := &Alt{variable: newVariable("alt", collect(opts), Ephemeral)}
	a.children = adopt(a, children)
	return a
}

func (a *Alt) Children() []Variable { return append([]Variable(nil), a.children...) }

func (a *Alt) String() string { return fmt.Sprintf("Alt(%s %d)", a.name, len(a.children)) }

// Agg is the ordered concatenation of its children.
type Agg struct {
	variable
	children []Variable
}

func NewAgg(children []Variable, opts ...Option) *Agg {
	a := &Agg{variable: newVariable("agg", collect(opts), Ephemeral)}
	a.children = adopt(a, children)
	return a
}

func (a *Agg) Children() []Variable { return append([]Variable(nil), a.children...) }

func (a *Agg) String() string { return fmt.Sprintf("Agg(%s %d)", a.name, len(a.children)) }

// Repeat is its child repeated between min and max times. With a count
// variable the number of iterations is that variable's value instead, still
// bounded by min and max.
type Repeat struct {
	variable
	child     Variable
	min, max  int
	delimiter *bits.Value
	count     Variable
}

// NewRepeat panics unless 0 <= min <= max <= MaxRepeat.
func NewRepeat(child Variable, min, max int, opts ...Option) *Repeat {
	if min < 0 || max < min || max > MaxRepeat {
		panic(fmt.Sprintf("domain: invalid repeat bounds [%d,%d]", min, max))
	}
	o := collect(opts)
	r := &Repeat{variable: newVariable("repeat", o, Ephemeral), min: min, max: max, delimiter: o.delimiter, count: o.count}
	r.child = adopt(r, []Variable{child})[0]
	return r
}

func (r *Repeat) Child() Variable { return r.child }

func (r *Repeat) Bounds() (min, max int) { return r.min, r.max }

// Count returns the variable holding the iteration count, if any.
func (r *Repeat) Count() (Variable, bool) { return r.count, r.count != nil }

// SetCount binds the iteration count to v; nil restores the interval.
func (r *Repeat) SetCount(v Variable) { r.count = v }

func (r *Repeat) Delimiter() (bits.Value, bool) {
	if r.delimiter == nil {
		return bits.Value{}, false
	}
	return *r.delimiter, true
}

func (r *Repeat) String() string {
	return fmt.Sprintf("Repeat(%s %d..%d)", r.name, r.min, r.max)
}

func adopt(parent Variable, children []Variable) []Variable {
	out := make([]Variable, len(children))
	for i, c := range children {
		if c == nil {
			panic(fmt.Sprintf("domain: nil child %d of %s", i, parent.Name()))
		}
		n := c.node()
		if n.parent != nil {
			panic(fmt.Sprintf("domain: %s already belongs to %s", c.Name(), n.parent.Name()))
		}
		n.parent = parent
		out[i] = c
	}
	return out
}

// Children returns the owned children of v.
func Children(v Variable) []Variable {
	switch v := v.(type) {
	case *Alt:
		return v.children
	case *Agg:
		return v.children
	case *Repeat:
		return []Variable{v.child}
	default:
		return nil
	}
}

// Walk visits v and its descendants depth first. Returning false from fn
// skips the children of the visited variable.
func Walk(v Variable, fn func(Variable) bool) {
	if !fn(v) {
		return
	}
	for _, c := range Children(v) {
		Walk(c, fn)
	}
}
