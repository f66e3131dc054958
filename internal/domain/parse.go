package domain

import (
	"iter"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/datatype"
)

// defined reports whether d already has a value to compare against.
func (p *Path) defined(d *Data) bool {
	if d.value != nil {
		return true
	}
	_, ok := p.memorized(d.id)
	return ok
}

// knownValue is the memorized value of d, else its fixed value.
func (p *Path) knownValue(d *Data) (bits.Value, bool) {
	if v, ok := p.memorized(d.id); ok {
		return v, true
	}
	return d.Value()
}

func (p *Path) parseData(d *Data, in bits.Value) iter.Seq[*Path] {
	defined := p.defined(d)
	switch {
	case defined && (d.svas == Constant || d.svas == Persistent):
		return p.valueCMP(d, in)
	case d.svas == Volatile:
		return p.domainCMP(d, in, false)
	case !defined && d.svas == Constant:
		p.run.log.Debug().Str("variable", d.name).Msg("constant without value cannot parse")
		return none
	default:
		return p.domainCMP(d, in, true)
	}
}

// valueCMP accepts exactly the known value as a prefix of in.
func (p *Path) valueCMP(d *Data, in bits.Value) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		want, _ := p.knownValue(d)
		if !in.HasPrefix(want) {
			return
		}
		if c, ok := p.contribute(d, want); ok {
			yield(c)
		}
	}
}

// domainCMP yields every prefix of in the type accepts, longest first. With
// learn set each candidate also memorizes its prefix.
func (p *Path) domainCMP(d *Data, in bits.Value, learn bool) iter.Seq[*Path] {
	if d.typ == nil {
		if d.value == nil {
			p.run.fail(opError("parse", d, ErrUndefinedValue))
			return none
		}
		return p.valueCMP(d, in)
	}
	return func(yield func(*Path) bool) {
		for size := range prefixSizes(d.typ, in) {
			head := in.Head(size)
			if size > 0 && !d.typ.CanParse(head) {
				continue
			}
			c := p.Clone()
			c.assign(d, head)
			if learn {
				c.memorize(d.id, head)
			}
			if !c.settle() {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// prefixSizes counts down from the longest admissible prefix to the shortest.
func prefixSizes(t datatype.Type, in bits.Value) iter.Seq[int] {
	return func(yield func(int) bool) {
		min, max := t.Size()
		if max == datatype.Unbounded || max > in.Len() {
			max = in.Len()
		}
		for size := max; size >= min; size-- {
			if !yield(size) {
				return
			}
		}
	}
}

func (p *Path) parseRelation(r *Relation, in bits.Value, accept bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		want, ok, err := p.relationValue(r)
		if err != nil {
			p.run.log.Debug().Str("relation", r.name).Err(err).Msg("relation cannot compute")
			return
		}
		if ok {
			if !in.HasPrefix(want) {
				return
			}
			if c, settled := p.contribute(r, want); settled {
				yield(c)
			}
			return
		}
		if !accept {
			return
		}
		// Targets unresolved: take each admissible width tentatively and
		// verify once they are known.
		for size := range prefixSizes(r.typ, in) {
			head := in.Head(size)
			if size > 0 && !r.typ.CanParse(head) {
				continue
			}
			c := p.Clone()
			c.assign(r, head)
			c.register(r, Parse)
			if !c.settle() {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func (p *Path) parseRepeat(r *Repeat, in bits.Value, accept bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		lo, hi, ok := p.repeatCounts(r)
		if !ok {
			return
		}
		if w := minWidth(r.child); w > 0 {
			hi = min(hi, in.Len()/w)
		}
		delim, hasDelim := r.Delimiter()

		var step func(c *Path, n, i int, rest, acc bits.Value) bool
		step = func(c *Path, n, i int, rest, acc bits.Value) bool {
			if i == n {
				c.assign(r, acc)
				if !c.settle() {
					return true
				}
				return yield(c)
			}
			c.forget(r.child)
			for next := range c.resolve(Parse, r.child, rest, accept) {
				val, _ := next.Assigned(r.child)
				tail := rest.Tail(val.Len())
				total := acc.Concat(val)
				if hasDelim && i < n-1 {
					if !tail.HasPrefix(delim) {
						continue
					}
					tail = tail.Tail(delim.Len())
					total = total.Concat(delim)
				}
				if !step(next, n, i+1, tail, total) {
					return false
				}
			}
			return true
		}

		for n := hi; n >= lo; n-- {
			if !step(p.Clone(), n, 0, in, bits.Value{}) {
				return
			}
		}
	}
}
