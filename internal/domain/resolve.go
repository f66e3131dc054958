package domain

import (
	"iter"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/datatype"
)

// resolve is the single entry point over the closed set of variable kinds.
// In the Parse direction every yielded path has consumed a prefix of in and
// assigned it to v; in the Specialize direction in is ignored and every
// yielded path carries a generated value for v. acceptCallback allows
// relations to defer themselves.
func (p *Path) resolve(dir Direction, v Variable, in bits.Value, acceptCallback bool) iter.Seq[*Path] {
	if p.failed() {
		return none
	}
	if dir == Specialize {
		if pr, ok := p.run.presets[v.ID()]; ok {
			return p.specializePreset(v, pr)
		}
	}
	switch v := v.(type) {
	case *Data:
		if dir == Parse {
			return p.parseData(v, in)
		}
		return p.specializeData(v)
	case *Relation:
		if dir == Parse {
			return p.parseRelation(v, in, acceptCallback)
		}
		return p.specializeRelation(v, acceptCallback)
	case *Alt:
		return p.resolveAlt(dir, v, in, acceptCallback)
	case *Agg:
		return p.resolveAgg(dir, v, in, acceptCallback)
	case *Repeat:
		if dir == Parse {
			return p.parseRepeat(v, in, acceptCallback)
		}
		return p.specializeRepeat(v, acceptCallback)
	default:
		p.run.fail(opError(dir.String(), v, ErrInvalidPath))
		return none
	}
}

func none(func(*Path) bool) {}

// contribute assigns val to v on a fresh clone of p and settles callbacks.
func (p *Path) contribute(v Variable, val bits.Value) (*Path, bool) {
	c := p.Clone()
	c.assign(v, val)
	return c, c.settle()
}

// resolveAlt tries children in declared order. Parsing yields every match;
// specialization stops at the first child that succeeds unless strict
// backtracking is on.
func (p *Path) resolveAlt(dir Direction, a *Alt, in bits.Value, accept bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		firstOnly := dir == Specialize && !p.run.cfg.StrictBacktracking
		for i, child := range a.children {
			for c := range p.resolve(dir, child, in, accept) {
				val, _ := c.Assigned(child)
				c.assign(a, val)
				c.choose(a, i)
				if !c.settle() {
					continue
				}
				if !yield(c) || firstOnly {
					return
				}
			}
		}
	}
}

// resolveAgg resolves children left to right, backtracking into earlier
// children when a later one has no candidate.
func (p *Path) resolveAgg(dir Direction, a *Agg, in bits.Value, accept bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		firstOnly := dir == Specialize && !p.run.cfg.StrictBacktracking
		var step func(c *Path, i int, rest bits.Value) bool
		step = func(c *Path, i int, rest bits.Value) bool {
			if i == len(a.children) {
				parts := make([]bits.Value, len(a.children))
				for j, child := range a.children {
					parts[j], _ = c.Assigned(child)
				}
				c.assign(a, bits.Join(parts...))
				if !c.settle() {
					return true
				}
				return yield(c)
			}
			for next := range c.resolve(dir, a.children[i], rest, accept) {
				tail := rest
				if dir == Parse {
					val, _ := next.Assigned(a.children[i])
					tail = rest.Tail(val.Len())
				}
				if !step(next, i+1, tail) {
					return false
				}
				if firstOnly {
					break
				}
			}
			return true
		}
		step(p.Clone(), 0, in)
	}
}

// repeatCounts is the interval of iteration counts r may take on this path.
// A count variable pins it to the value that variable was assigned on the
// path; without one, or outside r's bounds, ok is false.
func (p *Path) repeatCounts(r *Repeat) (lo, hi int, ok bool) {
	hi = min(r.max, p.run.cfg.MaxRepeat)
	if r.count == nil {
		return r.min, hi, hi >= r.min
	}
	val, assigned := p.Assigned(r.count)
	if !assigned {
		p.run.log.Debug().Str("repeat", r.name).Str("count", r.count.Name()).Msg("count not assigned yet")
		return 0, 0, false
	}
	n, err := integerValue(r.count, val)
	if err != nil || n < uint64(r.min) || n > uint64(hi) {
		p.run.log.Debug().Str("repeat", r.name).Str("count", val.Hex()).Msg("count out of bounds")
		return 0, 0, false
	}
	return int(n), int(n), true
}

func integerValue(v Variable, val bits.Value) (uint64, error) {
	var t datatype.Type
	switch v := v.(type) {
	case *Data:
		t = v.typ
	case *Relation:
		t = v.typ
	}
	if it, ok := t.(datatype.Integer); ok {
		return it.Uint(val)
	}
	return val.Uint()
}
