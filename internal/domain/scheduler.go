package domain

import (
	"fmt"
	"slices"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/datatype"
	"github.com/danmuck/domainkit/internal/relation"
)

// callback re-evaluates a relation once its targets are resolved.
type callback struct {
	dependent *Relation
	direction Direction
}

func (p *Path) register(r *Relation, dir Direction) {
	for _, cb := range p.callbacks {
		if cb.dependent == r && cb.direction == dir {
			return
		}
	}
	p.callbacks = append(p.callbacks, &callback{dependent: r, direction: dir})
}

func (p *Path) unregister(cb *callback) {
	p.callbacks = slices.DeleteFunc(p.callbacks, func(c *callback) bool { return c == cb })
}

// settle runs every ready callback after a contribution. It reports false
// when a callback rejected the path; that callback stays queued.
//
// Acyclic callbacks run in dependency rank order. When only callbacks from a
// dependency cycle are ready they are shuffled and retried for at most
// RetryBound rounds; anything left is reported as a deadlock by the engine.
func (p *Path) settle() bool {
	rounds := 0
	for len(p.callbacks) > 0 && !p.failed() {
		ready := p.ready()
		if len(ready) == 0 {
			return true
		}
		g := p.run.graph
		slices.SortStableFunc(ready, func(a, b *callback) int {
			return g.rankOf(a.dependent) - g.rankOf(b.dependent)
		})
		if g.isCyclic(ready[0].dependent) {
			if rounds >= p.run.cfg.RetryBound {
				p.run.log.Debug().Str("path", p.name).Int("rounds", rounds).Msg("cyclic callbacks left pending")
				return true
			}
			rounds++
			p.run.rng.Shuffle(len(ready), func(i, j int) { ready[i], ready[j] = ready[j], ready[i] })
		}
		cb := ready[0]
		p.unregister(cb)
		ok := p.execute(cb)
		p.run.metrics.RecordCallback(cb.direction.String(), ok)
		if !ok {
			p.callbacks = append(p.callbacks, cb)
			return false
		}
	}
	return !p.failed()
}

func (p *Path) ready() []*callback {
	var out []*callback
	for _, cb := range p.callbacks {
		if _, ok, _ := p.relationInput(cb.dependent); ok {
			out = append(out, cb)
		}
	}
	return out
}

func (p *Path) execute(cb *callback) bool {
	r := cb.dependent
	want, ok, err := p.relationValue(r)
	if err != nil || !ok {
		p.run.log.Debug().Str("relation", r.name).Err(err).Msg("callback could not compute")
		return false
	}
	switch cb.direction {
	case Parse:
		got, _ := p.Assigned(r)
		if !got.Equal(want) {
			p.run.log.Debug().Str("relation", r.name).Str("want", want.Hex()).Str("got", got.Hex()).Msg("relation mismatch")
			return false
		}
		return true
	default:
		prev, _ := p.Assigned(r)
		p.assign(r, want)
		p.propagate(r)
		if !prev.Equal(want) {
			p.requeue(r)
		}
		return true
	}
}

// requeue schedules the already computed dependents of r again after r's
// value changed. Preset relations keep their value.
func (p *Path) requeue(r *Relation) {
	for _, d := range p.run.graph.dependents(r) {
		if _, preset := p.run.presets[d.id]; preset {
			continue
		}
		if _, ok := p.Assigned(d); ok {
			p.register(d, Specialize)
		}
	}
}

// stale reports whether t still carries a placeholder: some relation inside
// t waits on a specialization callback. Members of r's own dependency cycle
// are exempt; their placeholders are what the bounded retry iterates on.
// Length operations only care about placeholders whose width may change.
func (p *Path) stale(r *Relation, t Variable, widthOnly bool) bool {
	for _, cb := range p.callbacks {
		d := cb.dependent
		if cb.direction != Specialize || d == r || p.run.graph.sameComponent(d, r) {
			continue
		}
		if widthOnly {
			if _, fixed := datatype.FixedSize(d.typ); fixed {
				continue
			}
		}
		if within(d, t) {
			return true
		}
	}
	return false
}

func within(v, root Variable) bool {
	for n := v; n != nil; n = n.Parent() {
		if n == root {
			return true
		}
	}
	return false
}

// consistent recomputes every cyclic relation the path assigned and reports
// whether all of them still hold their value.
func (p *Path) consistent() bool {
	g := p.run.graph
	for _, r := range g.rels {
		if !g.isCyclic(r) {
			continue
		}
		if _, preset := p.run.presets[r.id]; preset {
			continue
		}
		got, ok := p.Assigned(r)
		if !ok {
			continue
		}
		want, ok, err := p.relationValue(r)
		if err != nil || !ok || !got.Equal(want) {
			p.run.log.Debug().Str("relation", r.name).Msg("cyclic relation left inconsistent")
			return false
		}
	}
	return true
}

// relationInput gathers what r's operation needs. For length operations that
// is a bit count, known early for fixed-width targets; otherwise it is the
// concatenated target values produced by this path. A target still holding a
// specialization placeholder is not an input yet.
func (p *Path) relationInput(r *Relation) (input bits.Value, ok bool, nbits int) {
	if _, lengthOnly := r.op.(relation.LengthOperation); lengthOnly {
		total := 0
		for _, t := range r.targets {
			if t == Variable(r) {
				n, fixed := datatype.FixedSize(r.typ)
				if !fixed {
					return bits.Value{}, false, 0
				}
				total += n
				continue
			}
			if v, assigned := p.Assigned(t); assigned {
				if p.stale(r, t, true) {
					return bits.Value{}, false, 0
				}
				total += v.Len()
				continue
			}
			n, fixed := fixedWidth(t)
			if !fixed {
				return bits.Value{}, false, 0
			}
			total += n
		}
		return bits.Value{}, true, total
	}
	parts := make([]bits.Value, 0, len(r.targets))
	for _, t := range r.targets {
		v, assigned := p.Assigned(t)
		if !assigned || t == Variable(r) || p.stale(r, t, false) {
			return bits.Value{}, false, 0
		}
		parts = append(parts, v)
	}
	return bits.Join(parts...), true, 0
}

// relationValue computes r's encoded value when its input is available.
func (p *Path) relationValue(r *Relation) (bits.Value, bool, error) {
	in, ok, nbits := p.relationInput(r)
	if !ok {
		return bits.Value{}, false, nil
	}
	if bop, ok := r.op.(relation.BitOperation); ok {
		v, err := bop.ComputeBits(in)
		if err != nil {
			return bits.Value{}, false, err
		}
		if !r.typ.CanParse(v) {
			return bits.Value{}, false, fmt.Errorf("%w: %d bits into %s", datatype.ErrEncode, v.Len(), r.typ.Name())
		}
		return v, true, nil
	}
	var out []byte
	var err error
	if lop, lengthOnly := r.op.(relation.LengthOperation); lengthOnly {
		out, err = lop.ComputeLength(nbits)
	} else {
		out, err = r.op.Compute(in)
	}
	if err != nil {
		return bits.Value{}, false, err
	}
	v, err := r.encode(out)
	if err != nil {
		return bits.Value{}, false, err
	}
	return v, true, nil
}

// propagate refreshes the already assigned ancestors of v after v's value
// was replaced by a callback.
func (p *Path) propagate(v Variable) {
	child := v
	for parent := v.Parent(); parent != nil; child, parent = parent, parent.Parent() {
		if _, ok := p.Assigned(parent); !ok {
			return
		}
		switch n := parent.(type) {
		case *Agg:
			parts := make([]bits.Value, 0, len(n.children))
			for _, c := range n.children {
				val, ok := p.Assigned(c)
				if !ok {
					return
				}
				parts = append(parts, val)
			}
			p.assign(n, bits.Join(parts...))
		case *Alt:
			i, ok := p.Choice(n)
			if !ok || n.children[i] != child {
				return
			}
			val, _ := p.Assigned(child)
			p.assign(n, val)
		default:
			// Repeat values interleave several child iterations and cannot
			// be rebuilt from the last one.
			p.run.log.Debug().Str("variable", parent.Name()).Msg("stale value above repeat")
			return
		}
	}
}

// fixedWidth reports the bit width v always has, when it has one.
func fixedWidth(v Variable) (int, bool) {
	switch v := v.(type) {
	case *Data:
		if v.typ != nil {
			return datatype.FixedSize(v.typ)
		}
		if v.value != nil {
			return v.value.Len(), true
		}
		return 0, false
	case *Relation:
		return datatype.FixedSize(v.typ)
	case *Agg:
		total := 0
		for _, c := range v.children {
			n, ok := fixedWidth(c)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	case *Alt:
		width := -1
		for _, c := range v.children {
			n, ok := fixedWidth(c)
			if !ok || width >= 0 && n != width {
				return 0, false
			}
			width = n
		}
		return width, width >= 0
	case *Repeat:
		if v.min != v.max {
			return 0, false
		}
		n, ok := fixedWidth(v.child)
		if !ok {
			return 0, false
		}
		total := n * v.min
		if v.delimiter != nil && v.min > 1 {
			total += v.delimiter.Len() * (v.min - 1)
		}
		return total, true
	}
	return 0, false
}

// minWidth is a lower bound on the bits v consumes.
func minWidth(v Variable) int {
	switch v := v.(type) {
	case *Data:
		if v.typ != nil {
			n, _ := v.typ.Size()
			return n
		}
		if v.value != nil {
			return v.value.Len()
		}
	case *Relation:
		n, _ := v.typ.Size()
		return n
	case *Agg:
		total := 0
		for _, c := range v.children {
			total += minWidth(c)
		}
		return total
	case *Alt:
		best := -1
		for _, c := range v.children {
			if n := minWidth(c); best < 0 || n < best {
				best = n
			}
		}
		return max(best, 0)
	case *Repeat:
		return v.min * minWidth(v.child)
	}
	return 0
}
