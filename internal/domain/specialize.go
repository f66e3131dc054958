package domain

import (
	"fmt"
	"iter"

	"github.com/danmuck/domainkit/internal/bits"
)

func (p *Path) specializeData(d *Data) iter.Seq[*Path] {
	defined := p.defined(d)
	switch {
	case defined && (d.svas == Constant || d.svas == Persistent):
		return p.use(d)
	case d.svas == Volatile, d.svas == Constant:
		return p.regenerate(d, false)
	default:
		return p.regenerate(d, true)
	}
}

// use emits the known value of d.
func (p *Path) use(d *Data) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		val, _ := p.knownValue(d)
		if c, ok := p.contribute(d, val); ok {
			yield(c)
		}
	}
}

// regenerate draws a fresh value from d's type, memorizing it when asked.
// An untyped variable falls back to its fixed value.
func (p *Path) regenerate(d *Data, memorize bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		var val bits.Value
		switch {
		case d.typ != nil:
			val = d.typ.Generate(p.run.gen)
		case d.value != nil:
			val = *d.value
		default:
			p.run.fail(opError("specialize", d, ErrUndefinedValue))
			return
		}
		c := p.Clone()
		c.assign(d, val)
		if memorize {
			c.memorize(d.id, val)
		}
		if c.settle() {
			yield(c)
		}
	}
}

// specializeRelation computes r when its targets allow it, otherwise emits a
// placeholder of the right width and defers the real value to a callback.
func (p *Path) specializeRelation(r *Relation, accept bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		val, ok, err := p.relationValue(r)
		if err != nil {
			p.run.fail(opError("specialize", r, fmt.Errorf("%w: %w", ErrGeneration, err)))
			return
		}
		if ok {
			if c, settled := p.contribute(r, val); settled {
				yield(c)
			}
			return
		}
		if !accept {
			return
		}
		c := p.Clone()
		c.assign(r, r.typ.Generate(p.run.gen))
		c.register(r, Specialize)
		if c.settle() {
			yield(c)
		}
	}
}

func (p *Path) specializeRepeat(r *Repeat, accept bool) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		lo, hi, ok := p.repeatCounts(r)
		if !ok {
			return
		}
		counts := []int{lo + p.run.gen.Intn(hi-lo+1)}
		if p.run.cfg.StrictBacktracking {
			counts = counts[:0]
			for _, k := range p.run.rng.Perm(hi - lo + 1) {
				counts = append(counts, lo+k)
			}
		}
		delim, hasDelim := r.Delimiter()

		var step func(c *Path, n, i int, acc bits.Value) bool
		step = func(c *Path, n, i int, acc bits.Value) bool {
			if i == n {
				c.assign(r, acc)
				if !c.settle() {
					return true
				}
				return yield(c)
			}
			c.forget(r.child)
			for next := range c.resolve(Specialize, r.child, bits.Value{}, accept) {
				val, _ := next.Assigned(r.child)
				total := acc.Concat(val)
				if hasDelim && i < n-1 {
					total = total.Concat(delim)
				}
				if !step(next, n, i+1, total) {
					return false
				}
				if !p.run.cfg.StrictBacktracking {
					break
				}
			}
			return true
		}

		for _, n := range counts {
			if !step(p.Clone(), n, 0, bits.Value{}) {
				return
			}
		}
	}
}

// specializePreset emits a caller-supplied value without validation.
func (p *Path) specializePreset(v Variable, pr Preset) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		val, err := pr.Next()
		if err != nil {
			p.run.fail(opError("specialize", v, err))
			return
		}
		if c, ok := p.contribute(v, val); ok {
			yield(c)
		}
	}
}
