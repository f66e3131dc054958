package domain

import (
	"math/rand"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/config"
	"github.com/danmuck/domainkit/internal/datatype"
	"github.com/danmuck/domainkit/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Direction selects abstraction or specialization.
type Direction int

const (
	Parse Direction = iota
	Specialize
)

func (d Direction) String() string {
	if d == Specialize {
		return "specialize"
	}
	return "parse"
}

// run is the state shared by every Path of one engine operation.
type run struct {
	cfg     config.Engine
	gen     *datatype.Generator
	rng     *rand.Rand
	graph   *graph
	presets map[ID]Preset
	log     zerolog.Logger
	metrics *observability.Metrics
	// err is the first fatal error; once set every resolver stops yielding.
	err error
}

func (r *run) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Path is one attempt at resolving a tree: the values assigned so far, the
// memory writes it would commit and the relation callbacks still waiting on
// their targets. Paths are never shared between goroutines.
type Path struct {
	name      string
	memory    *Memory
	assigned  cow[bits.Value]
	staged    cow[bits.Value]
	choices   cow[int]
	callbacks []*callback
	run       *run
}

func newPath(mem *Memory, r *run) *Path {
	return &Path{name: uuid.NewString(), memory: mem, run: r}
}

func (p *Path) Name() string { return p.name }

// Memory is the session memory this path commits into.
func (p *Path) Memory() *Memory { return p.memory }

// Value resolves v from the path's assignments, then its staged memory
// writes, then the session memory.
func (p *Path) Value(v Variable) (bits.Value, bool) {
	if val, ok := p.assigned.get(v.ID()); ok {
		return val, true
	}
	return p.memorized(v.ID())
}

func (p *Path) HasValue(v Variable) bool {
	_, ok := p.Value(v)
	return ok
}

// Assigned only looks at values produced by this path.
func (p *Path) Assigned(v Variable) (bits.Value, bool) {
	return p.assigned.get(v.ID())
}

// Choice reports which child of an Alt this path took.
func (p *Path) Choice(a *Alt) (int, bool) { return p.choices.get(a.ID()) }

// Pending is the number of relation callbacks still queued.
func (p *Path) Pending() int { return len(p.callbacks) }

// Clone shares all state with p until either side writes.
func (p *Path) Clone() *Path {
	return &Path{
		name:      uuid.NewString(),
		memory:    p.memory,
		assigned:  p.assigned.clone(),
		staged:    p.staged.clone(),
		choices:   p.choices.clone(),
		callbacks: append([]*callback(nil), p.callbacks...),
		run:       p.run,
	}
}

// Commit applies the path's staged memory writes to the session memory.
func (p *Path) Commit() {
	p.staged.each(p.memory.Memorize)
	p.staged.reset()
}

// Fields lists the assigned values of the given variables in order; unset
// variables are skipped.
func (p *Path) Fields(vars ...Variable) []bits.Value {
	out := make([]bits.Value, 0, len(vars))
	for _, v := range vars {
		if val, ok := p.Value(v); ok {
			out = append(out, val)
		}
	}
	return out
}

func (p *Path) memorized(id ID) (bits.Value, bool) {
	if v, ok := p.staged.get(id); ok {
		return v, true
	}
	return p.memory.Value(id)
}

func (p *Path) memorize(id ID, v bits.Value) { p.staged.set(id, v) }

func (p *Path) assign(v Variable, val bits.Value) { p.assigned.set(v.ID(), val) }

func (p *Path) choose(a *Alt, i int) { p.choices.set(a.ID(), i) }

func (p *Path) failed() bool { return p.run.err != nil }

// forget drops the assignments and choices of v's subtree so the next
// iteration of a Repeat resolves it from scratch.
func (p *Path) forget(v Variable) {
	Walk(v, func(n Variable) bool {
		p.assigned.del(n.ID())
		if a, ok := n.(*Alt); ok {
			p.choices.del(a.ID())
		}
		return true
	})
}
