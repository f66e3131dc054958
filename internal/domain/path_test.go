package domain

import (
	"testing"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/config"
	"github.com/danmuck/domainkit/internal/datatype"
	"github.com/danmuck/domainkit/internal/relation"
	"github.com/danmuck/domainkit/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

func TestMemoryDuplicateIsDeep(t *testing.T) {
	testlog.Start(t)

	a, b := NewID(), NewID()
	mem := NewMemory()
	mem.Memorize(a, bits.FromBytes([]byte{1}))

	dup := mem.Duplicate()
	dup.Memorize(a, bits.FromBytes([]byte{2}))
	dup.Memorize(b, bits.FromBytes([]byte{3}))

	if got, _ := mem.Value(a); got.Hex() != "01" {
		t.Fatalf("original changed through duplicate: %s", got.Hex())
	}
	if mem.Has(b) || mem.Len() != 1 {
		t.Fatalf("original gained entries: %s", mem)
	}
	mem.Forget(a)
	if !dup.Has(a) {
		t.Fatalf("forget leaked into duplicate")
	}
}

func TestMemoryIDsAreOrdered(t *testing.T) {
	testlog.Start(t)

	mem := NewMemory()
	ids := []ID{IDFromName(ID{}, "c"), IDFromName(ID{}, "a"), IDFromName(ID{}, "b")}
	for i, id := range ids {
		mem.Memorize(id, bits.FromUint(uint64(i), 8))
	}
	first := mem.IDs()
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, mem.IDs()); diff != "" {
			t.Fatalf("ids not stable (-first +got):\n%s", diff)
		}
	}
	if len(first) != 3 {
		t.Fatalf("ids: got %d want 3", len(first))
	}
}

func TestPathCloneIsolation(t *testing.T) {
	testlog.Start(t)

	e := testEngine(t)
	x := NewData(datatype.NewRaw(1), Named("x"))
	y := NewData(datatype.NewRaw(1), Named("y"))
	mem := NewMemory()
	p, err := e.NewPath(mem, NewAgg([]Variable{x, y}))
	if err != nil {
		t.Fatalf("new path: %v", err)
	}
	p.assign(x, bits.FromUint(1, 8))

	c := p.Clone()
	c.assign(x, bits.FromUint(2, 8))
	c.assign(y, bits.FromUint(3, 8))
	p.assign(y, bits.FromUint(4, 8))

	check := func(path *Path, v Variable, want string) {
		t.Helper()
		if got, _ := path.Value(v); got.Hex() != want {
			t.Fatalf("%s on %s: got %s want %s", v.Name(), path.Name(), got.Hex(), want)
		}
	}
	check(p, x, "01")
	check(p, y, "04")
	check(c, x, "02")
	check(c, y, "03")
	if p.Name() == c.Name() {
		t.Fatalf("clone must carry its own name")
	}
}

func TestPathStagesMemoryUntilCommit(t *testing.T) {
	testlog.Start(t)

	e := testEngine(t)
	x := NewData(datatype.NewRaw(1))
	mem := NewMemory()
	p, _ := e.NewPath(mem, x)

	p.memorize(x.ID(), bits.FromUint(9, 8))
	if mem.Has(x.ID()) {
		t.Fatalf("memorize wrote through before commit")
	}
	if got, ok := p.Value(x); !ok || got.Hex() != "09" {
		t.Fatalf("staged value not visible on the path: %s,%v", got.Hex(), ok)
	}
	sibling := p.Clone()
	p.Commit()
	if got, _ := mem.Value(x.ID()); got.Hex() != "09" {
		t.Fatalf("commit: got %s", got.Hex())
	}
	if got, _ := sibling.staged.get(x.ID()); got.Hex() != "09" {
		t.Fatalf("commit must not clear a sibling's staged writes")
	}
}

func TestDeepCloneChainsStayCorrect(t *testing.T) {
	testlog.Start(t)

	e := testEngine(t)
	vars := make([]Variable, 3*maxLayerDepth)
	for i := range vars {
		vars[i] = NewData(datatype.NewRaw(1))
	}
	p, _ := e.NewPath(NewMemory(), NewAgg(vars))
	for i, v := range vars {
		p = p.Clone()
		p.assign(v, bits.FromUint(uint64(i), 8))
	}
	if p.assigned.top.depth > maxLayerDepth {
		t.Fatalf("layer depth %d exceeds %d", p.assigned.top.depth, maxLayerDepth)
	}
	for i, v := range vars {
		got, ok := p.Assigned(v)
		n, _ := got.Uint()
		if !ok || int(n) != i {
			t.Fatalf("var %d: got %d,%v", i, n, ok)
		}
	}
}

func TestForgetHidesSubtreeFromTheClone(t *testing.T) {
	testlog.Start(t)

	e := testEngine(t)
	x := NewData(datatype.NewRaw(1), Named("x"))
	left := NewData(datatype.NewRaw(1), Named("left"))
	choice := NewAlt([]Variable{left, NewData(datatype.NewRaw(2))}, Named("choice"))
	item := NewAgg([]Variable{x, choice}, Named("item"))
	p, _ := e.NewPath(NewMemory(), item)
	p.assign(x, bits.FromUint(1, 8))
	p.assign(left, bits.FromUint(2, 8))
	p.choose(choice, 0)
	p.assign(item, bits.FromUint(0x0102, 16))

	c := p.Clone()
	c.forget(item)
	for _, v := range []Variable{x, left, choice, item} {
		if _, ok := c.Assigned(v); ok {
			t.Fatalf("%s still assigned after forget", v.Name())
		}
		if _, ok := p.Assigned(v); !ok && v != Variable(choice) {
			t.Fatalf("forget leaked into the original: %s", v.Name())
		}
	}
	if _, ok := c.Choice(choice); ok {
		t.Fatalf("alt choice survived forget")
	}
	if i, ok := p.Choice(choice); !ok || i != 0 {
		t.Fatalf("original choice lost: %d,%v", i, ok)
	}

	// tombstones survive deep chains and a later write revives the id
	for i := 0; i < 2*maxLayerDepth; i++ {
		c = c.Clone()
		c.assign(NewData(datatype.NewRaw(1)), bits.FromUint(uint64(i), 8))
	}
	if _, ok := c.Assigned(x); ok {
		t.Fatalf("forgotten value reappeared after flattening")
	}
	c.assign(x, bits.FromUint(7, 8))
	if got, _ := c.Assigned(x); got.Hex() != "07" {
		t.Fatalf("reassign after forget: got %s", got.Hex())
	}
}

func TestGraphRanksDependenciesFirst(t *testing.T) {
	testlog.Start(t)

	payload := NewData(datatype.NewRawRange(1, 4))
	inner := NewHash(relation.SHA256, []Variable{payload}, Named("inner"))
	body := NewAgg([]Variable{payload, inner})
	outer := NewCRC32([]Variable{body}, Named("outer"))
	size := NewSize(datatype.Uint8(), nil, Named("size"))
	size.SetTargets(size, body)
	root := NewAgg([]Variable{size, body, outer})

	g := buildGraph(root)
	if g.size != 3 {
		t.Fatalf("relations: got %d want 3", g.size)
	}
	if g.rankOf(inner) >= g.rankOf(outer) || g.rankOf(inner) >= g.rankOf(size) {
		t.Fatalf("inner must rank before its dependents: inner=%d outer=%d size=%d",
			g.rankOf(inner), g.rankOf(outer), g.rankOf(size))
	}
	for _, r := range []*Relation{inner, outer, size} {
		if g.isCyclic(r) {
			t.Fatalf("%s must not be cyclic", r.Name())
		}
	}
	if stray := NewCRC32(nil); g.rankOf(stray) != g.size {
		t.Fatalf("unknown relation must rank last")
	}
}

func TestGraphMarksCycles(t *testing.T) {
	testlog.Start(t)

	a := NewHash(relation.MD5, nil, Named("a"))
	b := NewHash(relation.MD5, nil, Named("b"))
	a.SetTargets(b)
	b.SetTargets(a)
	self := NewCRC32(nil, Named("self"))
	self.SetTargets(self)

	g := buildGraph(NewAgg([]Variable{a, b, self}))
	for _, r := range []*Relation{a, b, self} {
		if !g.isCyclic(r) {
			t.Fatalf("%s must be cyclic", r.Name())
		}
	}
	if g.rankOf(a) != g.rankOf(b) {
		t.Fatalf("a and b share a component: %d vs %d", g.rankOf(a), g.rankOf(b))
	}
}

func TestCyclicCallbacksAreBounded(t *testing.T) {
	testlog.Start(t)

	e := testEngine(t, func(c *config.Engine) { c.RetryBound = 1 })
	a := NewHash(relation.MD5, nil, Named("a"))
	b := NewHash(relation.MD5, nil, Named("b"))
	a.SetTargets(b)
	b.SetTargets(a)
	root := NewAgg([]Variable{a, b})

	// Both relations must fit 32 bytes, so parsing settles or fails but
	// never spins.
	raw := bits.Zeros(256)
	var n int
	for range e.Candidates(raw, root, NewMemory()) {
		n++
	}
	if n != 0 {
		t.Fatalf("zero bytes cannot be a pair of mutual digests")
	}
}
