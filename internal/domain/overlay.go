package domain

// maxLayerDepth bounds lookup cost; deeper chains are flattened on fork.
const maxLayerDepth = 24

// layer is one level of a persistent map. A layer with children is frozen.
// A tombstone hides the value of an id in every parent layer.
type layer[V any] struct {
	parent *layer[V]
	local  map[ID]V
	dead   map[ID]bool
	depth  int
}

func (l *layer[V]) get(id ID) (V, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if v, ok := cur.local[id]; ok {
			return v, true
		}
		if cur.dead[id] {
			break
		}
	}
	var zero V
	return zero, false
}

func (l *layer[V]) fork() *layer[V] {
	base := l
	if l.depth >= maxLayerDepth {
		base = l.flatten()
	}
	return &layer[V]{parent: base, depth: base.depth + 1}
}

func (l *layer[V]) flatten() *layer[V] {
	out := &layer[V]{local: make(map[ID]V)}
	l.each(func(id ID, v V) { out.local[id] = v })
	return out
}

// each visits the nearest live value of every id.
func (l *layer[V]) each(fn func(ID, V)) {
	seen := make(map[ID]bool)
	for cur := l; cur != nil; cur = cur.parent {
		for id, v := range cur.local {
			if seen[id] {
				continue
			}
			seen[id] = true
			fn(id, v)
		}
		for id := range cur.dead {
			seen[id] = true
		}
	}
}

// cow is a copy-on-write handle over a layer chain. Cloning a handle is O(1);
// the first write after a clone pushes a private layer.
type cow[V any] struct {
	top    *layer[V]
	shared bool
}

func (c *cow[V]) get(id ID) (V, bool) {
	if c.top == nil {
		var zero V
		return zero, false
	}
	return c.top.get(id)
}

func (c *cow[V]) writable() *layer[V] {
	switch {
	case c.top == nil:
		c.top = &layer[V]{}
	case c.shared:
		c.top = c.top.fork()
	}
	c.shared = false
	return c.top
}

func (c *cow[V]) set(id ID, v V) {
	top := c.writable()
	if top.local == nil {
		top.local = make(map[ID]V)
	}
	delete(top.dead, id)
	top.local[id] = v
}

// del hides id from this handle without touching shared layers.
func (c *cow[V]) del(id ID) {
	if _, ok := c.get(id); !ok {
		return
	}
	top := c.writable()
	delete(top.local, id)
	if top.parent == nil {
		return
	}
	if top.dead == nil {
		top.dead = make(map[ID]bool)
	}
	top.dead[id] = true
}

func (c *cow[V]) clone() cow[V] {
	c.shared = true
	return cow[V]{top: c.top, shared: true}
}

func (c *cow[V]) each(fn func(ID, V)) {
	if c.top != nil {
		c.top.each(fn)
	}
}

func (c *cow[V]) reset() { *c = cow[V]{} }
