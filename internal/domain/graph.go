package domain

import "github.com/danmuck/domainkit/internal/relation"

// graph orders relations so that a relation is evaluated after the relations
// its targets contain. Relations in a strongly connected component have no
// such order and fall back to shuffled bounded retry.
type graph struct {
	rels   []*Relation
	rank   map[ID]int
	cyclic map[ID]bool
	users  map[ID][]*Relation
	size   int
}

func buildGraph(roots ...Variable) *graph {
	var rels []*Relation
	seen := make(map[ID]bool)
	var collect func(v Variable)
	collect = func(v Variable) {
		Walk(v, func(n Variable) bool {
			if seen[n.ID()] {
				return false
			}
			seen[n.ID()] = true
			if r, ok := n.(*Relation); ok {
				rels = append(rels, r)
				for _, t := range r.targets {
					collect(t)
				}
			}
			return true
		})
	}
	for _, root := range roots {
		if root != nil {
			collect(root)
		}
	}

	edges := make(map[ID][]ID, len(rels))
	users := make(map[ID][]*Relation)
	selfLoop := make(map[ID]bool)
	for _, r := range rels {
		_, lengthOnly := r.op.(relation.LengthOperation)
		deps := make(map[ID]bool)
		for _, t := range r.targets {
			Walk(t, func(n Variable) bool {
				if dep, ok := n.(*Relation); ok {
					if dep == r {
						if !lengthOnly {
							selfLoop[r.id] = true
						}
						return true
					}
					if !deps[dep.id] {
						deps[dep.id] = true
						edges[r.id] = append(edges[r.id], dep.id)
						users[dep.id] = append(users[dep.id], r)
					}
				}
				return true
			})
		}
	}

	st := &tarjanState{
		index:   make(map[ID]int),
		lowlink: make(map[ID]int),
		onStack: make(map[ID]bool),
		edges:   edges,
	}
	for _, r := range rels {
		if _, ok := st.index[r.id]; !ok {
			st.strongConnect(r.id)
		}
	}

	g := &graph{
		rels:   rels,
		rank:   make(map[ID]int, len(rels)),
		cyclic: make(map[ID]bool),
		users:  users,
		size:   len(rels),
	}
	// Tarjan emits components dependencies first.
	for i, scc := range st.sccs {
		for _, id := range scc {
			g.rank[id] = i
			if len(scc) > 1 || selfLoop[id] {
				g.cyclic[id] = true
			}
		}
	}
	return g
}

func (g *graph) rankOf(r *Relation) int {
	if n, ok := g.rank[r.id]; ok {
		return n
	}
	return g.size
}

func (g *graph) isCyclic(r *Relation) bool { return g.cyclic[r.id] }

// sameComponent reports whether a and b belong to one dependency cycle.
func (g *graph) sameComponent(a, b *Relation) bool {
	ra, okA := g.rank[a.id]
	rb, okB := g.rank[b.id]
	return okA && okB && ra == rb
}

// dependents lists the relations whose targets contain r.
func (g *graph) dependents(r *Relation) []*Relation { return g.users[r.id] }

type tarjanState struct {
	counter int
	index   map[ID]int
	lowlink map[ID]int
	onStack map[ID]bool
	stack   []ID
	sccs    [][]ID
	edges   map[ID][]ID
}

func (s *tarjanState) strongConnect(v ID) {
	s.index[v] = s.counter
	s.lowlink[v] = s.counter
	s.counter++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	for _, w := range s.edges[v] {
		if _, visited := s.index[w]; !visited {
			s.strongConnect(w)
			s.lowlink[v] = min(s.lowlink[v], s.lowlink[w])
		} else if s.onStack[w] {
			s.lowlink[v] = min(s.lowlink[v], s.index[w])
		}
	}

	if s.lowlink[v] == s.index[v] {
		var scc []ID
		for {
			w := s.stack[len(s.stack)-1]
			s.stack = s.stack[:len(s.stack)-1]
			s.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		s.sccs = append(s.sccs, scc)
	}
}
