package jps

import "naturalist.ai/internal/sim/grid"

// Graph is the read side of the discovered map.
type Graph interface {
	Lookup(p grid.Pos) (grid.Node, bool)
}

func has(g Graph, p grid.Pos) bool {
	_, ok := g.Lookup(p)
	return ok
}

// canStep reports whether the single step from p in direction d stays inside
// the known map. A diagonal step also needs one of its two corner cells.
func canStep(g Graph, p grid.Pos, d Direction) bool {
	if !has(g, p.Add(d.Vec())) {
		return false
	}
	if !d.Diagonal() {
		return true
	}
	return has(g, p.Add(d.Turn(-1).Vec())) || has(g, p.Add(d.Turn(1).Vec()))
}

// Neighbors returns every direction a step can be taken from p, in index order.
func Neighbors(g Graph, p grid.Pos) []Direction {
	out := make([]Direction, 0, 8)
	for d := North; d <= NorthWest; d++ {
		if canStep(g, p, d) {
			out = append(out, d)
		}
	}
	return out
}

// Prune keeps the neighbours of p that are not reached at least as cheaply
// through the parent that arrived travelling in direction t, plus forced ones.
func Prune(g Graph, p grid.Pos, t Direction) []Direction {
	out := make([]Direction, 0, 5)
	keep := func(d Direction) {
		if canStep(g, p, d) {
			out = append(out, d)
		}
	}
	if !t.Diagonal() {
		if !has(g, p.Add(t.Vec())) {
			return out
		}
		keep(t)
		for _, side := range [2]int{-2, 2} {
			if !has(g, p.Add(t.Turn(side).Vec())) {
				keep(t.Turn(side / 2))
			}
		}
		return out
	}

	keep(t.Turn(-1))
	keep(t)
	keep(t.Turn(1))
	// A missing back-side cell opens the diagonal beyond the matching component.
	if !has(g, p.Add(t.Turn(-3).Vec())) && has(g, p.Add(t.Turn(-1).Vec())) {
		keep(t.Turn(-2))
	}
	if !has(g, p.Add(t.Turn(3).Vec())) && has(g, p.Add(t.Turn(1).Vec())) {
		keep(t.Turn(2))
	}
	return out
}
