// Package jps finds shortest paths over a discovered grid map with jump point
// search: A* that only queues the cells where an optimal path may turn.
//
// Every step, straight or diagonal, costs one. Paths are returned as jump
// points; consecutive points lie on a common row, column or diagonal.
package jps

import (
	"container/heap"
	"fmt"
	"strings"

	"naturalist.ai/internal/sim/grid"
)

// Heuristic estimates the remaining cost between two positions.
type Heuristic func(a, b grid.Pos) int

var (
	// Manhattan overestimates when diagonal shortcuts exist, so paths through
	// cluttered maps can come out slightly longer than optimal.
	Manhattan Heuristic = grid.Manhattan
	// Chebyshev is exact on open ground and never overestimates.
	Chebyshev Heuristic = grid.Chebyshev
)

// HeuristicByName maps a config value to a Heuristic. Empty means Manhattan.
func HeuristicByName(name string) (Heuristic, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "manhattan":
		return Manhattan, nil
	case "chebyshev":
		return Chebyshev, nil
	default:
		return nil, fmt.Errorf("unknown heuristic %q", name)
	}
}

type Finder struct {
	graph Graph
	h     Heuristic
}

// NewFinder returns a Finder over g. A nil h selects Manhattan.
func NewFinder(g Graph, h Heuristic) *Finder {
	if h == nil {
		h = Manhattan
	}
	return &Finder{graph: g, h: h}
}

// Result describes one search.
type Result struct {
	// Path holds the jump points from start (exclusive) to goal (inclusive).
	Path []grid.Node
	// Cost is the number of unit steps along Path.
	Cost int
	// Expanded counts nodes taken off the frontier, goal excluded.
	Expanded int
	// JumpPoints counts distinct nodes ever queued, start excluded.
	JumpPoints int
}

// FindPath returns the jump points from start to goal, excluding start. The
// result is empty when start == goal or the goal cannot be reached through
// known cells. Both nodes must already be in the map.
func (f *Finder) FindPath(start, goal grid.Node) []grid.Node {
	return f.Search(start, goal).Path
}

// Search is FindPath with bookkeeping.
func (f *Finder) Search(start, goal grid.Node) Result {
	sp := f.mustKnow("start", start)
	gp := f.mustKnow("goal", goal)
	if sp == gp {
		return Result{}
	}

	s := &search{
		Finder: f,
		goal:   gp,
		recs:   make(map[grid.Pos]*record, 64),
	}
	first := &record{node: start, f: f.h(sp, gp), index: -1}
	s.recs[sp] = first
	heap.Push(&s.open, first)

	for s.open.Len() > 0 {
		cur := heap.Pop(&s.open).(*record)
		cur.closed = true
		if cur.node.Pos() == gp {
			s.res.Path = s.backtrace(cur)
			s.res.Cost = cur.g
			return s.res
		}
		s.res.Expanded++
		s.expand(cur)
	}
	return s.res
}

func (f *Finder) mustKnow(role string, n grid.Node) grid.Pos {
	if n == nil {
		panic("jps: nil " + role + " node")
	}
	p := n.Pos()
	if !has(f.graph, p) {
		panic(fmt.Sprintf("jps: %s %v is not in the map", role, p))
	}
	return p
}

type search struct {
	*Finder
	goal grid.Pos
	recs map[grid.Pos]*record
	open frontier
	res  Result
}

func (s *search) expand(cur *record) {
	p := cur.node.Pos()
	for _, d := range s.successors(cur) {
		jp, ok := s.jump(p, d)
		if !ok {
			continue
		}
		jpos := jp.Pos()
		r, seen := s.recs[jpos]
		if seen && r.closed {
			continue
		}
		g := cur.g + grid.Chebyshev(p, jpos)
		if seen && g >= r.g {
			continue
		}
		if !seen {
			r = &record{node: jp, index: -1}
			s.recs[jpos] = r
			s.res.JumpPoints++
		}
		r.g = g
		r.f = g + s.h(jpos, s.goal)
		r.back = p
		r.hasBack = true
		if r.index >= 0 {
			heap.Fix(&s.open, r.index)
		} else {
			heap.Push(&s.open, r)
		}
	}
}

func (s *search) successors(cur *record) []Direction {
	p := cur.node.Pos()
	if !cur.hasBack {
		return Neighbors(s.graph, p)
	}
	t, _ := DirectionOf(p.Sub(cur.back))
	return Prune(s.graph, p, t)
}

func (s *search) jump(from grid.Pos, d Direction) (grid.Node, bool) {
	if d.Diagonal() {
		return s.jumpDiagonal(from, d)
	}
	return s.jumpStraight(from, d)
}

// jumpStraight scans from 'from' along d and stops at the goal or at the
// first cell with a forced neighbour. Leaving the map ends the scan empty.
func (s *search) jumpStraight(from grid.Pos, d Direction) (grid.Node, bool) {
	v := d.Vec()
	left, right := d.Turn(-2).Vec(), d.Turn(2).Vec()
	p := from
	for {
		p = p.Add(v)
		n, ok := s.graph.Lookup(p)
		if !ok {
			return nil, false
		}
		if p == s.goal {
			return n, true
		}
		// A forced diagonal uses the cell ahead as its corner.
		if !has(s.graph, p.Add(v)) {
			continue
		}
		if (!has(s.graph, p.Add(left)) && has(s.graph, p.Add(left).Add(v))) ||
			(!has(s.graph, p.Add(right)) && has(s.graph, p.Add(right).Add(v))) {
			return n, true
		}
	}
}

// jumpDiagonal scans along diagonal d. A cell is a jump point when it is the
// goal, has a forced neighbour, or either straight component scan from it
// succeeds. The scan continues only through cells with an open corner.
func (s *search) jumpDiagonal(from grid.Pos, d Direction) (grid.Node, bool) {
	v := d.Vec()
	hx, dh := grid.Pos{X: v.X}, East
	if v.X < 0 {
		dh = West
	}
	vy, dv := grid.Pos{Y: v.Y}, South
	if v.Y < 0 {
		dv = North
	}
	p := from
	for {
		p = p.Add(v)
		n, ok := s.graph.Lookup(p)
		if !ok {
			return nil, false
		}
		if p == s.goal {
			return n, true
		}
		if (!has(s.graph, p.Sub(hx)) && has(s.graph, p.Sub(hx).Add(vy)) && has(s.graph, p.Add(vy))) ||
			(!has(s.graph, p.Sub(vy)) && has(s.graph, p.Sub(vy).Add(hx)) && has(s.graph, p.Add(hx))) {
			return n, true
		}
		if _, ok := s.jumpStraight(p, dh); ok {
			return n, true
		}
		if _, ok := s.jumpStraight(p, dv); ok {
			return n, true
		}
		if !has(s.graph, p.Add(hx)) && !has(s.graph, p.Add(vy)) {
			return nil, false
		}
	}
}

func (s *search) backtrace(goal *record) []grid.Node {
	var rev []grid.Node
	for r := goal; r.hasBack; r = s.recs[r.back] {
		rev = append(rev, r.node)
	}
	out := make([]grid.Node, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}
