package jps

import "naturalist.ai/internal/sim/grid"

// record is the per-search state of one touched node. It never outlives the
// search that created it.
type record struct {
	node    grid.Node
	g       int
	f       int
	back    grid.Pos
	hasBack bool
	closed  bool
	index   int // position in the frontier, -1 when not queued
}

// frontier implements heap.Interface ordered by the stored f. Ties prefer the
// deeper record, then row-major position, so searches are deterministic.
type frontier []*record

func (h frontier) Len() int { return len(h) }

func (h frontier) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.g != b.g {
		return a.g > b.g
	}
	pa, pb := a.node.Pos(), b.node.Pos()
	if pa.Y != pb.Y {
		return pa.Y < pb.Y
	}
	return pa.X < pb.X
}

func (h frontier) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *frontier) Push(x any) {
	r := x.(*record)
	r.index = len(*h)
	*h = append(*h, r)
}

func (h *frontier) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}
