// Package grid holds the sparse map an agent builds while it explores.
//
// Nodes are owned by the environment; the map only references them. Entries
// are never removed and a position is never rebound to a different node.
package grid

import "sort"

// Node is a location handle supplied by the environment.
type Node interface {
	Pos() Pos
}

// Map is the discovered part of the environment, keyed by position.
type Map struct {
	nodes map[Pos]Node
}

func NewMap() *Map {
	return &Map{nodes: make(map[Pos]Node, 256)}
}

func (m *Map) Lookup(p Pos) (Node, bool) {
	n, ok := m.nodes[p]
	return n, ok
}

func (m *Map) Has(p Pos) bool {
	_, ok := m.nodes[p]
	return ok
}

// Insert records n at p. It returns false and leaves the map untouched when p
// is already known.
func (m *Map) Insert(p Pos, n Node) bool {
	if _, ok := m.nodes[p]; ok {
		return false
	}
	m.nodes[p] = n
	return true
}

// Add is Insert keyed by the node's own position.
func (m *Map) Add(n Node) bool { return m.Insert(n.Pos(), n) }

// Contains reports whether n itself (not just its position) is in the map.
func (m *Map) Contains(n Node) bool {
	if n == nil {
		return false
	}
	got, ok := m.nodes[n.Pos()]
	return ok && got == n
}

func (m *Map) Len() int { return len(m.nodes) }

// Positions returns all known positions in row-major order.
func (m *Map) Positions() []Pos {
	out := make([]Pos, 0, len(m.nodes))
	for p := range m.nodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Bounds returns the inclusive bounding box of the known positions. ok is
// false for an empty map.
func (m *Map) Bounds() (min, max Pos, ok bool) {
	for p := range m.nodes {
		if !ok {
			min, max, ok = p, p, true
			continue
		}
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
	}
	return min, max, ok
}
