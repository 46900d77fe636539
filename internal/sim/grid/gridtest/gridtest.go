// Package gridtest builds fully discovered maps from ASCII art for tests.
package gridtest

import "naturalist.ai/internal/sim/grid"

// Node is a bare grid.Node.
type Node struct{ P grid.Pos }

func (n *Node) Pos() grid.Pos { return n.P }

// Rows parses rows of text into a map. '#' is a hole, every other byte is a
// known cell. Letters are also returned by name so tests can refer to them.
func Rows(rows ...string) (*grid.Map, map[byte]grid.Node) {
	m := grid.NewMap()
	named := make(map[byte]grid.Node)
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			c := row[x]
			if c == '#' {
				continue
			}
			n := &Node{P: grid.Pos{X: x, Y: y}}
			m.Add(n)
			if c != '.' {
				named[c] = n
			}
		}
	}
	return m, named
}

// Open returns a w*h map with no holes.
func Open(w, h int) *grid.Map {
	m := grid.NewMap()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Add(&Node{P: grid.Pos{X: x, Y: y}})
		}
	}
	return m
}

// At returns the node at (x,y) or panics.
func At(m *grid.Map, x, y int) grid.Node {
	n, ok := m.Lookup(grid.Pos{X: x, Y: y})
	if !ok {
		panic("gridtest: no node at " + grid.Pos{X: x, Y: y}.String())
	}
	return n
}
