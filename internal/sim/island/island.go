// Package island is a small host environment for the naturalist: a
// rectangle of tiles with trees that block movement, animals to find and a
// ship the agent starts on.
package island

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"naturalist.ai/internal/sim/grid"
	"naturalist.ai/internal/sim/travel"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNoSuchAnimal     = errors.New("no such animal here")
	ErrNotAtShip        = errors.New("not at ship")
)

// Tile is the island's grid.Node.
type Tile struct {
	pos     grid.Pos
	tree    bool
	animals []string
}

func (t *Tile) Pos() grid.Pos { return t.pos }

func (t *Tile) Tree() bool { return t.tree }

func (t *Tile) Animals() []string { return append([]string(nil), t.animals...) }

type Island struct {
	width, height int
	tiles         []*Tile // row-major
	ship          *Tile
	at            *Tile
	capacity      int

	moves     int
	bag       []string
	delivered []string
}

func newIsland(w, h int) *Island {
	is := &Island{width: w, height: h, tiles: make([]*Tile, 0, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			is.tiles = append(is.tiles, &Tile{pos: grid.Pos{X: x, Y: y}})
		}
	}
	return is
}

func (is *Island) Width() int  { return is.width }
func (is *Island) Height() int { return is.height }
func (is *Island) Ship() *Tile { return is.ship }
func (is *Island) Moves() int  { return is.moves }

// Capacity is the bag size; zero means unlimited.
func (is *Island) Capacity() int { return is.capacity }

func (is *Island) SetCapacity(n int) { is.capacity = n }

// Tile returns the tile at p, trees included.
func (is *Island) Tile(p grid.Pos) (*Tile, bool) {
	if p.X < 0 || p.Y < 0 || p.X >= is.width || p.Y >= is.height {
		return nil, false
	}
	return is.tiles[p.Y*is.width+p.X], true
}

func (is *Island) passable(p grid.Pos) bool {
	t, ok := is.Tile(p)
	return ok && !t.tree
}

// Location implements agent.Env.
func (is *Island) Location() grid.Node { return is.at }

// Neighbors returns the exits of n clockwise from north. A diagonal exit
// needs both corner tiles to be passable.
func (is *Island) Neighbors(n grid.Node) []grid.Node {
	p := n.Pos()
	if !is.passable(p) {
		return nil
	}
	out := make([]grid.Node, 0, 8)
	for _, d := range ring {
		q := p.Add(d)
		if is.exit(p, q) {
			t, _ := is.Tile(q)
			out = append(out, t)
		}
	}
	return out
}

var ring = [8]grid.Pos{
	{X: 0, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
	{X: 0, Y: 1}, {X: -1, Y: 1}, {X: -1, Y: 0}, {X: -1, Y: -1},
}

func (is *Island) exit(from, to grid.Pos) bool {
	if !grid.Adjacent(from, to) || !is.passable(to) {
		return false
	}
	if from.X != to.X && from.Y != to.Y {
		return is.passable(grid.Pos{X: to.X, Y: from.Y}) && is.passable(grid.Pos{X: from.X, Y: to.Y})
	}
	return true
}

// MoveTo moves the agent to an exit of its current tile.
func (is *Island) MoveTo(n grid.Node) error {
	if n == nil {
		return fmt.Errorf("move to <nil>: %w", travel.ErrIllegalMove)
	}
	from, to := is.at.pos, n.Pos()
	if !is.exit(from, to) {
		return fmt.Errorf("move %v -> %v: %w", from, to, travel.ErrIllegalMove)
	}
	is.at, _ = is.Tile(to)
	is.moves++
	return nil
}

// ItemsHere lists the animals on the current tile.
func (is *Island) ItemsHere() []string { return is.at.Animals() }

// Collect moves one animal from the current tile into the bag.
func (is *Island) Collect(name string) error {
	i := -1
	for j, a := range is.at.animals {
		if a == name {
			i = j
			break
		}
	}
	if i < 0 {
		return fmt.Errorf("collect %q at %v: %w", name, is.at.pos, ErrNoSuchAnimal)
	}
	if is.capacity > 0 && len(is.bag) >= is.capacity {
		return fmt.Errorf("collect %q: %w", name, ErrCapacityExceeded)
	}
	is.at.animals = append(is.at.animals[:i], is.at.animals[i+1:]...)
	is.bag = append(is.bag, name)
	return nil
}

func (is *Island) Bag() []string { return append([]string(nil), is.bag...) }

// DropAll empties the bag. Animals dropped on the ship count as delivered;
// anywhere else they go back on the tile.
func (is *Island) DropAll() []string {
	dropped := is.bag
	is.bag = nil
	if is.at == is.ship {
		is.delivered = append(is.delivered, dropped...)
	} else {
		is.at.animals = append(is.at.animals, dropped...)
	}
	return dropped
}

func (is *Island) Delivered() []string { return append([]string(nil), is.delivered...) }

// Remaining counts animals still on the island, excluding the bag.
func (is *Island) Remaining() int {
	n := 0
	for _, t := range is.tiles {
		n += len(t.animals)
	}
	return n
}

// Passable counts tiles without trees.
func (is *Island) Passable() int {
	n := 0
	for _, t := range is.tiles {
		if !t.tree {
			n++
		}
	}
	return n
}

// Reachable counts passable tiles connected to the ship by exits.
func (is *Island) Reachable() int {
	seen := map[grid.Pos]bool{is.ship.pos: true}
	queue := []grid.Pos{is.ship.pos}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range ring {
			q := p.Add(d)
			if seen[q] || !is.exit(p, q) {
				continue
			}
			seen[q] = true
			queue = append(queue, q)
		}
	}
	return len(seen)
}

// String renders the island as rows of '.', '#', 'S' and the first letter
// of the first animal on a tile. The agent is '@'.
func (is *Island) String() string {
	var b strings.Builder
	for y := 0; y < is.height; y++ {
		for x := 0; x < is.width; x++ {
			t := is.tiles[y*is.width+x]
			switch {
			case t == is.at:
				b.WriteByte('@')
			case t == is.ship:
				b.WriteByte('S')
			case t.tree:
				b.WriteByte('#')
			case len(t.animals) > 0:
				b.WriteByte(t.animals[0][0])
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// AnimalPositions maps every animal still on the island to its tile, sorted
// by name.
func (is *Island) AnimalPositions() []Placement {
	var out []Placement
	for _, t := range is.tiles {
		for _, a := range t.animals {
			out = append(out, Placement{Name: a, Pos: t.pos})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type Placement struct {
	Name string
	Pos  grid.Pos
}
