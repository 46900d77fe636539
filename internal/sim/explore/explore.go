// Package explore maps an unknown environment by walking it depth first.
package explore

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"naturalist.ai/internal/sim/grid"
)

// Env is the part of the host the walker observes.
type Env interface {
	Location() grid.Node
	// Neighbors lists the legal exits of n. Only meaningful once n was visited.
	Neighbors(n grid.Node) []grid.Node
	ItemsHere() []string
}

// Traveler moves the agent to any discovered node.
type Traveler interface {
	TravelTo(n grid.Node) error
}

type Result struct {
	Map *grid.Map
	// ItemNodes are the visited nodes that held items, in visit order.
	ItemNodes []grid.Node
	// Visited lists every closed node once, in visit order.
	Visited []grid.Node
}

type Walker struct {
	env    Env
	grid   *grid.Map
	travel Traveler

	// OnVisit, when set, is called after each node is closed.
	OnVisit func(n grid.Node, items []string)
}

func NewWalker(env Env, m *grid.Map, t Traveler) *Walker {
	return &Walker{env: env, grid: m, travel: t}
}

// Explore visits every node reachable from the agent's location. A node is
// pushed at most once, so each one is travelled to and closed exactly once.
func (w *Walker) Explore() (Result, error) {
	res := Result{Map: w.grid}

	start := w.env.Location()
	w.grid.Add(start)
	open := []grid.Node{start}
	pending := mapset.New[grid.Pos]()
	pending.Put(start.Pos())
	closed := mapset.New[grid.Pos]()

	for len(open) > 0 {
		next := open[len(open)-1]
		open = open[:len(open)-1]
		pending.Remove(next.Pos())
		if closed.Has(next.Pos()) {
			continue
		}

		if err := w.travel.TravelTo(next); err != nil {
			return res, fmt.Errorf("explore %v: %w", next.Pos(), err)
		}
		closed.Put(next.Pos())
		res.Visited = append(res.Visited, next)

		items := w.env.ItemsHere()
		if len(items) > 0 {
			res.ItemNodes = append(res.ItemNodes, next)
		}
		if w.OnVisit != nil {
			w.OnVisit(next, items)
		}

		for _, n := range w.env.Neighbors(next) {
			p := n.Pos()
			if closed.Has(p) || pending.Has(p) {
				continue
			}
			if known, ok := w.grid.Lookup(p); ok {
				n = known
			} else {
				w.grid.Insert(p, n)
			}
			open = append(open, n)
			pending.Put(p)
		}
	}
	return res, nil
}
