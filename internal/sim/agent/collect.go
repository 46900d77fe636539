package agent

import (
	"fmt"
	"sort"

	"naturalist.ai/internal/protocol"
	"naturalist.ai/internal/sim/grid"
)

// Collector is the optional pick-up layer of a host.
type Collector interface {
	Collect(name string) error
	DropAll() []string
}

type routeEntry struct {
	node grid.Node
	key  int
}

// CollectionRoute orders nodes farthest first by dist from ship. Each key is
// computed once; unreachable nodes (dist < 0) go last. Ties keep row-major
// order.
func CollectionRoute(ship grid.Node, nodes []grid.Node, dist func(a, b grid.Node) int) []grid.Node {
	entries := make([]routeEntry, 0, len(nodes))
	for _, nd := range nodes {
		entries = append(entries, routeEntry{node: nd, key: dist(ship, nd)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.key != b.key {
			return a.key > b.key
		}
		pa, pb := a.node.Pos(), b.node.Pos()
		if pa.Y != pb.Y {
			return pa.Y < pb.Y
		}
		return pa.X < pb.X
	})
	out := make([]grid.Node, len(entries))
	for i, e := range entries {
		out[i] = e.node
	}
	return out
}

// PathDistance is the jump point search cost between two discovered nodes,
// or -1 when they are not connected.
func (n *Naturalist) PathDistance(a, b grid.Node) int {
	if a.Pos() == b.Pos() {
		return 0
	}
	res := n.finder.Search(a, b)
	if len(res.Path) == 0 {
		return -1
	}
	return res.Cost
}

// Route is CollectionRoute over the item nodes found while exploring.
func (n *Naturalist) Route() []grid.Node {
	return CollectionRoute(n.ship, n.items, n.PathDistance)
}

// Collect visits each node on route, picks up everything there and brings it
// back to the ship. With capacity > 0 the bag is emptied at the ship whenever
// it is full.
func (n *Naturalist) Collect(route []grid.Node, c Collector, capacity int) ([]string, error) {
	var delivered []string
	held := 0
	unload := func() error {
		if err := n.TravelTo(n.ship); err != nil {
			return fmt.Errorf("return to ship: %w", err)
		}
		dropped := c.DropAll()
		held = 0
		if len(dropped) > 0 {
			delivered = append(delivered, dropped...)
			n.emit(protocol.Event{Kind: protocol.KindDeliver, Pos: posOf(n.ship.Pos()), Items: dropped})
		}
		return nil
	}

	for _, node := range route {
		if err := n.TravelTo(node); err != nil {
			return delivered, err
		}
		for _, name := range n.env.ItemsHere() {
			if capacity > 0 && held >= capacity {
				if err := unload(); err != nil {
					return delivered, err
				}
				if err := n.TravelTo(node); err != nil {
					return delivered, err
				}
			}
			if err := c.Collect(name); err != nil {
				return delivered, fmt.Errorf("collect %s: %w", name, err)
			}
			held++
			n.emit(protocol.Event{Kind: protocol.KindCollect, Pos: posOf(node.Pos()), Items: []string{name}})
		}
	}
	if err := unload(); err != nil {
		return delivered, err
	}
	return delivered, nil
}
