// Package travel moves the agent between discovered cells, turning jump-point
// paths into the single steps the host accepts.
package travel

import (
	"errors"
	"fmt"

	"naturalist.ai/internal/sim/grid"
)

var (
	// ErrIllegalMove is what hosts wrap when a step is not a legal single move.
	ErrIllegalMove = errors.New("illegal move")
	// ErrUnknownTarget means travel was requested to a cell never discovered.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrNoPath means the discovered map does not connect the two cells.
	ErrNoPath = errors.New("no path")
)

// Mover is the host's movement primitive. MoveTo blocks until the agent has
// moved and Location reflects the new cell.
type Mover interface {
	Location() grid.Node
	MoveTo(n grid.Node) error
}

// Pathfinder returns waypoints from start (exclusive) to goal, or none.
type Pathfinder interface {
	FindPath(start, goal grid.Node) []grid.Node
}

type Stats struct {
	Trips          int
	Searches       int
	Decompositions int
}

type Executor struct {
	mover  Mover
	grid   *grid.Map
	finder Pathfinder

	// OnPath, when set, sees every path before it is walked.
	OnPath func(from, to grid.Node, path []grid.Node)

	stats Stats
}

func NewExecutor(m Mover, g *grid.Map, f Pathfinder) *Executor {
	return &Executor{mover: m, grid: g, finder: f}
}

func (e *Executor) Stats() Stats { return e.stats }

// TravelTo moves the agent to target, which must already be in the map. A
// failed hop aborts the trip; the agent stays wherever it got to.
func (e *Executor) TravelTo(target grid.Node) error {
	if !e.grid.Contains(target) {
		return fmt.Errorf("%w: %v", ErrUnknownTarget, describe(target))
	}
	e.stats.Trips++
	cur := e.mover.Location()
	if cur.Pos() == target.Pos() {
		return nil
	}
	if grid.Adjacent(cur.Pos(), target.Pos()) {
		err := e.mover.MoveTo(target)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrIllegalMove) {
			return err
		}
	}
	if !e.grid.Has(cur.Pos()) {
		return fmt.Errorf("%w: current location %v", ErrUnknownTarget, cur.Pos())
	}

	e.stats.Searches++
	path := e.finder.FindPath(cur, target)
	if len(path) == 0 {
		return fmt.Errorf("%w: %v -> %v", ErrNoPath, cur.Pos(), target.Pos())
	}
	if e.OnPath != nil {
		e.OnPath(cur, target, path)
	}
	return e.Follow(path)
}

// Follow walks waypoints in order.
func (e *Executor) Follow(path []grid.Node) error {
	for _, wp := range path {
		if err := e.Hop(wp); err != nil {
			return fmt.Errorf("hop to %v: %w", wp.Pos(), err)
		}
	}
	return nil
}

// Hop walks in unit steps toward wp. Every step lands on the next cell toward
// wp, so the remaining distance shrinks each iteration.
func (e *Executor) Hop(wp grid.Node) error {
	target := wp.Pos()
	for {
		cur := e.mover.Location().Pos()
		if cur == target {
			return nil
		}
		next := cur.Add(target.Sub(cur).Sign())
		n, ok := e.grid.Lookup(next)
		if !ok {
			return fmt.Errorf("%w: step %v", ErrUnknownTarget, next)
		}
		if err := e.Step(n); err != nil {
			return err
		}
	}
}

// Step makes one move to an adjacent cell. A rejected diagonal is replaced by
// two orthogonal moves through a known corner, horizontal corner first.
func (e *Executor) Step(n grid.Node) error {
	cur := e.mover.Location().Pos()
	err := e.mover.MoveTo(n)
	if err == nil || !errors.Is(err, ErrIllegalMove) {
		return err
	}
	d := n.Pos().Sub(cur)
	if d.X == 0 || d.Y == 0 || grid.Chebyshev(cur, n.Pos()) != 1 {
		return err
	}
	corner, ok := e.grid.Lookup(grid.Pos{X: cur.X + d.X, Y: cur.Y})
	if !ok {
		corner, ok = e.grid.Lookup(grid.Pos{X: cur.X, Y: cur.Y + d.Y})
	}
	if !ok {
		return fmt.Errorf("no known corner from %v to %v: %w", cur, n.Pos(), err)
	}
	e.stats.Decompositions++
	if err := e.mover.MoveTo(corner); err != nil {
		return err
	}
	return e.mover.MoveTo(n)
}

func describe(n grid.Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Pos().String()
}
