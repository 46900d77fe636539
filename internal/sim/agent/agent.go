// Package agent is the naturalist: it explores an unknown island through the
// host's move and look primitives, then travels between discovered tiles.
package agent

import (
	"io"
	"log"

	"naturalist.ai/internal/protocol"
	"naturalist.ai/internal/sim/explore"
	"naturalist.ai/internal/sim/grid"
	"naturalist.ai/internal/sim/jps"
	"naturalist.ai/internal/sim/travel"
)

// Env is what the host provides. MoveTo must wrap travel.ErrIllegalMove when
// the move is not a single legal step.
type Env interface {
	Location() grid.Node
	Neighbors(n grid.Node) []grid.Node
	MoveTo(n grid.Node) error
	ItemsHere() []string
}

type Options struct {
	RunID     string
	Heuristic jps.Heuristic // nil means jps.Manhattan
	Sink      Sink
	Logger    *log.Logger
}

type Naturalist struct {
	env    Env
	grid   *grid.Map
	finder *jps.Finder
	exec   *travel.Executor
	sink   Sink
	logger *log.Logger
	runID  string

	seq       uint64
	moves     int
	ship      grid.Node
	items     []grid.Node
	visited   []grid.Node
	sightings []Sighting
}

// Sighting is what was on a node when it was first visited.
type Sighting struct {
	Pos   grid.Pos
	Items []string
}

func New(env Env, opts Options) *Naturalist {
	n := &Naturalist{
		env:    env,
		grid:   grid.NewMap(),
		sink:   opts.Sink,
		logger: opts.Logger,
		runID:  opts.RunID,
		ship:   env.Location(),
	}
	if n.sink == nil {
		n.sink = discard{}
	}
	if n.logger == nil {
		n.logger = log.New(io.Discard, "", 0)
	}
	n.finder = jps.NewFinder(n.grid, opts.Heuristic)
	n.exec = travel.NewExecutor(moveTap{n}, n.grid, n.finder)
	n.exec.OnPath = n.onPath
	return n
}

func (n *Naturalist) Map() *grid.Map { return n.grid }

// Ship is the location the naturalist started from.
func (n *Naturalist) Ship() grid.Node { return n.ship }

// Moves counts successful single moves made through the host.
func (n *Naturalist) Moves() int { return n.moves }

func (n *Naturalist) Visited() []grid.Node { return n.visited }

func (n *Naturalist) Sightings() []Sighting { return n.sightings }

func (n *Naturalist) TravelStats() travel.Stats { return n.exec.Stats() }

// Explore walks every reachable tile once and returns the discovered map and
// the tiles that held items, in discovery order.
func (n *Naturalist) Explore() (*grid.Map, []grid.Node, error) {
	n.emit(protocol.Event{Kind: protocol.KindStart, Pos: posOf(n.env.Location().Pos())})
	w := explore.NewWalker(n.env, n.grid, n.exec)
	w.OnVisit = func(node grid.Node, items []string) {
		if len(items) > 0 {
			n.sightings = append(n.sightings, Sighting{Pos: node.Pos(), Items: append([]string(nil), items...)})
		}
		n.emit(protocol.Event{Kind: protocol.KindVisit, Pos: posOf(node.Pos()), Items: items})
	}
	res, err := w.Explore()
	n.visited = append(n.visited, res.Visited...)
	n.items = append(n.items, res.ItemNodes...)
	if err != nil {
		n.fail(err)
		return n.grid, n.items, err
	}
	n.logger.Printf("explored nodes=%d items=%d moves=%d", n.grid.Len(), len(n.items), n.moves)
	return n.grid, n.items, nil
}

// TravelTo moves to a discovered node. See travel.Executor.TravelTo.
func (n *Naturalist) TravelTo(target grid.Node) error {
	if err := n.exec.TravelTo(target); err != nil {
		n.fail(err)
		return err
	}
	return nil
}

// Done emits the closing event for the run.
func (n *Naturalist) Done(extra ...string) {
	n.emit(protocol.Event{
		Kind:  protocol.KindDone,
		Pos:   posOf(n.env.Location().Pos()),
		Moves: n.moves,
		Nodes: n.grid.Len(),
		Items: extra,
	})
}

func (n *Naturalist) fail(err error) {
	n.logger.Printf("error: %v", err)
	n.emit(protocol.Event{Kind: protocol.KindError, Code: protocol.CodeOf(err), Message: err.Error()})
}

func (n *Naturalist) onPath(from, to grid.Node, path []grid.Node) {
	wps := make([][]int, 0, len(path))
	for _, wp := range path {
		wps = append(wps, posOf(wp.Pos()))
	}
	n.emit(protocol.Event{Kind: protocol.KindPath, Pos: posOf(from.Pos()), Target: posOf(to.Pos()), Path: wps})
}

func (n *Naturalist) emit(ev protocol.Event) {
	n.seq++
	ev.Type = protocol.TypeEvent
	ev.ProtocolVersion = protocol.Version
	ev.RunID = n.runID
	ev.Seq = n.seq
	n.sink.Emit(ev)
}

// moveTap counts and reports every move the executor makes.
type moveTap struct{ n *Naturalist }

func (m moveTap) Location() grid.Node { return m.n.env.Location() }

func (m moveTap) MoveTo(node grid.Node) error {
	if err := m.n.env.MoveTo(node); err != nil {
		return err
	}
	m.n.moves++
	m.n.emit(protocol.Event{Kind: protocol.KindMove, Pos: posOf(node.Pos()), Moves: m.n.moves})
	return nil
}

func posOf(p grid.Pos) []int { return []int{p.X, p.Y} }
