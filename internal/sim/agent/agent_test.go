package agent

import (
	"errors"
	"strings"
	"testing"

	"naturalist.ai/internal/protocol"
	"naturalist.ai/internal/sim/grid"
	"naturalist.ai/internal/sim/island"
	"naturalist.ai/internal/sim/jps"
	"naturalist.ai/internal/sim/travel"
)

type recorder struct{ events []protocol.Event }

func (r *recorder) Emit(ev protocol.Event) { r.events = append(r.events, ev) }

func (r *recorder) count(kind string) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func parse(t *testing.T, rows ...string) *island.Island {
	t.Helper()
	is, err := island.Parse(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return is
}

func TestExploreParsedIsland(t *testing.T) {
	is := parse(t,
		"S..#....",
		".#.#.##.",
		".#...#k.",
		"...#.#..",
		"#.#b...#",
		"..#..#..",
	)
	rec := &recorder{}
	nat := New(is, Options{RunID: "r1", Sink: rec})
	m, items, err := nat.Explore()
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if m.Len() != is.Reachable() {
		t.Fatalf("map has %d nodes, island has %d reachable", m.Len(), is.Reachable())
	}
	if len(items) != 2 {
		t.Fatalf("items=%v", items)
	}
	if len(nat.Sightings()) != 2 || nat.Sightings()[0].Pos != items[0].Pos() {
		t.Fatalf("sightings=%+v", nat.Sightings())
	}
	if len(nat.Visited()) != m.Len() {
		t.Fatalf("visited %d, mapped %d", len(nat.Visited()), m.Len())
	}
	if nat.Moves() != is.Moves() {
		t.Fatalf("moves=%d host counted %d", nat.Moves(), is.Moves())
	}
	for _, p := range m.Positions() {
		n, _ := m.Lookup(p)
		if _, ok := n.(*island.Tile); !ok {
			t.Fatalf("node at %v is %T", p, n)
		}
		if n.(*island.Tile).Tree() {
			t.Fatalf("tree at %v was mapped", p)
		}
	}

	if rec.count(protocol.KindStart) != 1 {
		t.Fatalf("start events=%d", rec.count(protocol.KindStart))
	}
	if rec.count(protocol.KindVisit) != m.Len() {
		t.Fatalf("visit events=%d", rec.count(protocol.KindVisit))
	}
	if rec.count(protocol.KindMove) != is.Moves() {
		t.Fatalf("move events=%d moves=%d", rec.count(protocol.KindMove), is.Moves())
	}
	for i, ev := range rec.events {
		if ev.Seq != uint64(i+1) || ev.RunID != "r1" || ev.Type != protocol.TypeEvent {
			t.Fatalf("event %d: %+v", i, ev)
		}
	}
}

func TestExploreGeneratedIslands(t *testing.T) {
	for seed := int64(1); seed <= 12; seed++ {
		is, err := island.Generate(island.Config{Width: 14, Height: 10, Trees: 35, Animals: 8, Seed: seed})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		nat := New(is, Options{})
		m, items, err := nat.Explore()
		if err != nil {
			t.Fatalf("seed %d: Explore: %v", seed, err)
		}
		if m.Len() != is.Reachable() {
			t.Fatalf("seed %d: mapped %d reachable %d", seed, m.Len(), is.Reachable())
		}
		// Every discovered node can be reached again after exploration.
		for _, n := range items {
			if err := nat.TravelTo(n); err != nil {
				t.Fatalf("seed %d: TravelTo %v: %v", seed, n.Pos(), err)
			}
			if is.Location().Pos() != n.Pos() {
				t.Fatalf("seed %d: at %v want %v", seed, is.Location().Pos(), n.Pos())
			}
		}
		if err := nat.TravelTo(nat.Ship()); err != nil {
			t.Fatalf("seed %d: back to ship: %v", seed, err)
		}
	}
}

func TestExploreWithChebyshev(t *testing.T) {
	is, _ := island.Generate(island.Config{Width: 10, Height: 10, Trees: 20, Animals: 4, Seed: 9})
	nat := New(is, Options{Heuristic: jps.Chebyshev})
	m, _, err := nat.Explore()
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if m.Len() != is.Reachable() {
		t.Fatalf("mapped %d reachable %d", m.Len(), is.Reachable())
	}
}

func TestTravelToUnknownTarget(t *testing.T) {
	is := parse(t, "S..", "...")
	other := parse(t, "S..", "...")
	rec := &recorder{}
	nat := New(is, Options{Sink: rec})
	if _, _, err := nat.Explore(); err != nil {
		t.Fatalf("Explore: %v", err)
	}
	far, _ := other.Tile(grid.Pos{X: 2, Y: 1})
	err := nat.TravelTo(far)
	if !errors.Is(err, travel.ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
	last := rec.events[len(rec.events)-1]
	if last.Kind != protocol.KindError || last.Code != protocol.ErrUnknownTarget {
		t.Fatalf("last event=%+v", last)
	}
}

func TestTravelEmitsPath(t *testing.T) {
	is := parse(t,
		"S.#..",
		"..#..",
		".....",
	)
	rec := &recorder{}
	nat := New(is, Options{Sink: rec})
	if _, _, err := nat.Explore(); err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if err := nat.TravelTo(nat.Ship()); err != nil {
		t.Fatalf("TravelTo ship: %v", err)
	}
	before := rec.count(protocol.KindPath)
	far, _ := is.Tile(grid.Pos{X: 4, Y: 0})
	if err := nat.TravelTo(far); err != nil {
		t.Fatalf("TravelTo: %v", err)
	}
	if rec.count(protocol.KindPath) != before+1 {
		t.Fatalf("expected one PATH event")
	}
	if is.Location().Pos() != far.Pos() {
		t.Fatalf("at %v", is.Location().Pos())
	}
}

func TestCollectionRouteFarthestFirst(t *testing.T) {
	is := parse(t,
		"Sa...",
		".....",
		"..b.c",
	)
	nat := New(is, Options{})
	if _, _, err := nat.Explore(); err != nil {
		t.Fatalf("Explore: %v", err)
	}
	route := nat.Route()
	var got []grid.Pos
	for _, n := range route {
		got = append(got, n.Pos())
	}
	want := []grid.Pos{{X: 4, Y: 2}, {X: 2, Y: 2}, {X: 1, Y: 0}}
	if len(got) != len(want) {
		t.Fatalf("route=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("route=%v want %v", got, want)
		}
	}
}

func TestCollectionRouteKeysComputedOnce(t *testing.T) {
	is := parse(t, "Sabc")
	nat := New(is, Options{})
	_, items, _ := nat.Explore()
	calls := 0
	dist := func(a, b grid.Node) int {
		calls++
		if b.Pos().X == 2 {
			return -1
		}
		return grid.Chebyshev(a.Pos(), b.Pos())
	}
	route := CollectionRoute(nat.Ship(), items, dist)
	if calls != len(items) {
		t.Fatalf("dist called %d times for %d items", calls, len(items))
	}
	if route[0].Pos().X != 3 || route[1].Pos().X != 1 || route[2].Pos().X != 2 {
		t.Fatalf("route=%v", route)
	}
}

func TestCollectDeliversEverything(t *testing.T) {
	is, err := island.Generate(island.Config{Width: 12, Height: 12, Trees: 30, Animals: 9, Seed: 5, Capacity: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rec := &recorder{}
	nat := New(is, Options{Sink: rec})
	if _, _, err := nat.Explore(); err != nil {
		t.Fatalf("Explore: %v", err)
	}
	onMap := 0
	for _, p := range is.AnimalPositions() {
		if nat.Map().Has(p.Pos) {
			onMap++
		}
	}
	delivered, err := nat.Collect(nat.Route(), is, is.Capacity())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(delivered) != onMap || len(is.Delivered()) != onMap {
		t.Fatalf("delivered %d (host %d), reachable animals %d", len(delivered), len(is.Delivered()), onMap)
	}
	if is.Location() != grid.Node(is.Ship()) {
		t.Fatalf("naturalist ended at %v", is.Location().Pos())
	}
	if rec.count(protocol.KindCollect) != onMap {
		t.Fatalf("collect events=%d", rec.count(protocol.KindCollect))
	}
	nat.Done()
	if last := rec.events[len(rec.events)-1]; last.Kind != protocol.KindDone || last.Moves != is.Moves() {
		t.Fatalf("done event=%+v", last)
	}
}

func TestSinksFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	got := 0
	s := Sinks{a, nil, b, SinkFunc(func(protocol.Event) { got++ })}
	s.Emit(protocol.Event{Kind: protocol.KindMove})
	if len(a.events) != 1 || len(b.events) != 1 || got != 1 {
		t.Fatalf("fan-out a=%d b=%d f=%d", len(a.events), len(b.events), got)
	}
}
