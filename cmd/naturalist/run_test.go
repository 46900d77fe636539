package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"naturalist.ai/internal/persistence/indexdb"
	persistlog "naturalist.ai/internal/persistence/log"
	"naturalist.ai/internal/persistence/snapshot"
	"naturalist.ai/internal/protocol"
	"naturalist.ai/internal/sim/agent"
	"naturalist.ai/internal/sim/tuning"
)

func TestRunPersistsEverything(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "isle.txt")
	src := "S..#.\n.#.#k\n..e..\n##...\n"
	if err := os.WriteFile(mapPath, []byte(src), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}

	tune := tuning.Defaults()
	tune.Island.Map = mapPath
	tune.Island.Capacity = 1
	tune.Persistence.DataDir = filepath.Join(dir, "data")

	kinds := map[string]int{}
	live := agent.SinkFunc(func(ev protocol.Event) { kinds[ev.Kind]++ })
	logger := log.New(io.Discard, "", 0)

	sum, err := run(runConfig{Tune: tune, RunID: "run-test"}, agent.Sinks{live}, logger)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Nodes != sum.Reachable || sum.Nodes != 15 {
		t.Fatalf("nodes=%d reachable=%d", sum.Nodes, sum.Reachable)
	}
	if sum.ItemNodes != 2 || sum.Animals != 2 || sum.Delivered != 2 {
		t.Fatalf("summary=%+v", sum)
	}
	if kinds[protocol.KindDone] != 1 || kinds[protocol.KindDeliver] != 2 {
		t.Fatalf("kinds=%v", kinds)
	}

	snap, err := snapshot.ReadSnapshot(sum.SnapshotPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(snap.Cells) != 15 || len(snap.Visits) != 15 || snap.ItemCount() != 2 || len(snap.Delivered) != 2 {
		t.Fatalf("snapshot cells=%d visits=%d items=%d delivered=%v", len(snap.Cells), len(snap.Visits), snap.ItemCount(), snap.Delivered)
	}
	if snap.Moves != sum.Moves {
		t.Fatalf("snapshot moves=%d summary %d", snap.Moves, sum.Moves)
	}

	onDisk := 0
	err = persistlog.ReadEvents(filepath.Join(tune.Persistence.DataDir, "runs", "run-test", "events"), func(ev protocol.Event) error {
		onDisk++
		return nil
	})
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	total := 0
	for _, n := range kinds {
		total += n
	}
	if onDisk != total || sum.Events != total {
		t.Fatalf("on disk %d, live %d, summary %d", onDisk, total, sum.Events)
	}

	idx, err := indexdb.OpenSQLite(filepath.Join(tune.Persistence.DataDir, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	runs, err := idx.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-test" || runs[0].Moves != sum.Moves || runs[0].ErrorCode != "" {
		t.Fatalf("runs=%+v", runs)
	}
	items, _ := idx.RunItems(context.Background(), "run-test")
	if len(items) != 2 {
		t.Fatalf("items=%+v", items)
	}
}

func TestRunGeneratedIslandWithoutDB(t *testing.T) {
	tune := tuning.Defaults()
	tune.Island.Width, tune.Island.Height = 16, 12
	tune.Island.Trees, tune.Island.Animals = 30, 6
	tune.Island.Seed = 3
	tune.Pathing.Heuristic = "chebyshev"
	tune.Collect = false
	tune.Persistence.DataDir = t.TempDir()
	tune.Persistence.DisableDB = true

	sum, err := run(runConfig{Tune: tune, RunID: "gen"}, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Nodes != sum.Reachable || sum.Delivered != 0 {
		t.Fatalf("summary=%+v", sum)
	}
	if _, err := os.Stat(filepath.Join(tune.Persistence.DataDir, "index.db")); !os.IsNotExist(err) {
		t.Fatalf("index.db should not exist: %v", err)
	}
}

func TestBuildIslandMissingMap(t *testing.T) {
	tune := tuning.Defaults()
	tune.Island.Map = filepath.Join(t.TempDir(), "nope.txt")
	if _, err := buildIsland(tune); err == nil {
		t.Fatalf("expected error")
	}
}
