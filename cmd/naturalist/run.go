package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"naturalist.ai/internal/persistence/indexdb"
	persistlog "naturalist.ai/internal/persistence/log"
	"naturalist.ai/internal/persistence/snapshot"
	"naturalist.ai/internal/protocol"
	"naturalist.ai/internal/sim/agent"
	"naturalist.ai/internal/sim/island"
	"naturalist.ai/internal/sim/tuning"
)

type runConfig struct {
	Tune  tuning.Tuning
	RunID string
}

type summary struct {
	RunID          string
	Nodes          int
	Reachable      int
	ItemNodes      int
	Animals        int
	Delivered      int
	Moves          int
	Searches       int
	Decompositions int
	Events         int
	SnapshotPath   string
	SnapshotBytes  int64
	Elapsed        time.Duration
}

func buildIsland(t tuning.Tuning) (*island.Island, error) {
	if t.Island.Map == "" {
		return island.Generate(t.IslandConfig())
	}
	f, err := os.Open(t.Island.Map)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	is, err := island.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Island.Map, err)
	}
	is.SetCapacity(t.Island.Capacity)
	return is, nil
}

// run explores one island and persists what was found. Persistence failures
// are logged; only a failed exploration or collection is returned.
func run(cfg runConfig, extra agent.Sinks, logger *log.Logger) (summary, error) {
	tune := cfg.Tune
	sum := summary{RunID: cfg.RunID}

	is, err := buildIsland(tune)
	if err != nil {
		return sum, fmt.Errorf("island: %w", err)
	}
	sum.Reachable = is.Reachable()

	runDir := filepath.Join(tune.Persistence.DataDir, "runs", cfg.RunID)
	events := persistlog.NewEventLogger(runDir)
	defer events.Close()

	var idx *indexdb.SQLiteIndex
	if !tune.Persistence.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(tune.Persistence.DataDir, "index.db"))
		if err != nil {
			logger.Printf("index disabled: %v", err)
			idx = nil
		} else {
			defer idx.Close()
			if _, err := idx.UpsertTuning(tune); err != nil {
				logger.Printf("index: upsert tuning: %v", err)
			}
		}
	}

	nat := agent.New(is, agent.Options{
		RunID:     cfg.RunID,
		Heuristic: tune.Heuristic(),
		Sink:      append(agent.Sinks{events}, extra...),
		Logger:    logger,
	})

	started := time.Now()
	_, items, runErr := nat.Explore()
	var delivered []string
	if runErr == nil && tune.Collect {
		delivered, runErr = nat.Collect(nat.Route(), is, is.Capacity())
	}
	nat.Done(delivered...)
	sum.Elapsed = time.Since(started)

	sum.Nodes = nat.Map().Len()
	sum.ItemNodes = len(items)
	sum.Delivered = len(delivered)
	sum.Moves = nat.Moves()
	st := nat.TravelStats()
	sum.Searches, sum.Decompositions = st.Searches, st.Decompositions

	snap := buildSnapshot(cfg.RunID, tune, nat, started)
	snap.Delivered = delivered
	sum.Animals = snap.ItemCount()
	path := filepath.Join(runDir, "map.snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot: %v", err)
	} else {
		sum.SnapshotPath = path
		if fi, err := os.Stat(path); err == nil {
			sum.SnapshotBytes = fi.Size()
		}
	}

	if idx != nil {
		idx.RecordRun(indexdb.RunRow{
			RunID:        cfg.RunID,
			StartedAt:    started,
			FinishedAt:   started.Add(sum.Elapsed),
			Seed:         tune.Island.Seed,
			MapFile:      tune.Island.Map,
			Heuristic:    tune.Pathing.Heuristic,
			Nodes:        sum.Nodes,
			Items:        sum.Animals,
			Moves:        sum.Moves,
			Delivered:    sum.Delivered,
			SnapshotPath: sum.SnapshotPath,
			ErrorCode:    protocol.CodeOf(runErr),
		})
		var rows []indexdb.ItemRow
		for _, s := range nat.Sightings() {
			for _, name := range s.Items {
				rows = append(rows, indexdb.ItemRow{Name: name, X: s.Pos.X, Y: s.Pos.Y})
			}
		}
		idx.RecordItems(cfg.RunID, rows)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.Sync(ctx); err != nil {
			logger.Printf("index: sync: %v", err)
		}
		cancel()
	}

	if err := events.Close(); err != nil {
		logger.Printf("events: close: %v", err)
	}
	if err := events.Err(); err != nil {
		logger.Printf("events: %v", err)
	}
	sum.Events = events.Written()
	return sum, runErr
}

func buildSnapshot(runID string, tune tuning.Tuning, nat *agent.Naturalist, started time.Time) snapshot.MapSnapshotV1 {
	seen := map[[2]int][]string{}
	for _, s := range nat.Sightings() {
		seen[[2]int{s.Pos.X, s.Pos.Y}] = s.Items
	}
	m := nat.Map()
	cells := make([]snapshot.CellV1, 0, m.Len())
	for _, p := range m.Positions() {
		cells = append(cells, snapshot.CellV1{X: p.X, Y: p.Y, Items: seen[[2]int{p.X, p.Y}]})
	}
	visits := make([][2]int, 0, len(nat.Visited()))
	for _, n := range nat.Visited() {
		visits = append(visits, [2]int{n.Pos().X, n.Pos().Y})
	}
	ship := nat.Ship().Pos()
	return snapshot.MapSnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, RunID: runID, CreatedUnix: started.Unix()},
		Seed:      tune.Island.Seed,
		MapFile:   tune.Island.Map,
		Heuristic: tune.Pathing.Heuristic,
		Ship:      [2]int{ship.X, ship.Y},
		Cells:     cells,
		Visits:    visits,
		Moves:     nat.Moves(),
	}
}
