package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"naturalist.ai/internal/sim/agent"
	"naturalist.ai/internal/sim/tuning"
	"naturalist.ai/internal/transport/observer"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file means defaults)")
		seed       = flag.Int64("seed", 0, "island seed (overrides tuning)")
		mapPath    = flag.String("map", "", "ASCII island map (overrides the generator)")
		animals    = flag.Int("animals", 0, "number of animals (overrides tuning)")
		trees      = flag.Int("trees", 0, "number of trees (overrides tuning)")
		heuristic  = flag.String("heuristic", "", "manhattan or chebyshev (overrides tuning)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
		observe    = flag.String("observe", "", "observer listen address, e.g. 127.0.0.1:8091 (empty to disable)")
		collect    = flag.Bool("collect", true, "bring every animal found back to the ship")
		linger     = flag.Duration("linger", 0, "keep the observer up this long after the run")
		runs       = flag.Int("runs", 1, "number of runs over consecutive seeds starting at -seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[naturalist] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["seed"] {
		tune.Island.Seed = *seed
	}
	if set["map"] {
		tune.Island.Map = *mapPath
	}
	if set["animals"] {
		tune.Island.Animals = *animals
	}
	if set["trees"] {
		tune.Island.Trees = *trees
	}
	if set["heuristic"] {
		tune.Pathing.Heuristic = *heuristic
	}
	if set["data"] {
		tune.Persistence.DataDir = *dataDir
	}
	if set["disable_db"] {
		tune.Persistence.DisableDB = *disableDB
	}
	if set["collect"] {
		tune.Collect = *collect
	}
	if set["observe"] {
		tune.Observer.Addr = *observe
	}
	tune.Normalize()
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	if *runs < 1 {
		logger.Fatalf("-runs must be >= 1, got %d", *runs)
	}

	runID := uuid.NewString()
	var sinks agent.Sinks

	var hub *observer.Hub
	var srv *http.Server
	if addr := strings.TrimSpace(tune.Observer.Addr); addr != "" {
		hub = observer.NewHub(tune.Observer.Backlog, logger)
		mux := http.NewServeMux()
		mux.Handle("/v1/observe", hub.WSHandler())
		mux.Handle("/v1/status", hub.StatusHandler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Printf("observer listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("observer: %v", err)
			}
		}()
		sinks = append(sinks, hub)
	}

	var runErr error
	if *runs == 1 {
		var sum summary
		sum, runErr = run(runConfig{Tune: tune, RunID: runID}, sinks, logger)
		printSummary(os.Stdout, sum, runErr)
	} else {
		_, b := runBatch(tune, *runs, uuid.NewString, sinks, logger)
		printBatch(os.Stdout, b)
		runErr = b.LastErr
	}

	if srv != nil {
		if *linger > 0 {
			logger.Printf("observer lingering for %s", *linger)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			select {
			case <-ctx.Done():
			case <-time.After(*linger):
			}
			stop()
		}
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(ctx)
		cancel()
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func printSummary(w io.Writer, s summary, runErr error) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "  nodes:     %d of %d reachable\n", s.Nodes, s.Reachable)
	fmt.Fprintf(w, "  items:     %d on %d nodes, %d delivered\n", s.Animals, s.ItemNodes, s.Delivered)
	fmt.Fprintf(w, "  moves:     %s\n", humanize.Comma(int64(s.Moves)))
	fmt.Fprintf(w, "  searches:  %d (%d diagonal detours)\n", s.Searches, s.Decompositions)
	fmt.Fprintf(w, "  events:    %s\n", humanize.Comma(int64(s.Events)))
	if s.SnapshotPath != "" {
		fmt.Fprintf(w, "  snapshot:  %s (%s)\n", s.SnapshotPath, humanize.Bytes(uint64(s.SnapshotBytes)))
	}
	fmt.Fprintf(w, "  time:      %s\n", s.Elapsed.Round(time.Microsecond))
	if runErr != nil {
		fmt.Fprintf(w, "  error:     %v\n", runErr)
	}
}
