package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"naturalist.ai/internal/sim/agent"
	"naturalist.ai/internal/sim/tuning"
)

// batch totals a series of runs over consecutive seeds.
type batch struct {
	Runs         int
	Accomplished int
	Failed       int
	Nodes        int
	Animals      int
	Delivered    int
	Moves        int
	Elapsed      time.Duration
	LastErr      error
}

// accomplished reports whether every animal the run found reached the ship.
func accomplished(s summary, err error) bool {
	return err == nil && s.Animals > 0 && s.Delivered == s.Animals
}

func (b *batch) add(s summary, err error) {
	b.Runs++
	if err != nil {
		b.Failed++
		b.LastErr = err
	}
	if accomplished(s, err) {
		b.Accomplished++
	}
	b.Nodes += s.Nodes
	b.Animals += s.Animals
	b.Delivered += s.Delivered
	b.Moves += s.Moves
	b.Elapsed += s.Elapsed
}

func (b batch) avg(total int) float64 {
	if b.Runs == 0 {
		return 0
	}
	return float64(total) / float64(b.Runs)
}

// runBatch plays n runs. Run i uses the tuned seed plus i; a fixed map file
// is replayed as is.
func runBatch(tune tuning.Tuning, n int, newID func() string, extra agent.Sinks, logger *log.Logger) ([]summary, batch) {
	var (
		sums []summary
		b    batch
	)
	base := tune.Island.Seed
	for i := 0; i < n; i++ {
		t := tune
		t.Island.Seed = base + int64(i)
		sum, err := run(runConfig{Tune: t, RunID: newID()}, extra, logger)
		if err != nil {
			logger.Printf("run %d seed=%d: %v", i, t.Island.Seed, err)
		}
		sums = append(sums, sum)
		b.add(sum, err)
	}
	return sums, b
}

func printBatch(w io.Writer, b batch) {
	fmt.Fprintf(w, "runs %d (%d accomplished, %d failed)\n", b.Runs, b.Accomplished, b.Failed)
	fmt.Fprintf(w, "  animals:   %s found, %s delivered\n", humanize.Comma(int64(b.Animals)), humanize.Comma(int64(b.Delivered)))
	fmt.Fprintf(w, "  moves:     %s total, %.1f avg\n", humanize.Comma(int64(b.Moves)), b.avg(b.Moves))
	fmt.Fprintf(w, "  nodes:     %.1f avg\n", b.avg(b.Nodes))
	avgTime := time.Duration(0)
	if b.Runs > 0 {
		avgTime = b.Elapsed / time.Duration(b.Runs)
	}
	fmt.Fprintf(w, "  time:      %s total, %s avg\n", b.Elapsed.Round(time.Microsecond), avgTime.Round(time.Microsecond))
	if b.LastErr != nil {
		fmt.Fprintf(w, "  last error: %v\n", b.LastErr)
	}
}
