package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"naturalist.ai/internal/sim/tuning"
)

func TestBatchAdd(t *testing.T) {
	var b batch
	b.add(summary{Nodes: 10, Animals: 2, Delivered: 2, Moves: 30, Elapsed: time.Millisecond}, nil)
	b.add(summary{Nodes: 8, Animals: 3, Delivered: 1, Moves: 20, Elapsed: time.Millisecond}, nil)
	b.add(summary{Nodes: 4}, errors.New("boom"))

	if b.Runs != 3 || b.Accomplished != 1 || b.Failed != 1 {
		t.Fatalf("batch=%+v", b)
	}
	if b.Moves != 50 || b.Animals != 5 || b.Delivered != 3 || b.Nodes != 22 {
		t.Fatalf("totals=%+v", b)
	}
	if got := b.avg(b.Moves); got < 16.66 || got > 16.67 {
		t.Fatalf("avg moves=%v", got)
	}
	if b.LastErr == nil {
		t.Fatalf("expected last error")
	}

	var out bytes.Buffer
	printBatch(&out, b)
	for _, want := range []string{"runs 3 (1 accomplished, 1 failed)", "moves:     50 total, 16.7 avg", "last error: boom"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunBatchConsecutiveSeeds(t *testing.T) {
	tune := tuning.Defaults()
	tune.Island.Width, tune.Island.Height = 12, 9
	tune.Island.Trees, tune.Island.Animals = 15, 5
	tune.Island.Seed = 40
	tune.Persistence.DataDir = t.TempDir()
	tune.Persistence.DisableDB = true

	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}
	sums, b := runBatch(tune, 3, newID, nil, log.New(io.Discard, "", 0))
	if len(sums) != 3 || b.Runs != 3 || b.Failed != 0 {
		t.Fatalf("runs=%d batch=%+v", len(sums), b)
	}

	withAnimals := 0
	for i, s := range sums {
		if s.RunID != fmt.Sprintf("batch-%d", i+1) {
			t.Fatalf("run %d id=%q", i, s.RunID)
		}
		if s.Nodes != s.Reachable || s.Delivered != s.Animals {
			t.Fatalf("run %d summary=%+v", i, s)
		}
		if s.Animals > 0 {
			withAnimals++
		}
	}
	if b.Accomplished != withAnimals {
		t.Fatalf("accomplished=%d want %d", b.Accomplished, withAnimals)
	}

	// Run i replays seed base+i.
	single := tune
	single.Island.Seed = 41
	sum, err := run(runConfig{Tune: single, RunID: "again"}, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Moves != sums[1].Moves || sum.Nodes != sums[1].Nodes {
		t.Fatalf("seed 41 moves=%d nodes=%d, batch run 1 moves=%d nodes=%d", sum.Moves, sum.Nodes, sums[1].Moves, sums[1].Nodes)
	}
}

func TestPrintSummaryLabels(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, summary{RunID: "r", Nodes: 3, Reachable: 3, Moves: 1234}, nil)
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n")[1:] {
		label := strings.TrimSpace(strings.SplitN(line, ":", 2)[0])
		if label != strings.ToLower(label) {
			t.Fatalf("label %q is not lower case", label)
		}
	}
	if !strings.Contains(out.String(), "moves:     1,234") {
		t.Fatalf("output:\n%s", out.String())
	}
}
