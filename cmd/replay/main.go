package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"naturalist.ai/internal/persistence/indexdb"
	persistlog "naturalist.ai/internal/persistence/log"
	"naturalist.ai/internal/persistence/snapshot"
	"naturalist.ai/internal/protocol"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to map.snap.zst")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		dbPath    = flag.String("db", "", "index.db to list recent runs from (optional)")
		runs      = flag.Int("runs", 10, "number of runs to list with -db")
		noMap     = flag.Bool("no_map", false, "skip the ASCII rendering")
	)
	flag.Parse()

	if *snapPath == "" && *dbPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -db")
		os.Exit(2)
	}

	if *dbPath != "" {
		if err := listRuns(os.Stdout, *dbPath, *runs); err != nil {
			fmt.Fprintln(os.Stderr, "list runs:", err)
			os.Exit(1)
		}
	}
	if *snapPath == "" {
		return
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	describe(os.Stdout, snap, !*noMap)

	if *eventsDir == "" {
		return
	}
	tally, err := tallyEvents(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "events:", err)
		os.Exit(1)
	}
	printTally(os.Stdout, tally)
	if tally.moves != snap.Moves {
		fmt.Fprintf(os.Stderr, "MISMATCH: snapshot moves=%d events moves=%d\n", snap.Moves, tally.moves)
		os.Exit(1)
	}
}

func describe(w io.Writer, snap snapshot.MapSnapshotV1, drawMap bool) {
	created := time.Unix(snap.Header.CreatedUnix, 0)
	fmt.Fprintf(w, "snapshot v%d run=%s seed=%d heuristic=%s created %s\n",
		snap.Header.Version, snap.Header.RunID, snap.Seed, snap.Heuristic, humanize.Time(created))
	if snap.MapFile != "" {
		fmt.Fprintf(w, "map=%s\n", snap.MapFile)
	}
	fmt.Fprintf(w, "cells=%d items=%d delivered=%d moves=%s\n",
		len(snap.Cells), snap.ItemCount(), len(snap.Delivered), humanize.Comma(int64(snap.Moves)))
	if drawMap {
		fmt.Fprint(w, snap.ASCII())
	}
}

type tally struct {
	byKind  map[string]int
	total   int
	moves   int
	lastSeq uint64
	gaps    int
}

// tallyEvents counts events per kind and checks that sequence numbers are
// contiguous.
func tallyEvents(dir string) (tally, error) {
	t := tally{byKind: map[string]int{}}
	err := persistlog.ReadEvents(dir, func(ev protocol.Event) error {
		t.total++
		t.byKind[ev.Kind]++
		if ev.Kind == protocol.KindMove && ev.Moves > t.moves {
			t.moves = ev.Moves
		}
		if t.lastSeq != 0 && ev.Seq != t.lastSeq+1 {
			t.gaps++
		}
		t.lastSeq = ev.Seq
		return nil
	})
	return t, err
}

func printTally(w io.Writer, t tally) {
	kinds := make([]string, 0, len(t.byKind))
	for k := range t.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "events=%s last_seq=%d gaps=%d\n", humanize.Comma(int64(t.total)), t.lastSeq, t.gaps)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-8s %s\n", k, humanize.Comma(int64(t.byKind[k])))
	}
}

func listRuns(w io.Writer, path string, n int) error {
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer idx.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := idx.ListRuns(ctx, n)
	if err != nil {
		return err
	}
	for _, r := range rows {
		status := "ok"
		if r.ErrorCode != "" {
			status = r.ErrorCode
		}
		fmt.Fprintf(w, "%s  %s  nodes=%d items=%d delivered=%d moves=%s  %s\n",
			r.RunID, humanize.Time(r.StartedAt), r.Nodes, r.Items, r.Delivered, humanize.Comma(int64(r.Moves)), status)
	}
	return nil
}
