package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	persistlog "naturalist.ai/internal/persistence/log"
	"naturalist.ai/internal/persistence/snapshot"
	"naturalist.ai/internal/protocol"
)

func TestTallyEvents(t *testing.T) {
	dir := t.TempDir()
	w := persistlog.NewJSONLZstdWriter(dir, "events")
	evs := []protocol.Event{
		{Seq: 1, Kind: protocol.KindStart},
		{Seq: 2, Kind: protocol.KindMove, Moves: 1},
		{Seq: 3, Kind: protocol.KindVisit},
		{Seq: 5, Kind: protocol.KindMove, Moves: 2},
		{Seq: 6, Kind: protocol.KindDone, Moves: 2},
	}
	for _, ev := range evs {
		if err := w.Write(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = w.Close()

	got, err := tallyEvents(dir)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if got.total != 5 || got.byKind[protocol.KindMove] != 2 || got.moves != 2 || got.gaps != 1 || got.lastSeq != 6 {
		t.Fatalf("tally=%+v", got)
	}

	var out bytes.Buffer
	printTally(&out, got)
	if !strings.Contains(out.String(), "gaps=1") || !strings.Contains(out.String(), "MOVE") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestDescribe(t *testing.T) {
	snap := snapshot.MapSnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, RunID: "r9"},
		Ship:   [2]int{0, 0},
		Cells:  []snapshot.CellV1{{X: 0, Y: 0}, {X: 1, Y: 0, Items: []string{"yak-0"}}},
		Moves:  1234,
	}
	path := filepath.Join(t.TempDir(), "map.snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out bytes.Buffer
	describe(&out, back, true)
	s := out.String()
	for _, want := range []string{"run=r9", "moves=1,234", "items=1", "S*\n"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
}
