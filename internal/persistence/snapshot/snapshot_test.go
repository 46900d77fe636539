package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sample() MapSnapshotV1 {
	return MapSnapshotV1{
		Header:    Header{Version: Version, RunID: "run-7", CreatedUnix: 1700000000},
		Seed:      7,
		Heuristic: "manhattan",
		Ship:      [2]int{1, 0},
		Cells: []CellV1{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0, Items: []string{"kiwi-0", "emu-1"}},
			{X: 0, Y: 1}, {X: 2, Y: 1},
		},
		Visits:    [][2]int{{1, 0}, {2, 0}, {2, 1}, {0, 0}, {0, 1}},
		Moves:     6,
		Delivered: []string{"kiwi-0"},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "run-7.snap.zst")
	if err := WriteSnapshot(path, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.RunID != "run-7" || got.Ship != [2]int{1, 0} || got.Moves != 6 {
		t.Fatalf("got %+v", got)
	}
	if len(got.Cells) != 5 || len(got.Visits) != 5 || got.ItemCount() != 2 {
		t.Fatalf("cells=%d visits=%d items=%d", len(got.Cells), len(got.Visits), got.ItemCount())
	}
}

func TestReadSnapshotRejectsOtherVersions(t *testing.T) {
	s := sample()
	s.Header.Version = 2
	path := filepath.Join(t.TempDir(), "v2.snap.zst")
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestReadSnapshotNotZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	_ = os.WriteFile(path, []byte("not a snapshot"), 0o644)
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestASCII(t *testing.T) {
	want := ".S*\n.#.\n"
	if got := sample().ASCII(); got != want {
		t.Fatalf("ASCII:\n%s\nwant:\n%s", got, want)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestEncodeSnapshotReportsWriteFailure(t *testing.T) {
	full := errors.New("disk full")
	err := encodeSnapshot(failingWriter{err: full}, sample())
	if err == nil {
		t.Fatalf("expected %v to surface", full)
	}
}
