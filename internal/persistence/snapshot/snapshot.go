package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version     int    `json:"version"`
	RunID       string `json:"run_id"`
	CreatedUnix int64  `json:"created_unix"`
}

// MapSnapshotV1 is the discovered map at the end of a run.
type MapSnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64  `json:"seed"`
	MapFile   string `json:"map_file,omitempty"`
	Heuristic string `json:"heuristic"`

	Ship  [2]int   `json:"ship"`
	Cells []CellV1 `json:"cells"`
	// Visits lists cells in the order they were closed while exploring.
	Visits [][2]int `json:"visits"`

	Moves     int      `json:"moves"`
	Delivered []string `json:"delivered,omitempty"`
}

type CellV1 struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Items []string `json:"items,omitempty"`
}

func WriteSnapshot(path string, snap MapSnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	err = encodeSnapshot(f, snap)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// encodeSnapshot writes the header line and gob body through zstd. Buffered
// bytes and the zstd frame are flushed explicitly so a short write surfaces.
func encodeSnapshot(w io.Writer, snap MapSnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	err = writeBody(bufio.NewWriterSize(enc, 256*1024), snap)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeBody(bw *bufio.Writer, snap MapSnapshotV1) error {
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return bw.Flush()
}

func ReadSnapshot(path string) (MapSnapshotV1, error) {
	var snap MapSnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Bounds returns the smallest rectangle holding every cell and the ship.
func (s MapSnapshotV1) Bounds() (minX, minY, maxX, maxY int) {
	minX, minY, maxX, maxY = s.Ship[0], s.Ship[1], s.Ship[0], s.Ship[1]
	for _, c := range s.Cells {
		minX, maxX = min(minX, c.X), max(maxX, c.X)
		minY, maxY = min(minY, c.Y), max(maxY, c.Y)
	}
	return
}

// ASCII draws the discovered map: 'S' ship, '*' a cell that held items, '.'
// any other discovered cell and '#' everything never discovered.
func (s MapSnapshotV1) ASCII() string {
	minX, minY, maxX, maxY := s.Bounds()
	w, h := maxX-minX+1, maxY-minY+1
	rows := make([][]byte, h)
	for y := range rows {
		rows[y] = []byte(strings.Repeat("#", w))
	}
	for _, c := range s.Cells {
		ch := byte('.')
		if len(c.Items) > 0 {
			ch = '*'
		}
		rows[c.Y-minY][c.X-minX] = ch
	}
	rows[s.Ship[1]-minY][s.Ship[0]-minX] = 'S'

	var b strings.Builder
	for _, r := range rows {
		b.Write(r)
		b.WriteByte('\n')
	}
	return b.String()
}

// ItemCount is the number of items seen across all cells.
func (s MapSnapshotV1) ItemCount() int {
	n := 0
	for _, c := range s.Cells {
		n += len(c.Items)
	}
	return n
}
