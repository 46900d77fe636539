package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"naturalist.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable index of runs. Writes go through one goroutine
// and are committed in batches; the JSONL event logs remain the source of
// truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqItems
	reqSync
)

type req struct {
	kind reqKind

	run   RunRow
	runID string
	items []ItemRow
	done  chan struct{}
}

// tsLayout keeps fixed-width fractions so timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type RunRow struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Seed         int64
	MapFile      string
	Heuristic    string
	Nodes        int
	Items        int
	Moves        int
	Delivered    int
	SnapshotPath string
	// ErrorCode is empty for a clean run, else a protocol error code.
	ErrorCode string
}

type ItemRow struct {
	Name string
	X, Y int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tunings (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			map_file TEXT NOT NULL,
			heuristic TEXT NOT NULL,
			nodes INTEGER NOT NULL,
			items INTEGER NOT NULL,
			moves INTEGER NOT NULL,
			delivered INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL,
			error_code TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS items (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			PRIMARY KEY (run_id, name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_pos ON items(run_id, x, y);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts writes discarded because the queue was full.
func (s *SQLiteIndex) Dropped() int64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil || s.closed.Load() || r.RunID == "" {
		return
	}
	s.enqueue(req{kind: reqRun, run: r})
}

func (s *SQLiteIndex) RecordItems(runID string, items []ItemRow) {
	if s == nil || s.closed.Load() || runID == "" || len(items) == 0 {
		return
	}
	s.enqueue(req{kind: reqItems, runID: runID, items: append([]ItemRow(nil), items...)})
}

// Sync waits until everything queued so far is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertTuning stores the tuning actually applied, keyed by the digest of its
// canonical JSON, and returns that digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tunings(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return digest, nil
}

// ListRuns returns up to n runs, newest first.
func (s *SQLiteIndex) ListRuns(ctx context.Context, n int) ([]RunRow, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,started_at,finished_at,seed,map_file,heuristic,nodes,items,moves,delivered,snapshot_path,error_code
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			r              RunRow
			started, ended string
		)
		if err := rows.Scan(&r.RunID, &started, &ended, &r.Seed, &r.MapFile, &r.Heuristic,
			&r.Nodes, &r.Items, &r.Moves, &r.Delivered, &r.SnapshotPath, &r.ErrorCode); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(tsLayout, started)
		r.FinishedAt, _ = time.Parse(tsLayout, ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunItems lists the items seen in one run, ordered by name.
func (s *SQLiteIndex) RunItems(ctx context.Context, runID string) ([]ItemRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name,x,y FROM items WHERE run_id=? ORDER BY name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemRow
	for rows.Next() {
		var it ItemRow
		if err := rows.Scan(&it.Name, &it.X, &it.Y); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,started_at,finished_at,seed,map_file,heuristic,nodes,items,moves,delivered,snapshot_path,error_code) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertItem, _ := s.db.Prepare(`INSERT OR REPLACE INTO items(run_id,name,x,y) VALUES(?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertItem != nil {
			_ = insertItem.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			rr := r.run
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					rr.RunID,
					rr.StartedAt.UTC().Format(tsLayout),
					rr.FinishedAt.UTC().Format(tsLayout),
					rr.Seed,
					rr.MapFile,
					rr.Heuristic,
					rr.Nodes,
					rr.Items,
					rr.Moves,
					rr.Delivered,
					rr.SnapshotPath,
					rr.ErrorCode,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqItems:
			for _, it := range r.items {
				if insertItem == nil {
					break
				}
				if _, err := tx.Stmt(insertItem).Exec(r.runID, it.Name, it.X, it.Y); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
