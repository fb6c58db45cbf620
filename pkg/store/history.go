package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/chazu/tokamak/pkg/reactor"
)

// Build is one row of the build history.
type Build struct {
	ID          string
	Session     string
	Reactor     string
	Fingerprint string
	Shapes      int
	Rebuilt     int
	Levels      int
	Took        time.Duration
	Error       string
	CreatedAt   time.Time
}

// OK reports whether the build succeeded.
func (b Build) OK() bool { return b.Error == "" }

// ShapeRecord is one member of a recorded build.
type ShapeRecord struct {
	Name        string
	Fingerprint string
	Rebuilt     bool
}

// History is an append-only ledger of reactor builds.
type History struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// OpenHistory opens (or creates) the ledger at dbPath.
func OpenHistory(dbPath string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("store: open history: %w", err)
	}
	h := &History{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate history: %w", err)
	}
	return h, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) migrate() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			id          TEXT PRIMARY KEY,
			session     TEXT NOT NULL DEFAULT '',
			reactor     TEXT NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			shapes      INTEGER NOT NULL DEFAULT 0,
			rebuilt     INTEGER NOT NULL DEFAULT 0,
			levels      INTEGER NOT NULL DEFAULT 0,
			took_ms     INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_builds_reactor ON builds(reactor, id);

		CREATE TABLE IF NOT EXISTS build_shapes (
			build_id    TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			name        TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			rebuilt     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (build_id, position)
		);
	`)
	return err
}

func (h *History) newID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), h.entropy).String()
}

// Record appends a build. A nil result with a non-nil buildErr records a
// failed build of reactorName.
func (h *History) Record(ctx context.Context, reactorName string, res *reactor.Result, buildErr error) (Build, error) {
	now := time.Now().UTC()
	b := Build{ID: h.newID(), Reactor: reactorName, CreatedAt: now.Truncate(time.Second)}
	if buildErr != nil {
		b.Error = buildErr.Error()
	}
	if res != nil {
		b.Session = res.Session
		b.Fingerprint = res.Fingerprint.String()
		b.Shapes = len(res.Shapes)
		b.Rebuilt = res.Rebuilt
		b.Levels = res.Levels
		b.Took = res.Took.Truncate(time.Millisecond)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return Build{}, fmt.Errorf("store: record build: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (id, session, reactor, fingerprint, shapes, rebuilt, levels, took_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Session, b.Reactor, b.Fingerprint, b.Shapes, b.Rebuilt, b.Levels,
		b.Took.Milliseconds(), b.Error, now.Format(time.RFC3339))
	if err != nil {
		return Build{}, fmt.Errorf("store: record build: %w", err)
	}
	if res != nil {
		for i, s := range res.Shapes {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO build_shapes (build_id, position, name, fingerprint, rebuilt) VALUES (?, ?, ?, ?, ?)`,
				b.ID, i, s.Name, s.Fingerprint.String(), boolToInt(s.Rebuilt))
			if err != nil {
				return Build{}, fmt.Errorf("store: record shape %q: %w", s.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return Build{}, fmt.Errorf("store: record build: %w", err)
	}
	return b, nil
}

// Recent returns up to limit builds, newest first. An empty reactor name
// matches every reactor.
func (h *History) Recent(ctx context.Context, reactorName string, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, session, reactor, fingerprint, shapes, rebuilt, levels, took_ms, error, created_at FROM builds`
	var args []any
	if reactorName != "" {
		query += ` WHERE reactor = ?`
		args = append(args, reactorName)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list builds: %w", err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		var (
			b       Build
			tookMS  int64
			created string
		)
		if err := rows.Scan(&b.ID, &b.Session, &b.Reactor, &b.Fingerprint, &b.Shapes, &b.Rebuilt,
			&b.Levels, &tookMS, &b.Error, &created); err != nil {
			return nil, fmt.Errorf("store: scan build: %w", err)
		}
		b.Took = time.Duration(tookMS) * time.Millisecond
		b.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Shapes returns the members recorded for a build, in insertion order.
func (h *History) Shapes(ctx context.Context, buildID string) ([]ShapeRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT name, fingerprint, rebuilt FROM build_shapes WHERE build_id = ? ORDER BY position`, buildID)
	if err != nil {
		return nil, fmt.Errorf("store: list shapes: %w", err)
	}
	defer rows.Close()

	var out []ShapeRecord
	for rows.Next() {
		var (
			s       ShapeRecord
			rebuilt int
		)
		if err := rows.Scan(&s.Name, &s.Fingerprint, &rebuilt); err != nil {
			return nil, fmt.Errorf("store: scan shape: %w", err)
		}
		s.Rebuilt = rebuilt != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
