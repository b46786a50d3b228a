package eventlog

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultDedupeCapacity bounds the duplicate-suppression window. Sized for
// a few recent events per avatar; older repeats are legitimate re-occurrences.
const DefaultDedupeCapacity = 1024

// Log is the durable event store. All writes go through Append, which also
// applies duplicate suppression. Log is used from the single simulator
// goroutine plus read-only HTTP handlers; database/sql serializes access.
type Log struct {
	db     *sql.DB
	path   string
	dedupe *dedupeLRU
}

// Open opens (or creates) the event database at path and applies pending
// schema migrations. Use ":memory:" for throwaway logs in tests.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event db: %w", err)
	}
	// modernc sqlite is in-process; a single connection avoids both write
	// contention and the separate-:memory:-per-connection surprise.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate event db: %w", err)
	}

	return &Log{
		db:     db,
		path:   path,
		dedupe: newDedupeLRU(DefaultDedupeCapacity),
	}, nil
}

// runMigrations applies embedded SQL migrations with golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "events", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver; closing m would also close the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

// Path returns the database file path ("" for in-memory logs).
func (l *Log) Path() string {
	if l.path == ":memory:" {
		return ""
	}
	return l.path
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Append stores the event unless an identical one (same month, content, and
// related ids) was recently stored. Returns true when the event was written.
func (l *Log) Append(e Event) (bool, error) {
	if l.dedupe.seen(dedupeKey(e)) {
		return false, nil
	}

	ids, err := json.Marshal(e.RelatedIDs)
	if err != nil {
		return false, fmt.Errorf("failed to encode related ids: %w", err)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO events (id, month, content, related_ids, is_major, is_story) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Month, e.Content, string(ids), boolInt(e.IsMajor), boolInt(e.IsStory),
	); err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	for _, id := range e.RelatedIDs {
		if _, err := tx.Exec(
			`INSERT INTO event_avatars (event_id, avatar_id) VALUES (?, ?)`,
			e.ID, id,
		); err != nil {
			return false, fmt.Errorf("failed to insert event relation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit event: %w", err)
	}
	return true, nil
}

// Query selects events filtered by avatar id and/or major flag, newest
// first, capped at limit (≤ 0 falls back to 100).
type Query struct {
	AvatarID string
	Major    *bool
	Limit    int
}

// Events runs a filtered query.
func (l *Log) Events(q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	sqlText := `SELECT e.id, e.month, e.content, e.related_ids, e.is_major, e.is_story FROM events e`
	args := []any{}
	where := ""
	if q.AvatarID != "" {
		sqlText += ` JOIN event_avatars ea ON ea.event_id = e.id`
		where = ` WHERE ea.avatar_id = ?`
		args = append(args, q.AvatarID)
	}
	if q.Major != nil {
		if where == "" {
			where = ` WHERE e.is_major = ?`
		} else {
			where += ` AND e.is_major = ?`
		}
		args = append(args, boolInt(*q.Major))
	}
	sqlText += where + ` ORDER BY e.seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			e              Event
			idsJSON        string
			major, story   int
		)
		if err := rows.Scan(&e.ID, &e.Month, &e.Content, &idsJSON, &major, &story); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &e.RelatedIDs); err != nil {
			return nil, fmt.Errorf("failed to decode related ids: %w", err)
		}
		e.IsMajor = major != 0
		e.IsStory = story != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByAvatar counts an avatar's events with the given major flag.
// Feeds nickname eligibility checks.
func (l *Log) CountByAvatar(avatarID string, major bool) (int, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM events e JOIN event_avatars ea ON ea.event_id = e.id
		 WHERE ea.avatar_id = ? AND e.is_major = ?`,
		avatarID, boolInt(major),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// Count returns the total number of stored events.
func (l *Log) Count() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
