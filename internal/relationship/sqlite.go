package relationship

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dotcommander/parley/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS relationships (
	from_id  TEXT NOT NULL,
	to_id    TEXT NOT NULL,
	rel_type TEXT NOT NULL,
	value    REAL NOT NULL,
	PRIMARY KEY (from_id, to_id, rel_type)
);
`

// SQLiteStore is a Provider that keeps an in-memory cache and writes every
// change through to SQLite. Write failures are logged; the cache stays
// authoritative for the running session. Writes are serialised so the
// database sees changes in the order the cache applied them.
type SQLiteStore struct {
	writeMu sync.Mutex
	cache   *Store
	db      *sql.DB
	logger  *slog.Logger
}

// OpenSQLite opens (or creates) the database at dsn and hydrates the cache.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger, opts ...Option) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteStore{
		cache:  NewStore(opts...),
		db:     db,
		logger: logger.With("component", "relationship_sqlite"),
	}
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_id, rel_type, value FROM relationships`)
	if err != nil {
		return fmt.Errorf("load relationships: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var from, to, typ string
		var v float64
		if err := rows.Scan(&from, &to, &typ, &v); err != nil {
			return fmt.Errorf("scan relationship: %w", err)
		}
		s.cache.SetRelationship(from, to, domain.RelationshipType(typ), v)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate relationships: %w", err)
	}

	s.logger.Debug("Relationships loaded", "count", count)
	return nil
}

// GetRelationship reads from the cache.
func (s *SQLiteStore) GetRelationship(fromID, toID string, t domain.RelationshipType) float64 {
	return s.cache.GetRelationship(fromID, toID, t)
}

// SetRelationship updates the cache and persists the clamped value.
func (s *SQLiteStore) SetRelationship(fromID, toID string, t domain.RelationshipType, value float64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.cache.SetRelationship(fromID, toID, t, value)
	s.persist(fromID, toID, t, Clamp(value))
}

// ModifyRelationship applies delta in the cache and persists the result.
func (s *SQLiteStore) ModifyRelationship(fromID, toID string, t domain.RelationshipType, delta float64) float64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	v := s.cache.ModifyRelationship(fromID, toID, t, delta)
	s.persist(fromID, toID, t, v)
	return v
}

// Snapshot returns the cached entries.
func (s *SQLiteStore) Snapshot() []Entry {
	return s.cache.Snapshot()
}

func (s *SQLiteStore) persist(fromID, toID string, t domain.RelationshipType, value float64) {
	_, err := s.db.Exec(
		`INSERT INTO relationships (from_id, to_id, rel_type, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, rel_type) DO UPDATE SET value = excluded.value`,
		fromID, toID, string(t), value,
	)
	if err != nil {
		s.logger.Error("Failed to persist relationship",
			"from", fromID,
			"to", toID,
			"type", t,
			"error", err,
		)
	}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
