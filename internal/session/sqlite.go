package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStorage keeps sessions in a local sqlite file so they survive restarts
// without a redis server.
type SQLiteStorage struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStorage(dbPath string, ttl time.Duration) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStorage{db: db, ttl: ttl, now: time.Now}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) RunMigrations() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Load(ctx context.Context, visitorID string) (State, error) {
	query := `
		SELECT state, expires_at
		FROM sessions
		WHERE visitor_id = ?
	`
	var (
		data      string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, visitorID).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to query session: %w", err)
	}
	if expiresAt.Valid && s.now().Unix() >= expiresAt.Int64 {
		return State{}, ErrNotFound
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return State{}, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return state, nil
}

func (s *SQLiteStorage) Save(ctx context.Context, visitorID string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	var expiresAt sql.NullInt64
	if s.ttl > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Add(s.ttl).Unix(), Valid: true}
	}

	query := `
		INSERT INTO sessions (visitor_id, state, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(visitor_id) DO UPDATE SET
			state = excluded.state,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, visitorID, string(data), expiresAt, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, visitorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE visitor_id = ?`, visitorID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes rows whose TTL has passed and returns how many went.
func (s *SQLiteStorage) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
