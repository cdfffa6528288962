package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SqliteStore is the durable Store backed by a sqlite database file
type SqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSqliteStore opens the database at path and migrates it to the latest schema
func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single writer keeps sqlite from returning SQLITE_BUSY under concurrent creates
	db.SetMaxOpenConns(1)

	s := &SqliteStore{db: db, now: time.Now}
	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) setup() error {
	log := logger.ForStore()

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{
		MigrationsTable: "migrations",
	})
	if err != nil {
		return err
	}

	// m is not closed: closing it would close s.db too
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Msg("Nothing to migrate")
			return nil
		}
		return err
	}

	log.Info().Msg("Successfully migrated to the latest version")
	return nil
}

// FindByKey implements Store
func (s *SqliteStore) FindByKey(ctx context.Context, key string) (*event.Event, error) {
	var e event.Event
	row := s.db.QueryRowContext(ctx, `
        SELECT id, dedup_key, source, title, date, venue, image_url, source_url, city, status, created_at
        FROM events
        WHERE dedup_key = ?
        LIMIT 1
    `, key)
	err := row.Scan(
		&e.ID,
		&e.Key,
		&e.Source,
		&e.Title,
		&e.Date,
		&e.Venue,
		&e.ImageURL,
		&e.SourceURL,
		&e.City,
		&e.Status,
		&e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create implements Store
func (s *SqliteStore) Create(ctx context.Context, e *event.Event) (*event.Event, error) {
	created := prepare(e, s.now)

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO
        events(id, dedup_key, source, title, date, venue, image_url, source_url, city, status, created_at)
        VALUES
        (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		created.ID,
		created.Key,
		created.Source,
		created.Title,
		created.Date,
		created.Venue,
		created.ImageURL,
		created.SourceURL,
		created.City,
		created.Status,
		created.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &created, nil
}

// Count returns the number of stored events
func (s *SqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Close implements Store
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
