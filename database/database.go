package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Storage is the durable key-value store backing each client's cached
// state. Values are partitioned by client id; no credential is ever written.
type Storage interface {
	Get(ctx context.Context, clientID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, clientID, key, value string) error
	Remove(ctx context.Context, clientID, key string) error
	Close() error
}

// Open picks the backend from the url: redis:// and rediss:// urls use
// redis, anything else is a sqlite3 file path. Redis expires a client's
// entries ttl after their last write; sqlite rows are dropped by PurgeBefore.
func Open(url string, ttl time.Duration) (Storage, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		return OpenRedis(url, ttl)
	}
	return OpenSQLite(url)
}

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		// concurrent clients write their own rows; wait on the lock rather than fail
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "database.open")
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database.migrate")
	}

	return &SQLiteStore{db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	var value string
	err := s.db.
		QueryRowContext(ctx, "SELECT value FROM storage_item WHERE client_id = ? AND key = ?", clientID, key).
		Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrapf(err, "database.get %s", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, clientID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_item (client_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id, key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at`,
		clientID,
		key,
		value,
		time.Now().UTC(),
	)
	return errors.Wrapf(err, "database.set %s", key)
}

func (s *SQLiteStore) Remove(ctx context.Context, clientID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM storage_item WHERE client_id = ? AND key = ?",
		clientID,
		key,
	)
	return errors.Wrapf(err, "database.remove %s", key)
}

// PurgeBefore drops entries not written since t, returning how many went.
func (s *SQLiteStore) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM storage_item WHERE updated_at < ?", t.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "database.purge")
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
