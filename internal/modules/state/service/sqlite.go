package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SQLite stores the value as TEXT to keep the decimal exact.
type SQLite struct {
	db  *sql.DB
	key string
}

func NewSQLite(path, key string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	conn.SetMaxOpenConns(1)

	s := &SQLite{db: conn, key: key}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS stop_loss_state (
		key        TEXT PRIMARY KEY,
		stop_loss  TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "create stop_loss_state")
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT stop_loss FROM stop_loss_state WHERE key = ?`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, corrupt("no stop-loss row for key %q", s.key)
	}
	if err != nil {
		return decimal.Zero, corrupt("select stop-loss: %v", err)
	}
	return parseStopLoss(raw)
}

func (s *SQLite) Save(ctx context.Context, stopLoss decimal.Decimal) error {
	if err := checkWritable(stopLoss); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stop_loss_state (key, stop_loss, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET stop_loss = excluded.stop_loss, updated_at = excluded.updated_at`,
		s.key, stopLoss.String(), time.Now().UTC(),
	)
	if err != nil {
		return writeFailed("upsert stop-loss: %v", err)
	}
	return nil
}

func (s *SQLite) Init(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stop_loss_state (key, stop_loss, updated_at) VALUES (?, '0', ?)
		 ON CONFLICT(key) DO NOTHING`,
		s.key, time.Now().UTC(),
	)
	if err != nil {
		return false, writeFailed("init stop-loss row: %v", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
