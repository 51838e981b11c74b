// Package store keeps published readings in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/sensor"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	sid   INTEGER NOT NULL,
	subid INTEGER NOT NULL,
	ts    INTEGER NOT NULL,
	v     REAL
);
CREATE INDEX IF NOT EXISTS readings_sid_ts ON readings (sid, ts);
`

const (
	insertReadingSQL = `INSERT INTO readings (sid, subid, ts, v) VALUES (?, ?, ?, ?)`
	recentSQL        = `SELECT sid, subid, ts, v FROM readings WHERE sid = ? ORDER BY ts DESC, id DESC LIMIT ?`
)

// SQLite stores readings; it implements publish.Publisher.
type SQLite struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string, logger *logrus.Logger) (*SQLite, error) {
	if logger == nil {
		logger = logrus.New()
	}

	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// one writer; also keeps a :memory: database alive on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}

	logger.WithField("path", path).Debug("Opened readings store")
	return &SQLite{db: db, logger: logger}, nil
}

func buildDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}
	if path == ":memory:" {
		return "file::memory:?_busy_timeout=5000", nil
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path), nil
}

// Publish inserts a reading. Unknown (NaN) values are stored as NULL.
func (s *SQLite) Publish(ctx context.Context, d sensor.Data) error {
	v := sql.NullFloat64{Float64: d.Value, Valid: !math.IsNaN(d.Value)}
	_, err := s.db.ExecContext(ctx, insertReadingSQL, int64(d.SID), int64(d.SubID), d.TS.UnixMilli(), v)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Recent returns up to limit readings of sid, newest first.
func (s *SQLite) Recent(ctx context.Context, sid uint32, limit int) ([]sensor.Data, error) {
	rows, err := s.db.QueryContext(ctx, recentSQL, int64(sid), limit)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close readings rows")
		}
	}()

	var out []sensor.Data
	for rows.Next() {
		var (
			sidV, subID, ts int64
			v               sql.NullFloat64
		)
		if err := rows.Scan(&sidV, &subID, &ts, &v); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		d := sensor.Data{
			SID:   uint32(sidV),
			SubID: uint16(subID),
			TS:    time.UnixMilli(ts),
			Value: math.NaN(),
		}
		if v.Valid {
			d.Value = v.Float64
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
