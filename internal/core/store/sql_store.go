// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists users and jobs. The SQLStore is the durable record
// (SQLite by default, Postgres when configured); the LiveCache holds progress
// of in-flight jobs between submission and their terminal state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// timeLayout is RFC 3339 with a fixed nanosecond width so stored timestamps
// sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SQLStore is the durable store. It is safe for concurrent use.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database named by driver and dsn. Migrate must be
// called before the store is used.
func Open(ctx context.Context, driver string, dsn string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}
	if d.maxOpenConns > 0 {
		db.SetMaxOpenConns(d.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Driver returns the canonical driver name of the store.
func (s *SQLStore) Driver() string {
	return s.dialect.name
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		bio TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		expertise TEXT NOT NULL DEFAULT '[]',
		summary_preferences TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		step TEXT NOT NULL DEFAULT '',
		video_path TEXT NOT NULL DEFAULT '',
		num_frames INTEGER NOT NULL DEFAULT 10,
		summary_style TEXT NOT NULL DEFAULT 'default',
		summary_length_words INTEGER,
		metadata TEXT,
		result TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_user_created ON jobs (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
}

// addedColumns were introduced after the first schema version and are added
// to existing databases in place.
var addedColumns = []struct {
	table, column, columnType string
}{
	{"jobs", "summary_format", "TEXT NOT NULL DEFAULT 'paragraph'"},
	{"jobs", "user_profile", "TEXT"},
	{"jobs", "source_url", "TEXT NOT NULL DEFAULT ''"},
	{"jobs", "original_name", "TEXT NOT NULL DEFAULT ''"},
}

// Migrate creates the schema and adds late columns. Running it on an already
// migrated database changes nothing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range createStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, c := range addedColumns {
		_, err := s.db.ExecContext(ctx, s.dialect.addColumn(c.table, c.column, c.columnType))
		if err == nil {
			slog.DebugContext(ctx, "added column", "table", c.table, "column", c.column)
			continue
		}
		if s.dialect.isDuplicateColumn(err) {
			continue
		}
		return fmt.Errorf("failed to add column %s.%s: %w", c.table, c.column, err)
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}
