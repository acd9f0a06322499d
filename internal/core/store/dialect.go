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

package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the few places where SQLite and Postgres disagree.
type dialect struct {
	name       string
	driverName string
	dsn        func(string) string
	// numbered placeholders ($1, $2 ...) instead of "?"
	numbered bool
	// addColumn renders an ALTER TABLE that adds a column.
	addColumn func(table, column, columnType string) string
	// isDuplicateColumn reports an ALTER error that means the column exists.
	isDuplicateColumn func(error) bool
	isUniqueViolation func(error) bool
	maxOpenConns      int
}

var sqliteDialect = dialect{
	name:       DriverSQLite,
	driverName: "sqlite",
	dsn: func(path string) string {
		if strings.HasPrefix(path, "file:") {
			return path
		}
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	},
	addColumn: func(table, column, columnType string) string {
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnType)
	},
	isDuplicateColumn: func(err error) bool {
		return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column")
	},
	isUniqueViolation: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
	// A single connection serialises writers, which SQLite needs anyway.
	maxOpenConns: 1,
}

var postgresDialect = dialect{
	name:       DriverPostgres,
	driverName: "pgx",
	dsn:        func(url string) string { return url },
	numbered:   true,
	addColumn: func(table, column, columnType string) string {
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", table, column, columnType)
	},
	isDuplicateColumn: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "42701"
	},
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite3":
		return sqliteDialect, nil
	case DriverPostgres, "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// rebind rewrites "?" placeholders for dialects using numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
