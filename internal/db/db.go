package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// DB is a database/sql handle that knows which placeholder style its driver
// expects. Queries are written with '?' and rebound for Postgres.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// DialectFor picks the driver from the URL scheme. Everything that is not a
// postgres URL is treated as a SQLite DSN.
func DialectFor(databaseURL string) Dialect {
	u := strings.ToLower(databaseURL)
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return Postgres
	}
	return SQLite
}

func Open(databaseURL string) (*DB, error) {
	d := DialectFor(databaseURL)
	conn, err := sql.Open(string(d), databaseURL)
	if err != nil {
		return nil, err
	}

	switch d {
	case Postgres:
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(time.Hour)
	case SQLite:
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases shared
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	return &DB{DB: conn, Dialect: d}, nil
}

// Rebind rewrites '?' placeholders into $n for Postgres.
func (db *DB) Rebind(q string) string {
	if db.Dialect != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Rebind(q), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Rebind(q), args...)
}

func (db *DB) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Rebind(q), args...)
}
