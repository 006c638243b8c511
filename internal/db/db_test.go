package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, Postgres, DialectFor("postgres://u:p@localhost/app"))
	assert.Equal(t, Postgres, DialectFor("POSTGRESQL://localhost/app"))
	assert.Equal(t, SQLite, DialectFor("file:app.db"))
	assert.Equal(t, SQLite, DialectFor(":memory:"))
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	assert.Equal(t, "SELECT * FROM p WHERE a = $1 AND b >= $2", pg.Rebind("SELECT * FROM p WHERE a = ? AND b >= ?"))

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, "a = ?", lite.Rebind("a = ?"))
}

func TestMigrateAndSeed(t *testing.T) {
	ctx := context.Background()
	d, err := Open(":memory:")
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, Migrate(ctx, d))
	// idempotent
	require.NoError(t, Migrate(ctx, d))

	n, err := Seed(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, len(seedProducts), n)

	n, err = Seed(ctx, d)
	require.NoError(t, err)
	assert.Zero(t, n, "second seed must not duplicate rows")
}
