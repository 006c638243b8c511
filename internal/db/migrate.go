package db

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		type          TEXT NOT NULL,
		cacao_percent REAL NOT NULL DEFAULT 0,
		price         REAL NOT NULL DEFAULT 0,
		description   TEXT NOT NULL DEFAULT '',
		image_url     TEXT NOT NULL DEFAULT '',
		stock         INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_type ON products(type)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		type          TEXT NOT NULL,
		cacao_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		price         NUMERIC(10,2) NOT NULL DEFAULT 0,
		description   TEXT NOT NULL DEFAULT '',
		image_url     TEXT NOT NULL DEFAULT '',
		stock         INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_type ON products(type)`,
}

func Migrate(ctx context.Context, db *DB) error {
	stmts := sqliteSchema
	if db.Dialect == Postgres {
		stmts = postgresSchema
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

type seedProduct struct {
	Name        string
	Type        string
	Cacao       float64
	Price       float64
	Description string
	Stock       int
}

var seedProducts = []seedProduct{
	{"Esmeraldas 70%", "dark", 70, 4.50, "Single origin Esmeraldas bar, fruity finish", 40},
	{"Manabí 85%", "dark", 85, 5.25, "Intense dark bar from Manabí cacao", 25},
	{"Arriba Nacional 100%", "dark", 100, 6.00, "Unsweetened Nacional cacao", 10},
	{"Leche Andina 45%", "milk", 45, 3.75, "Creamy milk chocolate", 60},
	{"Leche con Maní 38%", "milk", 38, 3.50, "Milk chocolate with roasted peanuts", 55},
	{"Blanco Vainilla", "white", 30, 3.25, "White chocolate with Ecuadorian vanilla", 30},
	{"Nibs de Cacao", "nibs", 100, 5.00, "Roasted cacao nibs, 200 g", 20},
}

// Seed inserts the sample catalog when the products table is empty.
func Seed(ctx context.Context, db *DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	q := db.Rebind(`
		INSERT INTO products (name, type, cacao_percent, price, description, stock)
		VALUES (?,?,?,?,?,?)
	`)
	for _, p := range seedProducts {
		if _, err := tx.ExecContext(ctx, q, p.Name, p.Type, p.Cacao, p.Price, p.Description, p.Stock); err != nil {
			return 0, fmt.Errorf("seed insert failed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(seedProducts), nil
}
