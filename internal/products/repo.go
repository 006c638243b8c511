package products

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"appwini/internal/db"
	"appwini/internal/domain/product"
)

var ErrNotFound = errors.New("product not found")

type Repo struct {
	db *db.DB
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{db: db}
}

const productColumns = `id, name, type, cacao_percent, price, description, image_url, stock, created_at`

func scanProduct(s interface{ Scan(...any) error }, p *product.Product) error {
	return s.Scan(&p.ID, &p.Name, &p.Type, &p.CacaoPercent, &p.Price, &p.Description, &p.ImageURL, &p.Stock, &p.CreatedAt)
}

// buildListQuery translates the optional filters into WHERE clauses.
func buildListQuery(f product.Filter) (string, []any) {
	var where []string
	var args []any
	if f.Type != nil && strings.TrimSpace(*f.Type) != "" {
		where = append(where, "LOWER(type) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*f.Type)))
	}
	if f.CacaoMin != nil {
		where = append(where, "cacao_percent >= ?")
		args = append(args, *f.CacaoMin)
	}
	if f.CacaoMax != nil {
		where = append(where, "cacao_percent <= ?")
		args = append(args, *f.CacaoMax)
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name ASC"
	return q, args
}

func (r *Repo) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	q, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []product.Product{}
	for rows.Next() {
		var p product.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (product.Product, error) {
	var p product.Product
	err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id), &p)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, ErrNotFound
	}
	return p, err
}

// SetStock overwrites the stock count of one product and returns it.
func (r *Repo) SetStock(ctx context.Context, id int64, stock int) (product.Product, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return product.Product{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return product.Product{}, ErrNotFound
	}
	return r.Get(ctx, id)
}
