package categories

import (
	"context"

	"appwini/internal/db"
	"appwini/internal/domain/category"
	"appwini/internal/util"
)

type Repo struct {
	db *db.DB
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{db: db}
}

// List derives categories from the distinct product types.
func (r *Repo) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT LOWER(type), COUNT(*)
		FROM products
		GROUP BY LOWER(type)
		ORDER BY LOWER(type) ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []category.Category{}
	for rows.Next() {
		var c category.Category
		if err := rows.Scan(&c.Name, &c.ProductCount); err != nil {
			return nil, err
		}
		c.Slug = util.Slugify(c.Name)
		out = append(out, c)
	}
	return out, rows.Err()
}
