package product

import "time"

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	CacaoPercent float64   `json:"cacao_percent"`
	Price        float64   `json:"price"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Stock        int       `json:"stock"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter narrows product listings. Nil fields are not applied.
type Filter struct {
	Type     *string
	CacaoMin *float64
	CacaoMax *float64
}
