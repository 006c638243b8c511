// Package cart turns the commerce API's cart payloads into a canonical list
// of items and drives cart mutations.
package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"appwini/internal/apiclient"
)

const maxQuantity = 9999

type Item struct {
	// ID identifies the cart line; it falls back to the product id when the
	// API does not expose line ids.
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Summary struct {
	Total            decimal.Decimal `json:"total"`
	TotalItems       int             `json:"total_items"`
	DistinctProducts int             `json:"distinct_products"`
}

func Summarize(items []Item) Summary {
	s := Summary{Total: decimal.Zero, DistinctProducts: len(items)}
	for _, it := range items {
		s.Total = s.Total.Add(it.Subtotal())
		s.TotalItems += it.Quantity
	}
	return s
}

// Normalize accepts any decoded cart payload. Unknown shapes and malformed
// elements yield an empty (or shorter) list; it never fails.
func Normalize(raw any) []Item {
	list, ok := apiclient.Unwrap(raw)
	if !ok {
		return []Item{}
	}
	out := make([]Item, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, itemFrom(m))
	}
	return out
}

// Decode parses a cart response body. Strict mode rejects anything but the
// documented {"items": [...]} envelope. A body that is not JSON yields an
// empty cart and an error wrapping apiclient.ErrMalformedBody.
func Decode(body []byte, strict bool) ([]Item, error) {
	if len(bytes.TrimSpace(body)) == 0 && !strict {
		return []Item{}, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return []Item{}, apiclient.Malformed(err)
	}
	if strict {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, apiclient.ErrUnknownShape
		}
		if _, ok := m["items"].([]any); !ok {
			return nil, apiclient.ErrUnknownShape
		}
	}
	return Normalize(v), nil
}

func itemFrom(m map[string]any) Item {
	product, _ := m["product"].(map[string]any)

	it := Item{
		ProductID: firstID(m["product_id"], m["product"], lookup(product, "id")),
		Name:      firstString(m["name"], m["product_name"], lookup(product, "name")),
		Quantity:  coerceQuantity(firstPresent(m["quantity"], m["qty"])),
		UnitPrice: coercePrice(firstPresent(m["unit_price"], m["price"], lookup(product, "price"))),
	}
	it.ID = firstID(m["id"], it.ProductID)
	return it
}

func lookup(m map[string]any, k string) any {
	if m == nil {
		return nil
	}
	return m[k]
}

func firstPresent(vs ...any) any {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstID(vs ...any) string {
	for _, v := range vs {
		if s := idString(v); s != "" {
			return s
		}
	}
	return ""
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstString(vs ...any) string {
	for _, v := range vs {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceQuantity truncates to an integer and clamps to [1, maxQuantity].
func coerceQuantity(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 1
	}
	f = math.Trunc(f)
	switch {
	case f < 1:
		return 1
	case f > maxQuantity:
		return maxQuantity
	}
	return int(f)
}

func coercePrice(v any) decimal.Decimal {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	f, ok := toFloat(v)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
