package cart

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appwini/internal/apiclient"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalize_Malformed(t *testing.T) {
	for _, raw := range []any{
		nil,
		"cart",
		42.0,
		true,
		map[string]any{},
		map[string]any{"total": 10.0},
		map[string]any{"items": "not a list"},
		map[string]any{"cart": map[string]any{"lines": []any{}}},
	} {
		got := Normalize(raw)
		assert.NotNil(t, got)
		assert.Empty(t, got, "%#v", raw)
	}
}

func TestNormalize_Shapes(t *testing.T) {
	want := []Item{
		{ID: "7", ProductID: "3", Name: "Esmeraldas 70%", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
	}
	line := `{"id":7,"product":{"id":3,"name":"Esmeraldas 70%","price":"4.50"},"quantity":"2"}`

	for _, body := range []string{
		`[` + line + `]`,
		`{"items":[` + line + `]}`,
		`{"results":[` + line + `]}`,
		`{"cart":[` + line + `]}`,
		`{"data":[` + line + `]}`,
		`{"cart":{"items":[` + line + `]}}`,
	} {
		got := Normalize(mustJSON(t, body))
		if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
			t.Errorf("Normalize(%s) mismatch (-want +got):\n%s", body, diff)
		}
	}
}

func TestNormalize_FieldFallbacks(t *testing.T) {
	got := Normalize(mustJSON(t, `[
		{"product_id": 9, "qty": 1.9, "price": 2},
		{"product": 12, "quantity": "abc", "unit_price": "bad"},
		{"id": "x-1", "quantity": -3, "unit_price": 1.25, "product_name": "Nibs"},
		"skip me",
		{"quantity": 1e12}
	]`))
	require.Len(t, got, 4)

	assert.Equal(t, "9", got[0].ID, "product id is the identity fallback")
	assert.Equal(t, 1, got[0].Quantity, "fractional quantities truncate")
	assert.True(t, got[0].UnitPrice.Equal(decimal.NewFromInt(2)))

	assert.Equal(t, "12", got[1].ID)
	assert.Equal(t, 1, got[1].Quantity)
	assert.True(t, got[1].UnitPrice.IsZero(), "bad price defaults to 0")

	assert.Equal(t, "x-1", got[2].ID)
	assert.Equal(t, 1, got[2].Quantity)
	assert.Equal(t, "Nibs", got[2].Name)

	assert.Equal(t, maxQuantity, got[3].Quantity)
}

func TestSummarize_EndToEnd(t *testing.T) {
	items := Normalize(mustJSON(t, `{"items":[
		{"id":1,"unit_price":"5.00","quantity":2},
		{"id":2,"unit_price":3.50,"quantity":"1"}
	]}`))

	s := Summarize(items)
	assert.Equal(t, "13.5", s.Total.String())
	assert.True(t, s.Total.Equal(decimal.RequireFromString("13.50")))
	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 2, s.DistinctProducts)
	assert.Equal(t, "10", items[0].Subtotal().String())
}

func TestSummarize_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := rng.Intn(6)
		var raw []any
		want := decimal.Zero
		wantQty := 0
		for j := 0; j < n; j++ {
			cents := rng.Intn(10000)
			qty := rng.Intn(5) + 1
			var q any = float64(qty) + rng.Float64()*0.99
			if rng.Intn(2) == 0 {
				q = decimal.NewFromInt(int64(qty)).String()
			}
			price := decimal.New(int64(cents), -2)
			raw = append(raw, map[string]any{"id": float64(j), "price": price.String(), "quantity": q})
			want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
			wantQty += qty
		}

		items := Normalize(raw)
		for _, it := range items {
			assert.GreaterOrEqual(t, it.Quantity, 1)
		}
		s := Summarize(items)
		assert.True(t, want.Equal(s.Total), "iteration %d: want %s got %s", i, want, s.Total)
		assert.Equal(t, wantQty, s.TotalItems)
		assert.Equal(t, n, s.DistinctProducts)
	}
}

func TestDecode(t *testing.T) {
	items, err := Decode([]byte(`{"items":[{"id":1,"price":1,"quantity":1}]}`), true)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = Decode([]byte(`[{"id":1}]`), true)
	assert.ErrorIs(t, err, apiclient.ErrUnknownShape)

	_, err = Decode([]byte(`{"results":[]}`), true)
	assert.ErrorIs(t, err, apiclient.ErrUnknownShape)

	items, err = Decode([]byte(`{"weird":true}`), false)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = Decode([]byte(`<html>`), false)
	assert.ErrorIs(t, err, apiclient.ErrMalformedBody)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	items, err = Decode(nil, false)
	require.NoError(t, err)
	assert.Empty(t, items)
}
