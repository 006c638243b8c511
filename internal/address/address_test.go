package address

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appwini/internal/apiclient"
)

func TestPickDefault(t *testing.T) {
	list := []Address{
		{ID: "1", MainAddress: "Av. Amazonas", City: "Quito"},
		{ID: "2", MainAddress: "Calle Larga", City: "Cuenca", IsDefault: true},
		{ID: "3", MainAddress: "Malecon", City: "Guayaquil"},
	}
	got, ok := PickDefault(list)
	require.True(t, ok)
	assert.Equal(t, apiclient.ID("2"), got.ID)

	list[1].IsDefault = false
	got, ok = PickDefault(list)
	require.True(t, ok)
	assert.Equal(t, apiclient.ID("1"), got.ID)

	_, ok = PickDefault(nil)
	assert.False(t, ok)
}

func TestLabel(t *testing.T) {
	a := Address{MainAddress: "Av. Amazonas", SecondStreet: "Colon", Apartment: "4B", City: "Quito"}
	assert.Equal(t, "Av. Amazonas, y Colon, 4B, Quito", a.Label())
}

func TestBook_ListAndDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/", r.URL.Path)
		w.Write([]byte(`{"results":[
			{"id":1,"main_address":"Av. 6 de Diciembre","city":"Quito"},
			{"id":"b","main_address":"Av. Solano","city":"Cuenca","is_default":true},
			{"id":"c","main_address":"9 de Octubre","city":"Guayaquil"}
		]}`))
	}))
	defer srv.Close()

	list, err := NewBook(apiclient.New(srv.URL, apiclient.StaticToken("t")), false).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	picked, ok := PickDefault(list)
	require.True(t, ok)
	assert.Equal(t, apiclient.ID("b"), picked.ID)
}

func TestBook_CreateValidation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var in Input
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Address{ID: "new", MainAddress: in.MainAddress, City: in.City})
	}))
	defer srv.Close()
	book := NewBook(apiclient.New(srv.URL, apiclient.StaticToken("t")), false)

	_, err := book.Create(context.Background(), Input{MainAddress: "Av. Amazonas", City: "  "})
	assert.True(t, apiclient.IsValidation(err))
	assert.Equal(t, int32(0), calls.Load())

	got, err := book.Create(context.Background(), Input{MainAddress: " Av. Amazonas ", City: "Quito"})
	require.NoError(t, err)
	assert.Equal(t, apiclient.ID("new"), got.ID)
	assert.Equal(t, "Av. Amazonas", got.MainAddress)
	assert.Equal(t, int32(1), calls.Load())
}
