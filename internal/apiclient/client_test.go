package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_NoSessionSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, StaticToken(""))
	err := c.Get(context.Background(), "/cart/", nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)

	c = New(srv.URL, nil)
	err = c.Get(context.Background(), "/cart/", nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, calls.Load())
}

func TestDo_BearerAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "/api/orders/", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", StaticToken("tok-1"))
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Get(context.Background(), "/orders/", map[string][]string{"limit": {"5"}}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDo_PublicSkipsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Do(context.Background(), Request{Method: http.MethodGet, Path: "/health", Public: true})
	assert.NoError(t, err)
}

func TestDo_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"address_id": ["This field is required."]}`))
	}))
	defer srv.Close()

	err := New(srv.URL, StaticToken("t")).Post(context.Background(), "/orders/", map[string]any{}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "address_id: This field is required.", se.Error())
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestExtractMessage(t *testing.T) {
	cases := map[string]string{
		`{"detail":"Not found."}`:                    "Not found.",
		`{"error":"boom","message":"ignored"}`:        "boom",
		`{"non_field_errors":["Cart is empty"]}`:      "Cart is empty",
		`["first","second"]`:                         "first",
		`plain text`:                                 "plain text",
		`<html>502 Bad Gateway</html>`:               "",
		``:                                           "",
		`{"b":["second key"],"a":{"inner":"nested"}}`: "a: inner: nested",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractMessage([]byte(in)), "body %q", in)
	}
}

func TestDecodeList(t *testing.T) {
	type row struct {
		ID int `json:"id"`
	}

	t.Run("lenient shapes", func(t *testing.T) {
		for _, body := range []string{
			`[{"id":1},{"id":2}]`,
			`{"items":[{"id":1},{"id":2}]}`,
			`{"results":[{"id":1},{"id":2}],"count":2}`,
			`{"data":{"items":[{"id":1},{"id":2}]}}`,
		} {
			var out []row
			require.NoError(t, DecodeList([]byte(body), false, &out), body)
			assert.Len(t, out, 2, body)
		}
	})

	t.Run("lenient degrades to empty", func(t *testing.T) {
		for _, body := range []string{`{"nope":1}`, `42`, `[1,"a"]`, ``} {
			var out []row
			require.NoError(t, DecodeList([]byte(body), false, &out), body)
			assert.Empty(t, out, body)
		}
	})

	t.Run("non JSON body is reported", func(t *testing.T) {
		for _, strict := range []bool{false, true} {
			out := []row{{ID: 9}}
			err := DecodeList([]byte(`<html>502 Bad Gateway</html>`), strict, &out)
			assert.ErrorIs(t, err, ErrMalformedBody)
			assert.NotNil(t, out)
			assert.Empty(t, out)
		}
	})

	t.Run("strict", func(t *testing.T) {
		var out []row
		require.NoError(t, DecodeList([]byte(`{"items":[{"id":3}]}`), true, &out))
		assert.Equal(t, []row{{ID: 3}}, out)

		err := DecodeList([]byte(`[{"id":3}]`), true, &out)
		assert.ErrorIs(t, err, ErrUnknownShape)
	})
}
