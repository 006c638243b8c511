package sandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t   *testing.T
	srv *Server
	h   http.Handler
}

func newHarness(t *testing.T, opts Options) *harness {
	s := New(opts)
	return &harness{t: t, srv: s, h: s.Handler()}
}

func (h *harness) do(method, path string, body any) (int, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer test")
	w := httptest.NewRecorder()
	h.h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func TestRequiresToken(t *testing.T) {
	s := New(Options{VerifyToken: func(tok string) error {
		if tok != "good" {
			return errors.New("bad token")
		}
		return nil
	}})
	h := s.Handler()

	for _, tc := range []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/cart/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "header %q", tc.header)
	}
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t, Options{})

	code, _ := h.do(http.MethodPost, "/cart/", map[string]any{"product": 1, "quantity": 2})
	require.Equal(t, http.StatusCreated, code)
	code, _ = h.do(http.MethodPost, "/cart/", map[string]any{"product": "1", "quantity": 1})
	require.Equal(t, http.StatusOK, code, "same product merges into one line")
	code, _ = h.do(http.MethodPost, "/cart/", map[string]any{"product": 99, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, code)

	code, body := h.do(http.MethodGet, "/cart/", nil)
	require.Equal(t, http.StatusOK, code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, 3.0, line["quantity"])
	assert.Equal(t, "4.50", line["unit_price"])

	id := int64(line["id"].(float64))
	code, _ = h.do(http.MethodPatch, "/cart/"+itoa(id)+"/", map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodDelete, "/cart/"+itoa(id)+"/", nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, 0, h.srv.CartSize())
}

func TestCreateOrder_ShapeRestrictions(t *testing.T) {
	h := newHarness(t, Options{OrderAddressKey: "address_id", OrderPaymentKey: "payment_type", AutoClearCart: true})

	code, addr := h.do(http.MethodPost, "/addresses/", map[string]any{"main_address": "Av. Amazonas", "city": "Quito"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, addr["is_default"], "first address becomes default")
	addrID := addr["id"]

	h.do(http.MethodPost, "/cart/", map[string]any{"product": 4, "quantity": 2})

	code, body := h.do(http.MethodPost, "/orders/", map[string]any{"address": addrID, "payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "address_id")

	code, body = h.do(http.MethodPost, "/orders/", map[string]any{"address_id": addrID, "payment_type": "bitcoin"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "payment_type")

	code, body = h.do(http.MethodPost, "/orders/", map[string]any{"address_id": addrID, "payment_type": "cash"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "7", body["total"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, 3, h.srv.OrderAttempts())
	assert.Equal(t, 0, h.srv.CartSize())
}

func TestTrackingLifecycle(t *testing.T) {
	h := newHarness(t, Options{})
	_, addr := h.do(http.MethodPost, "/addresses/", map[string]any{"main_address": "Av. Amazonas", "city": "Quito"})
	h.do(http.MethodPost, "/cart/", map[string]any{"product": 1, "quantity": 1})
	code, order := h.do(http.MethodPost, "/orders/", map[string]any{"address_id": addr["id"], "payment_method": "cash"})
	require.Equal(t, http.StatusCreated, code)
	id := order["id"].(string)

	_, tr := h.do(http.MethodGet, "/orders/"+id+"/tracking/?limit=5", nil)
	assert.Nil(t, tr["driver"])
	assert.Equal(t, "pending", tr["status"])

	h.srv.SetFailAssign(true)
	code, _ = h.do(http.MethodPost, "/orders/"+id+"/assign-driver/", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.srv.SetFailAssign(false)
	code, tr = h.do(http.MethodPost, "/orders/"+id+"/assign-driver/", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, tr["driver"])
	assert.Equal(t, 2, h.srv.AssignCalls())

	require.NoError(t, h.srv.MoveDriver(id, -0.19, -78.48))
	require.NoError(t, h.srv.MoveDriver(id, -0.18, -78.47))
	_, tr = h.do(http.MethodGet, "/orders/"+id+"/tracking/?limit=1", nil)
	assert.Equal(t, "en_route", tr["status"])
	hist := tr["history"].([]any)
	require.Len(t, hist, 1)
	assert.Equal(t, -0.18, hist[0].(map[string]any)["lat"], "newest point first")

	assert.ErrorIs(t, h.srv.MoveDriver("missing", 1, 1), ErrUnknownOrder)
}

func TestSimulateStep(t *testing.T) {
	h := newHarness(t, Options{})
	lat, lng := -0.2006, -78.4918
	_, addr := h.do(http.MethodPost, "/addresses/", map[string]any{"main_address": "Av. Amazonas", "city": "Quito", "latitude": lat, "longitude": lng})
	h.do(http.MethodPost, "/cart/", map[string]any{"product": 1, "quantity": 1})
	_, order := h.do(http.MethodPost, "/orders/", map[string]any{"address": addr["id"], "payment_type": "transfer"})
	id := order["id"].(string)
	h.do(http.MethodPost, "/orders/"+id+"/assign-driver/", nil)

	for i := 0; i < 3; i++ {
		h.srv.step()
	}
	_, tr := h.do(http.MethodGet, "/orders/"+id+"/tracking/", nil)
	assert.Len(t, tr["history"], 3)
	assert.Equal(t, "en_route", tr["status"])
}

func TestRoleRequests(t *testing.T) {
	h := newHarness(t, Options{})

	code, _ := h.do(http.MethodPost, "/role-requests/", map[string]any{"role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, rr := h.do(http.MethodPost, "/role-requests/", map[string]any{"role": "driver", "reason": "tengo moto"})
	require.Equal(t, http.StatusCreated, code)
	code, body := h.do(http.MethodPost, "/role-requests/", map[string]any{"role": "driver"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "you already have a pending request for this role", body["detail"])

	require.True(t, h.srv.ResolveRoleRequest(rr["id"].(string), true))
	code, _ = h.do(http.MethodDelete, "/role-requests/"+rr["id"].(string)+"/", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	_, me := h.do(http.MethodGet, "/me/", nil)
	assert.Equal(t, "driver", me["role"])
}

func TestGeoEndpoints(t *testing.T) {
	h := newHarness(t, Options{})

	code, body := h.do(http.MethodGet, "/geo/autocomplete/?q=amazonas&country=ec&limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, body = h.do(http.MethodGet, "/geo/geocode/?place_id=pl-cue-larga", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Cuenca", body["city"])

	code, _ = h.do(http.MethodGet, "/geo/geocode/?place_id=nowhere", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = h.do(http.MethodPost, "/geo/estimate-route/", map[string]any{
		"origin":      map[string]float64{"lat": -0.2006, "lng": -78.4918},
		"destination": map[string]float64{"lat": -0.1765, "lng": -78.4794},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Greater(t, body["distance_km"].(float64), 2.0)
	assert.Less(t, body["distance_km"].(float64), 4.0)
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, haversineKm(1, 1, 1, 1), 1e-9)
	// one degree of latitude
	assert.InDelta(t, 111.19, haversineKm(0, 0, 1, 0), 0.01)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
