package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"appwini/internal/apiclient"
)

var ErrUnknownOrder = errors.New("sandbox: unknown order")

type cartLine struct {
	ID        int64
	ProductID int64
	Quantity  int
}

type orderLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderRec struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	AddressID     string          `json:"address_id"`
	PaymentMethod string          `json:"payment_method"`
	Instructions  string          `json:"delivery_instructions"`
	Total         decimal.Decimal `json:"total"`
	Items         []orderLine     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`

	ship shipment
}

type driver struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
}

type point struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

type shipment struct {
	Status     string
	Driver     *driver
	ETAMinutes *int
	CurrentLat *float64
	CurrentLng *float64
	History    []point // oldest first
}

// depot is where simulated drivers start, central Quito.
var depot = point{Lat: -0.1807, Lng: -78.4678}

func (s *Server) renderCart() []map[string]any {
	out := make([]map[string]any, 0, len(s.cart))
	for _, l := range s.cart {
		p := s.products[l.ProductID]
		out = append(out, map[string]any{
			"id": l.ID,
			"product": map[string]any{
				"id":    p.ID,
				"name":  p.Name,
				"price": p.Price.StringFixed(2),
			},
			"quantity":   l.Quantity,
			"unit_price": p.Price.StringFixed(2),
		})
	}
	return out
}

func (s *Server) listCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": s.renderCart()})
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product  apiclient.ID `json:"product"`
		Quantity int          `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Quantity < 1 {
		writeFieldError(w, "quantity", "Ensure this value is greater than or equal to 1.")
		return
	}
	pid, err := strconv.ParseInt(req.Product.String(), 10, 64)
	if err != nil {
		writeFieldError(w, "product", "Invalid pk.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[pid]; !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	for i := range s.cart {
		if s.cart[i].ProductID == pid {
			s.cart[i].Quantity += req.Quantity
			writeJSON(w, http.StatusOK, map[string]any{"id": s.cart[i].ID, "quantity": s.cart[i].Quantity})
			return
		}
	}
	line := cartLine{ID: s.id(), ProductID: pid, Quantity: req.Quantity}
	s.cart = append(s.cart, line)
	writeJSON(w, http.StatusCreated, map[string]any{"id": line.ID, "quantity": line.Quantity})
}

func (s *Server) cartIndex(r *http.Request) int {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1
	}
	for i, l := range s.cart {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) updateCartLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Quantity < 1 {
		writeFieldError(w, "quantity", "Ensure this value is greater than or equal to 1.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.cartIndex(r)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	s.cart[i].Quantity = req.Quantity
	writeJSON(w, http.StatusOK, map[string]any{"id": s.cart[i].ID, "quantity": req.Quantity})
}

func (s *Server) removeCartLine(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.cartIndex(r)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	s.cart = append(s.cart[:i], s.cart[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.cart = nil
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// pick returns the value and name of the first key present in body.
func pick(body map[string]any, keys ...string) (any, string) {
	for _, k := range keys {
		if v, ok := body[k]; ok && v != nil {
			return v, k
		}
	}
	return nil, ""
}

func scalarID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.orderAttempts++
	opts := s.opts
	s.mu.Unlock()

	var body map[string]any
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	addrVal, addrKey := pick(body, "address", "address_id")
	if want := opts.OrderAddressKey; want != "" && addrKey != want {
		writeFieldError(w, want, "This field is required.")
		return
	}
	if addrKey == "" {
		writeFieldError(w, "address", "This field is required.")
		return
	}
	payVal, payKey := pick(body, "payment_method", "payment_type")
	if want := opts.OrderPaymentKey; want != "" && payKey != want {
		writeFieldError(w, want, "This field is required.")
		return
	}
	if payKey == "" {
		writeFieldError(w, "payment_method", "This field is required.")
		return
	}
	payment, _ := payVal.(string)
	if payment != "cash" && payment != "transfer" {
		writeFieldError(w, payKey, fmt.Sprintf("%q is not a valid choice.", payment))
		return
	}
	rawItems, hasItems := body["items"].([]any)
	if opts.OrderRequiresItems && !hasItems {
		writeFieldError(w, "items", "This field is required.")
		return
	}
	instructions, _ := body["delivery_instructions"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	addressID := scalarID(addrVal)
	if s.address(addressID) == nil {
		writeError(w, http.StatusBadRequest, "address not found")
		return
	}

	var lines []orderLine
	if hasItems {
		for _, e := range rawItems {
			m, _ := e.(map[string]any)
			pid, err := strconv.ParseInt(scalarID(m["product_id"]), 10, 64)
			p, ok := s.products[pid]
			if err != nil || !ok {
				writeFieldError(w, "items", "Invalid product.")
				return
			}
			qty, _ := m["quantity"].(float64)
			if qty < 1 {
				qty = 1
			}
			lines = append(lines, orderLine{ProductID: pid, Name: p.Name, Quantity: int(qty), UnitPrice: p.Price})
		}
	} else {
		for _, l := range s.cart {
			p := s.products[l.ProductID]
			lines = append(lines, orderLine{ProductID: p.ID, Name: p.Name, Quantity: l.Quantity, UnitPrice: p.Price})
		}
	}
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	o := &orderRec{
		ID:            uuid.NewString(),
		Status:        "pending",
		AddressID:     addressID,
		PaymentMethod: payment,
		Instructions:  instructions,
		Total:         total,
		Items:         lines,
		CreatedAt:     s.now().UTC(),
		ship:          shipment{Status: "pending"},
	}
	s.orders[o.ID] = o
	s.orderSeq = append(s.orderSeq, o.ID)
	if opts.AutoClearCart {
		s.cart = nil
	}
	s.log.Info("sandbox order created",
		zap.String("order_id", o.ID), zap.String("address_key", addrKey), zap.String("payment_key", payKey))
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*orderRec, 0, len(s.orderSeq))
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		out = append(out, s.orders[s.orderSeq[i]])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (o *orderRec) tracking(limit int) map[string]any {
	hist := make([]point, 0, len(o.ship.History))
	for i := len(o.ship.History) - 1; i >= 0 && len(hist) < limit; i-- {
		hist = append(hist, o.ship.History[i])
	}
	return map[string]any{
		"order_id":    o.ID,
		"status":      o.ship.Status,
		"driver":      o.ship.Driver,
		"eta_minutes": o.ship.ETAMinutes,
		"current_lat": o.ship.CurrentLat,
		"current_lng": o.ship.CurrentLng,
		"history":     hist,
	}
}

func (s *Server) getTracking(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeFieldError(w, "limit", "A valid integer is required.")
			return
		}
		limit = n
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, o.tracking(limit))
}

func (s *Server) assignDriver(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignCalls++
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	if s.opts.FailAssign {
		writeError(w, http.StatusServiceUnavailable, "no drivers available")
		return
	}
	if o.ship.Driver == nil {
		eta := 25
		o.ship.Driver = &driver{ID: 7, Name: "Carlos Andrade", Phone: "+593 99 123 4567", Vehicle: "Moto PBA-1234"}
		o.ship.ETAMinutes = &eta
		o.ship.Status = "assigned"
		o.Status = "assigned"
	}
	writeJSON(w, http.StatusOK, o.tracking(50))
}

// MoveDriver records a position for the order's driver and marks the
// shipment en route. The explicit current position is left unset so
// clients fall back to the history.
func (s *Server) MoveDriver(orderID string, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	o.ship.History = append(o.ship.History, point{Lat: lat, Lng: lng, RecordedAt: s.now().UTC()})
	if o.ship.Driver != nil {
		o.ship.Status = "en_route"
		o.Status = "en_route"
	}
	return nil
}

// SetCurrentPosition sets the explicit current_lat/current_lng pair.
func (s *Server) SetCurrentPosition(orderID string, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	o.ship.CurrentLat, o.ship.CurrentLng = &lat, &lng
	return nil
}

// OrderIDs returns the created order ids, oldest first.
func (s *Server) OrderIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.orderSeq...)
}

// Simulate moves every assigned driver a step from the depot towards the
// order's address on each tick, until ctx is done.
func (s *Server) Simulate(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.step()
		}
	}
}

func (s *Server) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		o := s.orders[id]
		if o.ship.Driver == nil || o.ship.Status == "delivered" {
			continue
		}
		dest := depot
		if a := s.address(o.AddressID); a != nil && a.Latitude != nil && a.Longitude != nil {
			dest = point{Lat: *a.Latitude, Lng: *a.Longitude}
		}
		from := depot
		if n := len(o.ship.History); n > 0 {
			from = o.ship.History[n-1]
		}
		next := point{
			Lat:        from.Lat + (dest.Lat-from.Lat)*0.2,
			Lng:        from.Lng + (dest.Lng-from.Lng)*0.2,
			RecordedAt: s.now().UTC(),
		}
		o.ship.History = append(o.ship.History, next)
		o.ship.Status, o.Status = "en_route", "en_route"

		remaining := haversineKm(next.Lat, next.Lng, dest.Lat, dest.Lng)
		eta := int(remaining / avgSpeedKmh * 60)
		o.ship.ETAMinutes = &eta
		if remaining < 0.05 {
			o.ship.Status, o.Status = "delivered", "delivered"
		}
	}
}
