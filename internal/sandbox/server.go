// Package sandbox is an in-memory stand-in for the external commerce API:
// cart, orders, shipment tracking, addresses, geo lookups, profile and role
// requests. Its order endpoint can be told to accept only one body shape so
// the client's payload probing can be exercised.
package sandbox

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"appwini/internal/logging"
)

type Options struct {
	// OrderAddressKey and OrderPaymentKey restrict the accepted order body
	// to one key name each ("address" or "address_id", "payment_method" or
	// "payment_type"). Empty accepts either.
	OrderAddressKey string
	OrderPaymentKey string
	// OrderRequiresItems rejects order bodies without an items array.
	OrderRequiresItems bool

	// AutoClearCart empties the cart when an order is created.
	AutoClearCart bool

	// FailAssign makes assign-driver answer 503.
	FailAssign bool

	// VerifyToken checks bearer tokens. Nil accepts any non-empty token.
	VerifyToken func(token string) error

	Logger *zap.Logger
}

type Server struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time

	mu        sync.Mutex
	products  map[int64]product
	cart      []cartLine
	addresses []*addressRec
	orders    map[string]*orderRec
	orderSeq  []string
	profile   profile
	password  string
	roles     []*roleRequest
	nextID    int64

	orderAttempts int
	assignCalls   int
}

func New(opts Options) *Server {
	s := &Server{
		opts:      opts,
		log:       logging.OrNop(opts.Logger),
		now:       time.Now,
		products:  map[int64]product{},
		orders:    map[string]*orderRec{},
		addresses: []*addressRec{},
		roles:     []*roleRequest{},
		profile: profile{
			ID:    1,
			Name:  "Cliente Demo",
			Email: "demo@appwini.ec",
			Role:  "customer",
		},
		password: "demo1234",
		nextID:   100,
	}
	for _, p := range defaultProducts {
		s.products[p.ID] = p
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, logging.HTTPLogger(s.log), middleware.Recoverer)
	r.Use(s.requireToken)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.listCart)
		r.Post("/", s.addToCart)
		r.Delete("/", s.clearCart)
		r.Patch("/{id}/", s.updateCartLine)
		r.Delete("/{id}/", s.removeCartLine)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.Post("/", s.createOrder)
		r.Get("/{id}/", s.getOrder)
		r.Get("/{id}/tracking/", s.getTracking)
		r.Post("/{id}/assign-driver/", s.assignDriver)
	})

	r.Route("/addresses", func(r chi.Router) {
		r.Get("/", s.listAddresses)
		r.Post("/", s.createAddress)
		r.Patch("/{id}/", s.updateAddress)
		r.Delete("/{id}/", s.deleteAddress)
	})

	r.Route("/geo", func(r chi.Router) {
		r.Get("/autocomplete/", s.autocomplete)
		r.Get("/geocode/", s.geocode)
		r.Post("/validate-address/", s.validateAddress)
		r.Post("/estimate-route/", s.estimateRoute)
	})

	r.Get("/me/", s.getProfile)
	r.Patch("/me/", s.updateProfile)
	r.Post("/me/change-password/", s.changePassword)

	r.Route("/role-requests", func(r chi.Router) {
		r.Get("/", s.listRoleRequests)
		r.Post("/", s.createRoleRequest)
		r.Delete("/{id}/", s.cancelRoleRequest)
	})

	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if !strings.HasPrefix(h, "Bearer ") || token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		if s.opts.VerifyToken != nil {
			if err := s.opts.VerifyToken(token); err != nil {
				writeError(w, http.StatusUnauthorized, "Given token not valid for any token type")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// OrderAttempts counts POST /orders/ calls, accepted or not.
func (s *Server) OrderAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderAttempts
}

// AssignCalls counts POST assign-driver calls.
func (s *Server) AssignCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignCalls
}

func (s *Server) SetFailAssign(fail bool) {
	s.mu.Lock()
	s.opts.FailAssign = fail
	s.mu.Unlock()
}

func (s *Server) CartSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart)
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

// writeFieldError answers with the per-field error shape the commerce API
// uses for form validation.
func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string][]string{field: {msg}})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

var defaultProducts = []product{
	{ID: 1, Name: "Esmeraldas 70%", Price: decimal.RequireFromString("4.50")},
	{ID: 2, Name: "Los Rios 85%", Price: decimal.RequireFromString("5.00")},
	{ID: 3, Name: "Arriba Puro 100%", Price: decimal.RequireFromString("5.75")},
	{ID: 4, Name: "Leche Andina 45%", Price: decimal.RequireFromString("3.50")},
	{ID: 5, Name: "Leche Clasica 38%", Price: decimal.RequireFromString("3.25")},
	{ID: 6, Name: "Blanco Vainilla 30%", Price: decimal.RequireFromString("3.00")},
	{ID: 7, Name: "Nibs de Cacao", Price: decimal.RequireFromString("6.20")},
}
