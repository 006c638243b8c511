package cart

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"appwini/internal/apiclient"
	"appwini/internal/logging"
)

// ErrItemBusy is returned when a mutation for the same item is still in
// flight. No request is sent.
var ErrItemBusy = errors.New("cart item is being updated")

type Service struct {
	api    *apiclient.Client
	strict bool
	log    *zap.Logger

	mu   sync.Mutex
	busy map[string]struct{}
}

type Option func(*Service)

func WithStrictParsing(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logging.OrNop(l) }
}

func NewService(api *apiclient.Client, opts ...Option) *Service {
	s := &Service{api: api, log: zap.NewNop(), busy: map[string]struct{}{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func itemPath(id string) string {
	return "/cart/" + url.PathEscape(id) + "/"
}

// IDValue sends numeric ids as JSON numbers and anything else as a string.
func IDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func (s *Service) List(ctx context.Context) ([]Item, error) {
	b, err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/cart/"})
	if err != nil {
		return []Item{}, err
	}
	items, err := Decode(b, s.strict)
	if err != nil {
		s.log.Warn("cart response rejected", zap.Error(err))
		return []Item{}, err
	}
	return items, nil
}

func (s *Service) Add(ctx context.Context, productID string, qty int) error {
	if productID == "" {
		return apiclient.Invalid("product", "choose a product")
	}
	if qty < 1 {
		return apiclient.Invalid("quantity", "quantity must be at least 1")
	}
	release, err := s.acquire(productID)
	if err != nil {
		return err
	}
	defer release()

	return s.api.Post(ctx, "/cart/", map[string]any{
		"product":  IDValue(productID),
		"quantity": qty,
	}, nil)
}

func (s *Service) UpdateQuantity(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return apiclient.Invalid("quantity", "quantity must be at least 1")
	}
	release, err := s.acquire(itemID)
	if err != nil {
		return err
	}
	defer release()
	return s.api.Patch(ctx, itemPath(itemID), map[string]any{"quantity": qty}, nil)
}

func (s *Service) Increase(ctx context.Context, it Item) error {
	return s.UpdateQuantity(ctx, it.ID, it.Quantity+1)
}

// Decrease lowers the quantity by one; a line at quantity 1 is removed.
func (s *Service) Decrease(ctx context.Context, it Item) error {
	if it.Quantity <= 1 {
		return s.Remove(ctx, it.ID)
	}
	return s.UpdateQuantity(ctx, it.ID, it.Quantity-1)
}

func (s *Service) Remove(ctx context.Context, itemID string) error {
	release, err := s.acquire(itemID)
	if err != nil {
		return err
	}
	defer release()
	return s.api.Delete(ctx, itemPath(itemID))
}

func (s *Service) Clear(ctx context.Context) error {
	return s.api.Delete(ctx, "/cart/")
}

// Busy reports whether a mutation for id is in flight.
func (s *Service) Busy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.busy[id]
	return ok
}

func (s *Service) acquire(id string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[id]; ok {
		return nil, ErrItemBusy
	}
	s.busy[id] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.busy, id)
		s.mu.Unlock()
	}, nil
}
