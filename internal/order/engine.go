package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"appwini/internal/apiclient"
	"appwini/internal/cart"
	"appwini/internal/logging"
)

const fallbackMessage = "could not create the order"

type Engine struct {
	api    *apiclient.Client
	carts  *cart.Service
	log    *zap.Logger
	strict bool

	pinned   *Schema
	inFlight atomic.Bool

	mu     sync.Mutex
	winner int // index into Schemas of the last accepted shape, -1 if none
}

type Option func(*Engine)

// WithPinnedSchema disables probing: only s is ever sent.
func WithPinnedSchema(s Schema) Option {
	return func(e *Engine) { e.pinned = &s }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(l) }
}

func WithStrictParsing(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

func NewEngine(api *apiclient.Client, carts *cart.Service, opts ...Option) *Engine {
	e := &Engine{api: api, carts: carts, log: zap.NewNop(), winner: -1}
	for _, o := range opts {
		o(e)
	}
	return e
}

// plan returns the schemas to try for one submission. The shape that
// worked last time goes first.
func (e *Engine) plan() []int {
	e.mu.Lock()
	w := e.winner
	e.mu.Unlock()

	order := make([]int, 0, len(Schemas))
	if w >= 0 {
		order = append(order, w)
	}
	for i := range Schemas {
		if i != w {
			order = append(order, i)
		}
	}
	return order
}

// Submit validates r, then posts candidate bodies to /orders/ until one is
// accepted. The created order is returned even if the cart cleanup that
// follows fails.
func (e *Engine) Submit(ctx context.Context, r Request) (Order, error) {
	if err := r.Validate(); err != nil {
		return Order{}, err
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return Order{}, ErrSubmissionInFlight
	}
	defer e.inFlight.Store(false)

	if e.pinned != nil {
		o, err := e.post(ctx, e.pinned.Payload(r))
		if err != nil {
			return Order{}, finalError(err)
		}
		e.cleanupCart(ctx)
		return o, nil
	}

	var lastErr error
	for _, i := range e.plan() {
		if err := ctx.Err(); err != nil {
			return Order{}, err
		}
		o, err := e.post(ctx, Schemas[i].Payload(r))
		if err != nil {
			if errors.Is(err, apiclient.ErrNoSession) || ctx.Err() != nil {
				return Order{}, err
			}
			e.log.Debug("order candidate rejected", zap.Stringer("schema", Schemas[i]), zap.Error(err))
			lastErr = err
			continue
		}
		e.mu.Lock()
		e.winner = i
		e.mu.Unlock()
		e.log.Info("order created", zap.String("order_id", o.ID.String()), zap.Stringer("schema", Schemas[i]))

		e.cleanupCart(ctx)
		return o, nil
	}
	return Order{}, finalError(lastErr)
}

// post sends one candidate. Any 2xx means the order exists, so a body that
// does not decode is logged and whatever could be read is returned.
func (e *Engine) post(ctx context.Context, p Payload) (Order, error) {
	body, err := e.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/orders/", Body: p})
	if err != nil {
		return Order{}, err
	}
	o, err := decodeCreated(body)
	if err != nil {
		e.log.Warn("order created but response unreadable", zap.String("order_id", o.ID.String()), zap.Error(err))
	}
	return o, nil
}

func decodeCreated(body []byte) (Order, error) {
	var o Order
	if len(bytes.TrimSpace(body)) == 0 {
		return o, nil
	}
	err := json.Unmarshal(body, &o)
	if err == nil {
		return o, nil
	}
	var head struct {
		ID     apiclient.ID `json:"id"`
		Status string       `json:"status"`
	}
	if json.Unmarshal(body, &head) == nil {
		return Order{ID: head.ID, Status: head.Status}, err
	}
	return Order{}, err
}

// finalError keeps the last failure when it carries a message and falls
// back to a generic one otherwise.
func finalError(err error) error {
	if err == nil {
		return errors.New(fallbackMessage)
	}
	if errors.Is(err, apiclient.ErrNoSession) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Message == "" {
		se.Message = fallbackMessage
	}
	return err
}

// cleanupCart clears the cart unless the server already did. Failures are
// logged and dropped: the order exists either way.
func (e *Engine) cleanupCart(ctx context.Context) {
	if e.carts == nil {
		return
	}
	items, err := e.carts.List(ctx)
	if err != nil {
		e.log.Warn("cart refresh after order failed", zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}
	if err := e.carts.Clear(ctx); err != nil {
		e.log.Warn("cart clear after order failed", zap.Error(err))
	}
}

func (e *Engine) List(ctx context.Context) ([]Order, error) {
	body, err := e.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/orders/"})
	if err != nil {
		return []Order{}, err
	}
	out := []Order{}
	if err := apiclient.DecodeList(body, e.strict, &out); err != nil {
		return []Order{}, err
	}
	return out, nil
}

func (e *Engine) Get(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, apiclient.Invalid("id", "order id is required")
	}
	var o Order
	err := e.api.Get(ctx, "/orders/"+url.PathEscape(id)+"/", nil, &o)
	return o, err
}
