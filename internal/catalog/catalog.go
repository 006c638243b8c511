// Package catalog reads products and categories from the catalog API and
// keeps them in a short-lived in-memory cache.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"appwini/internal/apiclient"
	"appwini/internal/logging"
)

const DefaultTTL = 5 * time.Minute

type Product struct {
	ID           apiclient.ID    `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	CacaoPercent float64         `json:"cacao_percent"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	Stock        int             `json:"stock"`
}

type Category struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}

// Filter narrows a product listing. Zero values are not sent.
type Filter struct {
	Type     string
	CacaoMin *float64
	CacaoMax *float64
}

func (f Filter) normType() string { return strings.ToLower(strings.TrimSpace(f.Type)) }

func (f Filter) values() url.Values {
	v := url.Values{}
	if t := f.normType(); t != "" {
		v.Set("type", t)
	}
	if f.CacaoMin != nil {
		v.Set("cacaoMin", strconv.FormatFloat(*f.CacaoMin, 'f', -1, 64))
	}
	if f.CacaoMax != nil {
		v.Set("cacaoMax", strconv.FormatFloat(*f.CacaoMax, 'f', -1, 64))
	}
	return v
}

// key is stable for equal filters.
func (f Filter) key() string { return "products?" + f.values().Encode() }

type entry[T any] struct {
	val     T
	fetched time.Time
}

// Cache serves catalog reads. Entries expire after the TTL; concurrent
// misses for one key share a single request.
type Cache struct {
	api    *apiclient.Client
	ttl    time.Duration
	now    func() time.Time
	strict bool
	log    *zap.Logger
	group  singleflight.Group

	mu       sync.Mutex
	gen      uint64
	cats     *entry[[]Category]
	products map[string]entry[[]Product]
	types    map[string]string
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithStrictParsing(strict bool) Option {
	return func(c *Cache) { c.strict = strict }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = logging.OrNop(l) }
}

func NewCache(api *apiclient.Client, opts ...Option) *Cache {
	c := &Cache{
		api:      api,
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      zap.NewNop(),
		products: map[string]entry[[]Product]{},
		types:    map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) fresh(t time.Time) bool {
	return c.now().Sub(t) < c.ttl
}

func (c *Cache) Categories(ctx context.Context) ([]Category, error) {
	c.mu.Lock()
	if c.cats != nil && c.fresh(c.cats.fetched) {
		v := c.cats.val
		c.mu.Unlock()
		return v, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, _, err := c.shared(ctx, "categories", func(ctx context.Context) (any, error) {
		var out []Category
		if err := c.list(ctx, "/categories", nil, &out); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.cats = &entry[[]Category]{val: out, fetched: c.now()}
		}
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return []Category{}, err
	}
	return v.([]Category), nil
}

func (c *Cache) Products(ctx context.Context, f Filter) ([]Product, error) {
	key := f.key()
	c.mu.Lock()
	if e, ok := c.products[key]; ok && c.fresh(e.fetched) {
		c.mu.Unlock()
		return e.val, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, shared, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		var out []Product
		if err := c.list(ctx, "/products", f.values(), &out); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.products[key] = entry[[]Product]{val: out, fetched: c.now()}
			c.types[key] = f.normType()
		}
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return []Product{}, err
	}
	if shared {
		c.log.Debug("catalog fetch shared", zap.String("key", key))
	}
	return v.([]Product), nil
}

// shared runs fetch once per key for all concurrent callers. The fetch is
// detached from the caller that started it, so one caller giving up does not
// fail the others; the API client's timeout still bounds it.
func (c *Cache) shared(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, bool, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		return r.Val, r.Shared, r.Err
	}
}

// Product fetches one product. Single reads are not cached.
func (c *Cache) Product(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, apiclient.Invalid("id", "product id is required")
	}
	var p Product
	err := c.api.JSON(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/products/" + url.PathEscape(id),
		Public: true,
	}, &p)
	return p, err
}

func (c *Cache) list(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Query: q, Public: true})
	if err != nil {
		return err
	}
	if err := apiclient.DecodeList(body, c.strict, out); err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	return nil
}

func (c *Cache) InvalidateCategories() {
	c.mu.Lock()
	c.cats = nil
	c.gen++
	c.mu.Unlock()
}

// InvalidateProducts drops listings for category and unfiltered-by-type
// listings, which include it. An empty category drops every listing.
func (c *Cache) InvalidateProducts(category string) {
	category = strings.ToLower(strings.TrimSpace(category))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for k, t := range c.types {
		if category == "" || t == "" || t == category {
			delete(c.products, k)
			delete(c.types, k)
		}
	}
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.gen++
	c.cats = nil
	c.products = map[string]entry[[]Product]{}
	c.types = map[string]string{}
	c.mu.Unlock()
}
