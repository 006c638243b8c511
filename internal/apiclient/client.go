// Package apiclient is the HTTP transport shared by every commerce client:
// base URL handling, bearer authentication and error extraction.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appwini/internal/logging"
)

// TokenSource yields the stored bearer token; an empty string means the user
// is signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l) }
}

// New builds a client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one call. Public requests skip the bearer header.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Public bool
}

// Do runs req and returns the raw response body. Non-2xx answers become a
// *StatusError carrying the extracted message.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	var token string
	if !req.Public {
		if c.tokens == nil {
			return nil, ErrNoSession
		}
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read session: %w", err)
		}
		if strings.TrimSpace(t) == "" {
			return nil, ErrNoSession
		}
		token = t
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", req.Method), zap.String("path", req.Path),
			zap.String("request_id", reqID), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.Method, req.Path, err)
	}
	c.log.Debug("request",
		zap.String("method", req.Method), zap.String("path", req.Path),
		zap.Int("status", res.StatusCode), zap.Duration("latency", time.Since(start)),
		zap.String("request_id", reqID))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: res.StatusCode,
			Message:    ExtractMessage(b),
			Body:       b,
		}
	}
	return b, nil
}

// JSON runs req and decodes the body into out (when out is non-nil and the
// body is not empty).
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	b, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, q url.Values, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodGet, Path: path, Query: q}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.JSON(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}
