package tracking

import (
	"context"
	"net/url"
	"strconv"

	"appwini/internal/apiclient"
)

// DefaultLimit is the number of history points requested per fetch.
const DefaultLimit = 50

type Client struct {
	api *apiclient.Client
}

func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

func orderPath(orderID string) string {
	return "/orders/" + url.PathEscape(orderID) + "/"
}

func (c *Client) Fetch(ctx context.Context, orderID string, limit int) (Shipment, error) {
	if orderID == "" {
		return Shipment{}, apiclient.Invalid("order", "order id is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	var s Shipment
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	err := c.api.Get(ctx, orderPath(orderID)+"tracking/", q, &s)
	return s, err
}

// AssignDriver asks the backend to pick a driver for the order.
func (c *Client) AssignDriver(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apiclient.Invalid("order", "order id is required")
	}
	return c.api.Post(ctx, orderPath(orderID)+"assign-driver/", map[string]any{}, nil)
}
