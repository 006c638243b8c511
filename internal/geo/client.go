// Package geo resolves free-text addresses through the commerce API's geo
// endpoints.
package geo

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"appwini/internal/apiclient"
)

// MinQueryLength is the shortest query sent to autocomplete.
const MinQueryLength = 3

type Suggestion struct {
	PlaceID       string   `json:"place_id"`
	Description   string   `json:"description"`
	MainText      string   `json:"main_text"`
	SecondaryText string   `json:"secondary_text"`
	City          string   `json:"city,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

type Place struct {
	PlaceID          string   `json:"place_id"`
	FormattedAddress string   `json:"formatted_address"`
	MainAddress      string   `json:"main_address"`
	City             string   `json:"city"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
}

// GeocodeQuery selects a place by id, by free text or by coordinates, in
// that order of precedence.
type GeocodeQuery struct {
	PlaceID string
	Q       string
	Lat     *float64
	Lng     *float64
}

func (q GeocodeQuery) values() (url.Values, error) {
	v := url.Values{}
	switch {
	case strings.TrimSpace(q.PlaceID) != "":
		v.Set("place_id", strings.TrimSpace(q.PlaceID))
	case strings.TrimSpace(q.Q) != "":
		v.Set("q", strings.TrimSpace(q.Q))
	case q.Lat != nil && q.Lng != nil:
		v.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
		v.Set("lng", strconv.FormatFloat(*q.Lng, 'f', -1, 64))
	default:
		return nil, apiclient.Invalid("query", "place id, text or coordinates are required")
	}
	return v, nil
}

type AddressCheck struct {
	MainAddress  string `json:"main_address"`
	SecondStreet string `json:"secondary_street,omitempty"`
	City         string `json:"city"`
}

type Validation struct {
	Valid            bool     `json:"valid"`
	Message          string   `json:"message"`
	FormattedAddress string   `json:"formatted_address"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Route struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
}

type Client struct {
	api    *apiclient.Client
	strict bool
}

func NewClient(api *apiclient.Client, strict bool) *Client {
	return &Client{api: api, strict: strict}
}

// Autocomplete returns suggestions for q. Queries shorter than
// MinQueryLength return nothing without a request.
func (c *Client) Autocomplete(ctx context.Context, q, country string, limit int) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinQueryLength {
		return []Suggestion{}, nil
	}
	v := url.Values{"q": {q}}
	if country != "" {
		v.Set("country", country)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/geo/autocomplete/", Query: v})
	if err != nil {
		return []Suggestion{}, err
	}
	out := []Suggestion{}
	if err := apiclient.DecodeList(body, c.strict, &out); err != nil {
		return []Suggestion{}, err
	}
	return out, nil
}

func (c *Client) Geocode(ctx context.Context, q GeocodeQuery) (Place, error) {
	v, err := q.values()
	if err != nil {
		return Place{}, err
	}
	var p Place
	err = c.api.Get(ctx, "/geo/geocode/", v, &p)
	return p, err
}

func (c *Client) ValidateAddress(ctx context.Context, a AddressCheck) (Validation, error) {
	if strings.TrimSpace(a.MainAddress) == "" || strings.TrimSpace(a.City) == "" {
		return Validation{}, apiclient.Invalid("address", "main address and city are required")
	}
	var out Validation
	err := c.api.Post(ctx, "/geo/validate-address/", a, &out)
	return out, err
}

func (c *Client) EstimateRoute(ctx context.Context, from, to LatLng) (Route, error) {
	var out Route
	err := c.api.Post(ctx, "/geo/estimate-route/", map[string]LatLng{"origin": from, "destination": to}, &out)
	return out, err
}
