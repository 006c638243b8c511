// Package address manages the user's delivery addresses.
package address

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"appwini/internal/apiclient"
)

type Address struct {
	ID           apiclient.ID `json:"id"`
	MainAddress  string       `json:"main_address"`
	SecondStreet string       `json:"secondary_street,omitempty"`
	Apartment    string       `json:"apartment,omitempty"`
	City         string       `json:"city"`
	Instructions string       `json:"delivery_instructions,omitempty"`
	IsDefault    bool         `json:"is_default"`
	Latitude     *float64     `json:"latitude,omitempty"`
	Longitude    *float64     `json:"longitude,omitempty"`
}

// Label is a one-line rendering for pickers.
func (a Address) Label() string {
	parts := []string{a.MainAddress}
	if a.SecondStreet != "" {
		parts = append(parts, "y "+a.SecondStreet)
	}
	if a.Apartment != "" {
		parts = append(parts, a.Apartment)
	}
	parts = append(parts, a.City)
	return strings.Join(parts, ", ")
}

// Input is the create/update payload.
type Input struct {
	MainAddress  string   `json:"main_address"`
	SecondStreet string   `json:"secondary_street,omitempty"`
	Apartment    string   `json:"apartment,omitempty"`
	City         string   `json:"city"`
	Instructions string   `json:"delivery_instructions,omitempty"`
	IsDefault    bool     `json:"is_default"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

func (in *Input) normalize() {
	in.MainAddress = strings.TrimSpace(in.MainAddress)
	in.SecondStreet = strings.TrimSpace(in.SecondStreet)
	in.Apartment = strings.TrimSpace(in.Apartment)
	in.City = strings.TrimSpace(in.City)
	in.Instructions = strings.TrimSpace(in.Instructions)
}

func (in Input) Validate() error {
	if in.MainAddress == "" {
		return apiclient.Invalid("main_address", "enter the main address")
	}
	if in.City == "" {
		return apiclient.Invalid("city", "enter the city")
	}
	return nil
}

// PickDefault returns the address flagged as default, else the first one.
func PickDefault(list []Address) (Address, bool) {
	for _, a := range list {
		if a.IsDefault {
			return a, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return Address{}, false
}

type Book struct {
	api    *apiclient.Client
	strict bool
}

func NewBook(api *apiclient.Client, strict bool) *Book {
	return &Book{api: api, strict: strict}
}

func path(id string) string {
	return "/addresses/" + url.PathEscape(id) + "/"
}

func (b *Book) List(ctx context.Context) ([]Address, error) {
	body, err := b.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/addresses/"})
	if err != nil {
		return []Address{}, err
	}
	out := []Address{}
	if err := apiclient.DecodeList(body, b.strict, &out); err != nil {
		return []Address{}, err
	}
	return out, nil
}

func (b *Book) Create(ctx context.Context, in Input) (Address, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	var out Address
	err := b.api.Post(ctx, "/addresses/", in, &out)
	return out, err
}

func (b *Book) Update(ctx context.Context, id string, in Input) (Address, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	var out Address
	err := b.api.Patch(ctx, path(id), in, &out)
	return out, err
}

func (b *Book) SetDefault(ctx context.Context, id string) error {
	return b.api.Patch(ctx, path(id), map[string]bool{"is_default": true}, nil)
}

func (b *Book) Delete(ctx context.Context, id string) error {
	return b.api.Delete(ctx, path(id))
}
