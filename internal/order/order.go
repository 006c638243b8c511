// Package order creates orders against a commerce API whose request schema
// is not pinned, and reads them back.
package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"appwini/internal/apiclient"
	"appwini/internal/cart"
)

type PaymentMethod string

const (
	Cash     PaymentMethod = "cash"
	Transfer PaymentMethod = "transfer"
)

func ParsePayment(s string) (PaymentMethod, error) {
	switch p := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); p {
	case Cash, Transfer:
		return p, nil
	}
	return "", ErrInvalidPayment
}

var (
	ErrEmptyCart      = apiclient.Invalid("cart", "your cart is empty")
	ErrNoAddress      = apiclient.Invalid("address", "select a delivery address")
	ErrInvalidPayment = apiclient.Invalid("payment", "payment method must be cash or transfer")

	// ErrSubmissionInFlight rejects a second Submit while one is running.
	ErrSubmissionInFlight = errors.New("an order is already being submitted")
)

type Line struct {
	ProductID apiclient.ID    `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID            apiclient.ID    `json:"id"`
	Status        string          `json:"status"`
	AddressID     apiclient.ID    `json:"address_id"`
	PaymentMethod string          `json:"payment_method"`
	Instructions  string          `json:"delivery_instructions"`
	Total         decimal.Decimal `json:"total"`
	Items         []Line          `json:"items"`
	CreatedAt     string          `json:"created_at"`
}

// Request is what checkout hands to the engine.
type Request struct {
	Items        []cart.Item
	AddressID    string
	Payment      PaymentMethod
	Instructions string
}

func (r Request) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(r.AddressID) == "" {
		return ErrNoAddress
	}
	if _, err := ParsePayment(string(r.Payment)); err != nil {
		return err
	}
	return nil
}

// Schema is one guess at the order creation body: which key carries the
// address, which carries the payment method, and whether items are sent.
type Schema struct {
	AddressKey string
	PaymentKey string
	WithItems  bool
}

func (s Schema) String() string {
	out := s.AddressKey + "," + s.PaymentKey
	if s.WithItems {
		out += ",items"
	}
	return out
}

// ParseSchema reads the "address_id,payment_method[,items]" notation used
// in the client config.
func ParseSchema(v string) (Schema, error) {
	parts := strings.Split(strings.ReplaceAll(v, " ", ""), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Schema{}, fmt.Errorf("order schema %q: want address_key,payment_key[,items]", v)
	}
	s := Schema{AddressKey: parts[0], PaymentKey: parts[1]}
	if s.AddressKey != "address" && s.AddressKey != "address_id" {
		return Schema{}, fmt.Errorf("order schema %q: unknown address key %q", v, s.AddressKey)
	}
	if s.PaymentKey != "payment_method" && s.PaymentKey != "payment_type" {
		return Schema{}, fmt.Errorf("order schema %q: unknown payment key %q", v, s.PaymentKey)
	}
	if len(parts) == 3 {
		if parts[2] != "items" {
			return Schema{}, fmt.Errorf("order schema %q: unknown flag %q", v, parts[2])
		}
		s.WithItems = true
	}
	return s, nil
}

// Schemas lists every probed shape in attempt order: the four address and
// payment key combinations, first without items and then with them.
var Schemas = func() []Schema {
	var out []Schema
	for _, items := range []bool{false, true} {
		for _, addr := range []string{"address", "address_id"} {
			for _, pay := range []string{"payment_method", "payment_type"} {
				out = append(out, Schema{AddressKey: addr, PaymentKey: pay, WithItems: items})
			}
		}
	}
	return out
}()

type Payload map[string]any

func (s Schema) Payload(r Request) Payload {
	p := Payload{
		s.AddressKey:            cart.IDValue(r.AddressID),
		s.PaymentKey:            string(r.Payment),
		"delivery_instructions": strings.TrimSpace(r.Instructions),
	}
	if s.WithItems {
		lines := make([]map[string]any, 0, len(r.Items))
		for _, it := range r.Items {
			pid := it.ProductID
			if pid == "" {
				pid = it.ID
			}
			qty := it.Quantity
			if qty < 1 {
				qty = 1
			}
			lines = append(lines, map[string]any{"product_id": cart.IDValue(pid), "quantity": qty})
		}
		p["items"] = lines
	}
	return p
}

// Candidates returns the request bodies to try, in order.
func Candidates(r Request) []Payload {
	out := make([]Payload, 0, len(Schemas))
	for _, s := range Schemas {
		out = append(out, s.Payload(r))
	}
	return out
}
