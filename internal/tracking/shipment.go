// Package tracking follows an order's delivery: it polls the shipment,
// derives what can be shown on a map and requests a driver when none is
// assigned.
package tracking

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"appwini/internal/apiclient"
)

// NullFloat is a nullable numeric field. The API sends numbers, numeric
// strings or null for coordinates and ETAs.
type NullFloat struct {
	Value float64
	Set   bool
}

func (c *NullFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*c = NullFloat{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			// unparseable means no data, not a broken payload
			return nil
		}
		*c = NullFloat{Value: f, Set: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	*c = NullFloat{Value: f, Set: true}
	return nil
}

type Driver struct {
	ID      apiclient.ID `json:"id"`
	Name    string       `json:"name"`
	Phone   string       `json:"phone"`
	Vehicle string       `json:"vehicle"`

	// none marks a driver field that was present but empty ("" or false).
	none bool
}

// UnmarshalJSON accepts a driver object, a bare id (number or numeric
// string) or a driver name.
func (d *Driver) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*d = Driver{}
	if len(b) == 0 || string(b) == "null" || string(b) == "false" {
		d.none = true
		return nil
	}
	switch b[0] {
	case '{':
		type plain Driver
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*d = Driver(p)
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		switch {
		case s == "":
			d.none = true
		case isNumber(s):
			d.ID = apiclient.ID(s)
		default:
			d.Name = s
		}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			// true or any other shape: assigned, details unknown
			return nil
		}
		d.ID = apiclient.ID(n.String())
	}
	return nil
}

// Label is the name to show, falling back to the id.
func (d Driver) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.ID != "" {
		return "#" + d.ID.String()
	}
	return "assigned"
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// RawPoint is one history entry as sent. Either key spelling may be used.
type RawPoint struct {
	Lat        NullFloat `json:"lat"`
	Lng        NullFloat `json:"lng"`
	Latitude   NullFloat `json:"latitude"`
	Longitude  NullFloat `json:"longitude"`
	RecordedAt string    `json:"recorded_at"`
}

func (p RawPoint) coords() (lat, lng NullFloat) {
	lat, lng = p.Lat, p.Lng
	if !lat.Set {
		lat = p.Latitude
	}
	if !lng.Set {
		lng = p.Longitude
	}
	return lat, lng
}

type Shipment struct {
	OrderID    apiclient.ID `json:"order_id"`
	Status     string       `json:"status"`
	Driver     *Driver      `json:"driver"`
	ETAMinutes NullFloat    `json:"eta_minutes"`
	CurrentLat NullFloat    `json:"current_lat"`
	CurrentLng NullFloat    `json:"current_lng"`
	// History is newest first on the wire.
	History   []RawPoint `json:"history"`
	Locations []RawPoint `json:"locations"`
}

func (s Shipment) history() []RawPoint {
	if len(s.History) > 0 {
		return s.History
	}
	return s.Locations
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidCoordinate rejects non-finite and out of range values, and (0,0)
// within 1e-5 on both axes, which the backend uses for "no data".
func ValidCoordinate(lat, lng float64) bool {
	for _, v := range []float64{lat, lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}
	return !(math.Abs(lat) < 1e-5 && math.Abs(lng) < 1e-5)
}

func validPair(lat, lng NullFloat) (Point, bool) {
	if !lat.Set || !lng.Set || !ValidCoordinate(lat.Value, lng.Value) {
		return Point{}, false
	}
	return Point{Lat: lat.Value, Lng: lng.Value}, true
}

type State int

const (
	NoDriver State = iota
	Assigning
	Tracking
	Stale
)

func (s State) String() string {
	switch s {
	case NoDriver:
		return "no_driver"
	case Assigning:
		return "assigning"
	case Tracking:
		return "tracking"
	case Stale:
		return "no_location"
	}
	return "unknown"
}

var pendingStatus = regexp.MustCompile(`(?i)pending|unassigned|awaiting|searching`)

// IsPending reports whether status means no driver has taken the order.
func IsPending(status string) bool {
	return pendingStatus.MatchString(status)
}

// View is what a tracking screen renders.
type View struct {
	State      State   `json:"state"`
	Status     string  `json:"status"`
	Driver     *Driver `json:"driver,omitempty"`
	ETAMinutes *int    `json:"eta_minutes,omitempty"`
	// Position is nil when no usable coordinate exists.
	Position *Point `json:"position,omitempty"`
	// Path holds the valid history points, oldest first.
	Path []Point `json:"path"`
}

// Derive computes the view for s. It never reports Assigning; that state
// belongs to the Tracker.
func Derive(s Shipment) View {
	if s.Driver != nil && s.Driver.none {
		s.Driver = nil
	}
	v := View{
		Status: DisplayStatus(s.Status),
		Driver: s.Driver,
		Path:   []Point{},
	}
	if s.ETAMinutes.Set && s.ETAMinutes.Value >= 0 && !math.IsInf(s.ETAMinutes.Value, 0) {
		eta := int(math.Round(s.ETAMinutes.Value))
		v.ETAMinutes = &eta
	}

	hist := s.history()
	for i := len(hist) - 1; i >= 0; i-- {
		if p, ok := validPair(hist[i].coords()); ok {
			v.Path = append(v.Path, p)
		}
	}

	if s.Driver == nil || IsPending(s.Status) {
		v.State = NoDriver
		return v
	}

	if p, ok := validPair(s.CurrentLat, s.CurrentLng); ok {
		v.Position = &p
	} else if n := len(v.Path); n > 0 {
		p := v.Path[n-1]
		v.Position = &p
	}
	if v.Position == nil {
		v.State = Stale
		return v
	}
	v.State = Tracking
	return v
}

// DisplayStatus turns "en_route" into "En route".
func DisplayStatus(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(s))
	if s == "" {
		return "Unknown"
	}
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.ToUpper(s[:1]) + s[1:]
}
