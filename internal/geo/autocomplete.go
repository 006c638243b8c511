package geo

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"appwini/internal/logging"
)

// DefaultDelay is the quiet period before a query is sent.
const DefaultDelay = 350 * time.Millisecond

// Searcher is the part of Client the Autocompleter needs.
type Searcher interface {
	Autocomplete(ctx context.Context, q, country string, limit int) ([]Suggestion, error)
	Geocode(ctx context.Context, q GeocodeQuery) (Place, error)
}

// Result is delivered for every settled query. Suggestions is empty, never
// nil, when the query was too short or the provider failed.
type Result struct {
	Query       string
	Suggestions []Suggestion
	Err         error
}

// Autocompleter debounces free-text input into autocomplete calls. Only the
// latest input produces a result; slower answers to older input are
// dropped.
type Autocompleter struct {
	src      Searcher
	onResult func(Result)
	country  string
	limit    int
	delay    time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	gen      uint64
	timer    *time.Timer
	inflight context.CancelFunc
	skip     bool
	closed   bool
	wg       sync.WaitGroup
}

type AutoOption func(*Autocompleter)

func WithDelay(d time.Duration) AutoOption {
	return func(a *Autocompleter) { a.delay = d }
}

func WithCountry(c string) AutoOption {
	return func(a *Autocompleter) { a.country = c }
}

func WithLimit(n int) AutoOption {
	return func(a *Autocompleter) { a.limit = n }
}

func WithLogger(l *zap.Logger) AutoOption {
	return func(a *Autocompleter) { a.log = logging.OrNop(l) }
}

func NewAutocompleter(src Searcher, onResult func(Result), opts ...AutoOption) *Autocompleter {
	a := &Autocompleter{
		src:      src,
		onResult: onResult,
		limit:    5,
		delay:    DefaultDelay,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SkipNext makes the next Input a no-op. Used when the text is set
// programmatically after a suggestion was picked.
func (a *Autocompleter) SkipNext() {
	a.mu.Lock()
	a.skip = true
	a.mu.Unlock()
}

// Input reports the current text of the search field.
func (a *Autocompleter) Input(text string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.skip {
		a.skip = false
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	a.stopLocked()

	q := strings.TrimSpace(text)
	if len([]rune(q)) < MinQueryLength {
		a.mu.Unlock()
		a.emit(Result{Query: q, Suggestions: []Suggestion{}})
		return
	}
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen, q) })
	a.mu.Unlock()
}

// stopLocked cancels the pending timer and any request in flight.
func (a *Autocompleter) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.inflight != nil {
		a.inflight()
		a.inflight = nil
	}
}

func (a *Autocompleter) fire(gen uint64, q string) {
	a.mu.Lock()
	if a.closed || gen != a.gen {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.inflight = cancel
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()
	defer cancel()

	list, err := a.src.Autocomplete(ctx, q, a.country, a.limit)

	a.mu.Lock()
	stale := a.closed || gen != a.gen
	a.mu.Unlock()
	if stale {
		return
	}
	if err != nil {
		a.log.Debug("autocomplete failed", zap.String("q", q), zap.Error(err))
		list = []Suggestion{}
	}
	if list == nil {
		list = []Suggestion{}
	}
	a.emit(Result{Query: q, Suggestions: list, Err: err})
}

func (a *Autocompleter) emit(r Result) {
	if a.onResult != nil {
		a.onResult(r)
	}
}

// Select arms the skip flag and enriches the suggestion with geocode data.
// Geocode failures are dropped; the suggestion's own fields always win.
func (a *Autocompleter) Select(ctx context.Context, s Suggestion) Suggestion {
	a.SkipNext()
	if s.PlaceID == "" {
		return s
	}
	p, err := a.src.Geocode(ctx, GeocodeQuery{PlaceID: s.PlaceID})
	if err != nil {
		a.log.Debug("geocode enrichment failed", zap.String("place_id", s.PlaceID), zap.Error(err))
		return s
	}
	if s.Latitude == nil && s.Longitude == nil && p.Latitude != nil && p.Longitude != nil {
		s.Latitude, s.Longitude = p.Latitude, p.Longitude
	}
	if s.City == "" {
		s.City = p.City
	}
	if s.Description == "" {
		s.Description = p.FormattedAddress
	}
	if s.MainText == "" {
		s.MainText = p.MainAddress
	}
	return s
}

// Close stops pending work and waits for a running request to return.
func (a *Autocompleter) Close() {
	a.mu.Lock()
	a.closed = true
	a.gen++
	a.stopLocked()
	a.mu.Unlock()
	a.wg.Wait()
}
