package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"appwini/internal/logging"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultMaxBackoff = time.Minute
)

// Snapshot is one published tracker result.
type Snapshot struct {
	View
	// Err is the fetch failure of this cycle. View then holds the last
	// successful result.
	Err error
	// AssignErr is the outcome of the last auto-assign attempt.
	AssignErr error
	// Next is the delay until the following poll.
	Next      time.Duration
	UpdatedAt time.Time
}

// Tracker polls one order until its context is cancelled.
type Tracker struct {
	client  *Client
	orderID string
	limit   int

	interval   time.Duration
	maxBackoff time.Duration
	log        *zap.Logger
	onUpdate   func(Snapshot)

	// tried guards auto-assign: one attempt per tracker until Retry.
	tried     atomic.Bool
	assigning atomic.Bool
	refresh   chan struct{}

	mu        sync.Mutex
	last      Snapshot
	assignErr error
}

type Option func(*Tracker)

func WithInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

// WithMaxBackoff caps the delay after failures. A cap equal to the
// interval polls at a fixed rate and never backs off.
func WithMaxBackoff(d time.Duration) Option {
	return func(t *Tracker) { t.maxBackoff = d }
}

func WithLimit(n int) Option {
	return func(t *Tracker) { t.limit = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.log = logging.OrNop(l) }
}

// OnUpdate registers fn to receive every snapshot. It runs on the polling
// goroutine and must not block.
func OnUpdate(fn func(Snapshot)) Option {
	return func(t *Tracker) { t.onUpdate = fn }
}

func NewTracker(c *Client, orderID string, opts ...Option) *Tracker {
	t := &Tracker{
		client:     c,
		orderID:    orderID,
		limit:      DefaultLimit,
		interval:   DefaultInterval,
		maxBackoff: DefaultMaxBackoff,
		log:        zap.NewNop(),
		refresh:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(t)
	}
	if t.maxBackoff < t.interval {
		t.maxBackoff = t.interval
	}
	return t
}

// NextDelay is the backoff policy: double on failure up to ceiling, back
// to base on success. A ceiling below base is treated as base.
func NextDelay(cur, base, ceiling time.Duration, failed bool) time.Duration {
	if !failed {
		return base
	}
	if ceiling < base {
		ceiling = base
	}
	next := cur * 2
	if next > ceiling || next <= 0 {
		return ceiling
	}
	return next
}

// Run polls until ctx is done and returns ctx.Err(). Results that arrive
// after cancellation are dropped.
func (t *Tracker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	delay := t.interval
	for {
		snap := t.poll(ctx, &wg)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay = NextDelay(delay, t.interval, t.maxBackoff, snap.Err != nil)
		snap.Next = delay
		t.publish(snap)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-t.refresh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (t *Tracker) poll(ctx context.Context, wg *sync.WaitGroup) Snapshot {
	t.mu.Lock()
	prev := t.last.View
	t.mu.Unlock()

	snap := Snapshot{UpdatedAt: time.Now()}
	sh, err := t.client.Fetch(ctx, t.orderID, t.limit)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("tracking fetch failed", zap.String("order_id", t.orderID), zap.Error(err))
		}
		snap.View = prev
		snap.Err = err
	} else {
		snap.View = Derive(sh)
	}

	if snap.Err == nil && snap.State == NoDriver && t.tried.CompareAndSwap(false, true) {
		t.assigning.Store(true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.assign(ctx)
		}()
	}
	if snap.State == NoDriver && t.assigning.Load() {
		snap.State = Assigning
	}

	t.mu.Lock()
	snap.AssignErr = t.assignErr
	t.mu.Unlock()
	return snap
}

func (t *Tracker) assign(ctx context.Context) {
	err := t.client.AssignDriver(ctx, t.orderID)
	t.assigning.Store(false)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		t.log.Warn("driver auto-assign failed", zap.String("order_id", t.orderID), zap.Error(err))
	} else {
		t.log.Info("driver assigned", zap.String("order_id", t.orderID))
	}
	t.mu.Lock()
	t.assignErr = err
	t.mu.Unlock()
	t.Refresh()
}

func (t *Tracker) publish(s Snapshot) {
	t.mu.Lock()
	t.last = s
	t.mu.Unlock()
	if t.onUpdate != nil {
		t.onUpdate(s)
	}
}

// Snapshot returns the last published result.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Refresh asks for an immediate poll.
func (t *Tracker) Refresh() {
	select {
	case t.refresh <- struct{}{}:
	default:
	}
}

// Retry re-arms auto-assign and polls right away.
func (t *Tracker) Retry() {
	t.mu.Lock()
	t.assignErr = nil
	t.mu.Unlock()
	t.tried.Store(false)
	t.Refresh()
}
