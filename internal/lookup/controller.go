package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
)

// Policy decides which response wins when submits overlap.
type Policy int

const (
	// PolicyLatestWins applies only the response of the most recently issued
	// lookup. Older responses are discarded when they arrive.
	PolicyLatestWins Policy = iota
	// PolicyRace applies every response in the order they resolve.
	PolicyRace
	// PolicyCancelPrevious is PolicyLatestWins plus cancellation of the
	// superseded lookup's outbound call.
	PolicyCancelPrevious
)

func (p Policy) String() string {
	switch p {
	case PolicyLatestWins:
		return "latest_wins"
	case PolicyRace:
		return "race"
	case PolicyCancelPrevious:
		return "cancel_previous"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name as written in config.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest_wins":
		return PolicyLatestWins, nil
	case "race":
		return PolicyRace, nil
	case "cancel_previous":
		return PolicyCancelPrevious, nil
	}
	return 0, fmt.Errorf("unknown lookup policy %q (want latest_wins, race or cancel_previous)", s)
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy sets the overlapping-submit policy. Default PolicyLatestWins.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger sets the fallback logger used when the submit context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller owns the query text and the RequestState of one widget.
// All methods are safe for concurrent use.
type Controller struct {
	client client.WeatherClient
	policy Policy
	logger *zap.Logger

	mu        sync.Mutex
	query     string
	state     State
	seq       uint64
	latest    *Request
	inFlight  int
	listeners map[int]func(View)
	nextID    int
	version   uint64

	// notifyMu serializes listener calls. Never acquired while holding mu.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewController returns a controller in the Idle state.
func NewController(c client.WeatherClient, opts ...Option) *Controller {
	ctrl := &Controller{
		client:    c,
		policy:    PolicyLatestWins,
		logger:    zap.NewNop(),
		state:     Idle{},
		listeners: make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

// Policy returns the configured overlap policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// UpdateQuery replaces the input text verbatim. Nothing else changes.
func (c *Controller) UpdateQuery(text string) {
	c.mu.Lock()
	c.query = text
	c.publishLocked()
}

// Query returns the current input text.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// State returns the active variant.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight returns the number of lookups awaiting a response.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Subscribe registers fn to receive the view after every query update and
// state transition. fn may read the controller but must not call UpdateQuery
// or Submit synchronously. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Submit starts a lookup for the trimmed query and returns its handle.
// It returns nil, without touching state or the network, when the trimmed
// query is empty. The transition to Loading happens before Submit returns;
// ctx bounds the outbound call.
func (c *Controller) Submit(ctx context.Context) *Request {
	logger := observability.LoggerFromContext(ctx, c.logger)

	c.mu.Lock()
	query := strings.TrimSpace(c.query)
	if query == "" {
		c.mu.Unlock()
		logger.Debug("submit ignored, empty query")
		return nil
	}

	c.seq++
	reqCtx, cancel := context.WithCancel(ctx)
	r := &Request{
		seq:    c.seq,
		query:  query,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	if c.policy == PolicyCancelPrevious && c.latest != nil {
		c.latest.cancel()
	}
	c.latest = r
	c.inFlight++
	c.state = Loading{Query: query}
	c.publishLocked()

	logger.Debug("lookup submitted", zap.String("query", query), zap.Uint64("seq", r.seq), zap.Stringer("policy", c.policy))
	go c.run(reqCtx, r, logger)
	return r
}

// SubmitAndWait submits and blocks until that lookup settles or ctx is done.
// It returns the lookup's own outcome, or the current state when the submit
// was a no-op or ctx ended first.
func (c *Controller) SubmitAndWait(ctx context.Context) State {
	r := c.Submit(ctx)
	if r == nil {
		return c.State()
	}
	st, err := r.Wait(ctx)
	if err != nil {
		return c.State()
	}
	return st
}

func (c *Controller) run(ctx context.Context, r *Request, logger *zap.Logger) {
	defer r.cancel()

	observability.LookupsInFlight.Inc()
	snap, err := c.fetch(ctx, r.query)
	observability.LookupsInFlight.Dec()

	var next State
	outcome := "success"
	if err != nil {
		next = Failure{Message: FailureMessage(err)}
		outcome = outcomeLabel(err)
	} else {
		next = Success{Snapshot: snap}
	}

	c.mu.Lock()
	c.inFlight--
	applied := c.policy == PolicyRace || r.seq == c.seq
	r.result = next
	r.applied = applied
	if applied {
		c.state = next
	}
	c.publishLocked()
	if applied {
		observability.RecordLookup(outcome)
		recordTraffic(err)
	}
	close(r.done)

	if !applied {
		observability.LookupsDiscardedTotal.Inc()
		logger.Debug("stale lookup discarded", zap.String("query", r.query), zap.Uint64("seq", r.seq))
		return
	}
	if err != nil {
		logger.Info("lookup failed",
			zap.String("query", r.query),
			zap.Uint64("seq", r.seq),
			zap.String("category", string(client.CategorizeError(err))),
			zap.String("message", FailureMessage(err)))
		return
	}
	logger.Debug("lookup settled", zap.String("query", r.query), zap.Uint64("seq", r.seq), zap.String("outcome", outcome))
}

// recordTraffic feeds the health window. "City not found" is a usable answer,
// not an upstream fault.
func recordTraffic(err error) {
	switch {
	case err == nil, errors.Is(err, client.ErrLocationNotFound):
		traffic.RecordSuccess()
	case errors.Is(err, client.ErrRateLimited):
		traffic.RecordThrottled()
	default:
		traffic.RecordError()
	}
}

// fetch performs the single outbound call. A panic in the client becomes an error
// so the lookup still leaves Loading.
func (c *Controller) fetch(ctx context.Context, query string) (snap models.WeatherSnapshot, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", rec)
			}
		}
	}()
	return c.client.GetCurrentWeather(ctx, query)
}

// publishLocked snapshots the view and listeners, releases c.mu and notifies.
// Callers must hold c.mu; it is released on return. Each snapshot carries a
// version taken under c.mu, and a snapshot older than one already delivered
// is dropped, so listeners never observe transitions out of order.
func (c *Controller) publishLocked() {
	c.version++
	version := c.version
	view := c.viewLocked()
	listeners := make([]func(View), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version
	for _, fn := range listeners {
		fn(view)
	}
}

// FailureMessage converts a lookup error into the message shown to the user.
// Transport errors are unwrapped from *url.Error so the request URL, which
// carries the API key, is never displayed.
func FailureMessage(err error) string {
	if err == nil {
		return MessageGeneric
	}
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		return MessageNotFound
	case errors.Is(err, client.ErrUpstreamFailure):
		return MessageUpstreamFailure
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return MessageGeneric
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		return "not_found"
	case errors.Is(err, client.ErrUpstreamFailure):
		return "upstream_failure"
	default:
		return "fault"
	}
}

// Request is the handle for one submitted lookup.
type Request struct {
	seq    uint64
	query  string
	done   chan struct{}
	cancel context.CancelFunc

	// written once before done is closed
	result  State
	applied bool
}

// Query returns the trimmed query captured at submit time.
func (r *Request) Query() string { return r.query }

// Seq returns the lookup's sequence number within its controller.
func (r *Request) Seq() uint64 { return r.seq }

// Done is closed once the lookup has settled.
func (r *Request) Done() <-chan struct{} { return r.done }

// Cancel aborts the outbound call. The lookup still settles, as a Failure.
func (r *Request) Cancel() { r.cancel() }

// Wait blocks until the lookup settles or ctx is done.
func (r *Request) Wait(ctx context.Context) (State, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled outcome without blocking. ok is false while in flight.
func (r *Request) Result() (st State, ok bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return nil, false
	}
}

// Applied reports whether the outcome became the controller's state.
// Only meaningful after Done is closed.
func (r *Request) Applied() bool {
	select {
	case <-r.done:
		return r.applied
	default:
		return false
	}
}
