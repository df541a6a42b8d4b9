package service

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type contextKey string

const (
	ExchangeContextKey contextKey = "X-DEV-PROXY-EXCHANGE"
	// ExchangeIDHeader carries the exchange id back to the client.
	ExchangeIDHeader = "X-Proxy-Exchange-Id"
)

// Tracker records when exchanges started so their duration can be
// measured when they end. Every route owns its own Tracker.
type Tracker struct {
	mu     sync.Mutex
	starts map[string]time.Time
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Begin records the current time under key, replacing any earlier
// start recorded under the same key.
func (t *Tracker) Begin(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.starts[key] = t.now()
}

// End removes the start recorded under key and returns the time elapsed
// since. The second End for a key, or an End without Begin, reports false.
func (t *Tracker) End(key string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.starts[key]
	if !ok {
		return 0, false
	}
	delete(t.starts, key)

	elapsed := t.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

// Len returns the number of exchanges begun and not yet ended.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.starts)
}

// exchange is the per request state shared by the hooks of one proxied
// exchange. It is attached to the request context by the route handler.
type exchange struct {
	id         string
	kind       TrafficKind
	snapshot   *snapshot
	route      string
	method     string
	requestURI string
	startedAt  time.Time
	// upstreamURL is the full address the request is forwarded to.
	upstreamURL string
	// observed is false for an upgrade the WebSocket filter turned down.
	observed bool
	// protocols are the subprotocols the client offered on upgrade.
	protocols []string

	mu          sync.Mutex
	requestBody []byte
}

func withExchange(ctx context.Context, ex *exchange) context.Context {
	return context.WithValue(ctx, ExchangeContextKey, ex)
}

func exchangeFrom(ctx context.Context) (*exchange, bool) {
	ex, ok := ctx.Value(ExchangeContextKey).(*exchange)
	return ex, ok
}

// ExchangeIDFromContext returns the id of the exchange ctx belongs to.
func ExchangeIDFromContext(ctx context.Context) (string, bool) {
	ex, ok := exchangeFrom(ctx)
	if !ok {
		return "", false
	}
	return ex.id, true
}

// correlationKey returns the tracker key of r: its exchange id, or
// METHOD:uri for a request that reached the hooks without one.
func correlationKey(r *http.Request) string {
	if ex, ok := exchangeFrom(r.Context()); ok {
		return ex.id
	}
	return r.Method + ":" + r.URL.RequestURI()
}

func (ex *exchange) setRequestBody(body []byte) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.requestBody = body
}

func (ex *exchange) capturedRequestBody() []byte {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.requestBody
}
