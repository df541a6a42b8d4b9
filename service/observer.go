package service

import (
	"context"
	"time"
)

// ExchangeSummary describes one finished exchange. It is handed to every
// ExchangeObserver whether or not the filters let the exchange be logged.
type ExchangeSummary struct {
	ID          string        `json:"id"`
	Env         string        `json:"env"`
	Route       string        `json:"route"`
	Kind        TrafficKind   `json:"kind"`
	Method      string        `json:"method"`
	RequestURI  string        `json:"request_uri"`
	UpstreamURL string        `json:"upstream_url"`
	StatusCode  int           `json:"status_code"`
	Duration    time.Duration `json:"duration"`
	HasDuration bool          `json:"has_duration"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
}

// ExchangeObserver is notified once per finished exchange, from the
// goroutine serving it. Implementations must not block for long.
type ExchangeObserver interface {
	ObserveExchange(ctx context.Context, summary ExchangeSummary)
}

// ExchangeObserverFunc adapts a function to ExchangeObserver.
type ExchangeObserverFunc func(ctx context.Context, summary ExchangeSummary)

func (f ExchangeObserverFunc) ObserveExchange(ctx context.Context, summary ExchangeSummary) {
	f(ctx, summary)
}

func (ex *exchange) summary(status int, duration time.Duration, hasDuration bool, err error) ExchangeSummary {
	summary := ExchangeSummary{
		ID:          ex.id,
		Env:         string(ex.snapshot.state.Env),
		Route:       ex.route,
		Kind:        ex.kind,
		Method:      ex.method,
		RequestURI:  ex.requestURI,
		UpstreamURL: ex.upstreamURL,
		StatusCode:  status,
		Duration:    duration,
		HasDuration: hasDuration,
		StartedAt:   ex.startedAt,
	}
	if err != nil {
		summary.Error = err.Error()
	}
	return summary
}
