// package database defines the store proxied exchange metrics are
// persisted to, see the postgres and noop packages for implementations
package database

import (
	"context"
	"time"
)

// MetricsDatabase stores one ExchangeMetric per proxied exchange.
type MetricsDatabase interface {
	SaveExchangeMetric(ctx context.Context, metric *ExchangeMetric) error
	ListExchangeMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*ExchangeMetric, int64, error)
	DeleteExchangeMetricsOlderThanNDays(ctx context.Context, n int64) error
	HealthCheck() error
}

// ExchangeMetric contains the metrics of a single exchange
// proxied by the dev proxy
type ExchangeMetric struct {
	ID                          int64
	ExchangeID                  string
	Env                         string
	Route                       string
	Kind                        string
	Method                      string
	UpstreamURL                 string
	StatusCode                  int
	ResponseLatencyMilliseconds int64
	Error                       *string
	RequestTime                 time.Time
}
