package noop

import (
	"context"

	"github.com/kava-labs/kava-dev-proxy/clients/database"
)

// Noop is a database client that does nothing, used when
// exchange metrics are not persisted
type Noop struct{}

var _ database.MetricsDatabase = (*Noop)(nil)

func New() *Noop {
	return &Noop{}
}

func (e *Noop) SaveExchangeMetric(ctx context.Context, metric *database.ExchangeMetric) error {
	return nil
}

func (e *Noop) ListExchangeMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.ExchangeMetric, int64, error) {
	return []*database.ExchangeMetric{}, 0, nil
}

func (e *Noop) DeleteExchangeMetricsOlderThanNDays(ctx context.Context, n int64) error {
	return nil
}

func (e *Noop) HealthCheck() error {
	return nil
}
