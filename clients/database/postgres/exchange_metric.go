package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/kava-labs/kava-dev-proxy/clients/database"
)

const (
	ExchangeMetricsTableName = "exchange_metrics"
)

var errNotConnected = errors.New("database client is not connected")

// SaveExchangeMetric saves metric to the database, returning error (if any)
func (c *Client) SaveExchangeMetric(ctx context.Context, metric *database.ExchangeMetric) error {
	if c.db == nil {
		return errNotConnected
	}

	em := convertExchangeMetric(metric)
	_, err := c.db.NewInsert().Model(em).Exec(ctx)

	return err
}

// ListExchangeMetricsWithPagination returns a page of max
// `limit` ExchangeMetrics from the offset specified by `cursor`
// error (if any) along with a cursor to use to fetch the next page
// if the cursor is 0 no more pages exists.
func (c *Client) ListExchangeMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.ExchangeMetric, int64, error) {
	if c.db == nil {
		return nil, 0, errNotConnected
	}

	var exchangeMetrics []ExchangeMetric
	var nextCursor int64

	err := c.db.NewSelect().Model(&exchangeMetrics).Where("id > ?", cursor).Order("id ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	// look up the id of the last
	if limit > 0 && len(exchangeMetrics) == limit {
		nextCursor = exchangeMetrics[len(exchangeMetrics)-1].ID
	}

	metrics := make([]*database.ExchangeMetric, 0, len(exchangeMetrics))
	for i := range exchangeMetrics {
		metrics = append(metrics, exchangeMetrics[i].ToExchangeMetric())
	}

	// otherwise leave nextCursor as 0 to signal no more rows
	return metrics, nextCursor, nil
}

// DeleteExchangeMetricsOlderThanNDays deletes
// all exchange metrics older than the specified
// days, returning error (if any).
// Used during pruning process.
func (c *Client) DeleteExchangeMetricsOlderThanNDays(ctx context.Context, n int64) error {
	if c.db == nil {
		return errNotConnected
	}

	_, err := c.db.NewDelete().Model((*ExchangeMetric)(nil)).Where(fmt.Sprintf("request_time < now() - interval '%d' day", n)).Exec(ctx)

	return err
}
