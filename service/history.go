package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kava-labs/kava-dev-proxy/clients/cache"
	"github.com/kava-labs/kava-dev-proxy/clients/database"
	"github.com/kava-labs/kava-dev-proxy/logging"
)

const exchangeHistoryKeyPart = "exchange"

// History keeps the summaries of recent exchanges in a cache, keyed by
// exchange id, so a caller holding the X-Proxy-Exchange-Id of a response
// can look up how it was routed.
type History struct {
	cache  cache.Cache
	prefix string
	ttl    time.Duration
	*logging.ServiceLogger
}

var _ ExchangeObserver = (*History)(nil)

func NewHistory(c cache.Cache, prefix string, ttl time.Duration, logger *logging.ServiceLogger) *History {
	return &History{
		cache:         c,
		prefix:        prefix,
		ttl:           ttl,
		ServiceLogger: logger,
	}
}

// ObserveExchange implements ExchangeObserver.
func (h *History) ObserveExchange(ctx context.Context, summary ExchangeSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		h.Error().Err(err).Str("exchange_id", summary.ID).Msg("error encoding exchange summary")
		return
	}

	if err := h.cache.Set(context.WithoutCancel(ctx), h.key(summary.ID), data, h.ttl); err != nil {
		h.Error().Err(err).Str("exchange_id", summary.ID).Msg("error storing exchange summary")
	}
}

// Get returns the summary stored for id, or cache.ErrNotFound.
func (h *History) Get(ctx context.Context, id string) (ExchangeSummary, error) {
	var summary ExchangeSummary

	data, err := h.cache.Get(ctx, h.key(id))
	if err != nil {
		return summary, err
	}

	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("error decoding exchange summary %s: %w", id, err)
	}

	return summary, nil
}

func (h *History) key(id string) string {
	return cache.BuildKey(h.prefix, exchangeHistoryKeyPart, id)
}

// MetricRecorder persists a database.ExchangeMetric for every exchange.
// Saves happen in the background so a slow database never delays traffic.
type MetricRecorder struct {
	db      database.MetricsDatabase
	timeout time.Duration
	*logging.ServiceLogger
}

var _ ExchangeObserver = (*MetricRecorder)(nil)

func NewMetricRecorder(db database.MetricsDatabase, timeout time.Duration, logger *logging.ServiceLogger) *MetricRecorder {
	return &MetricRecorder{
		db:            db,
		timeout:       timeout,
		ServiceLogger: logger,
	}
}

// ObserveExchange implements ExchangeObserver.
func (r *MetricRecorder) ObserveExchange(ctx context.Context, summary ExchangeSummary) {
	metric := &database.ExchangeMetric{
		ExchangeID:                  summary.ID,
		Env:                         summary.Env,
		Route:                       summary.Route,
		Kind:                        string(summary.Kind),
		Method:                      summary.Method,
		UpstreamURL:                 summary.UpstreamURL,
		StatusCode:                  summary.StatusCode,
		ResponseLatencyMilliseconds: summary.Duration.Milliseconds(),
		RequestTime:                 summary.StartedAt,
	}
	if summary.Error != "" {
		message := summary.Error
		metric.Error = &message
	}

	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.db.SaveExchangeMetric(saveCtx, metric); err != nil {
			r.Error().Err(err).Str("exchange_id", metric.ExchangeID).Msg("error saving exchange metric")
		}
	}()
}
