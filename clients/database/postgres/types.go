package postgres

import (
	"time"

	"github.com/kava-labs/kava-dev-proxy/clients/database"
	"github.com/uptrace/bun"
)

// ExchangeMetric is the row of one proxied exchange
type ExchangeMetric struct {
	bun.BaseModel `bun:"table:exchange_metrics,alias:em"`

	ID                          int64  `bun:",pk,autoincrement"`
	ExchangeID                  string `bun:"exchange_id"`
	Env                         string
	Route                       string
	Kind                        string
	Method                      string
	UpstreamURL                 string `bun:"upstream_url"`
	StatusCode                  int
	ResponseLatencyMilliseconds int64
	Error                       *string
	RequestTime                 time.Time
}

func (em *ExchangeMetric) ToExchangeMetric() *database.ExchangeMetric {
	return &database.ExchangeMetric{
		ID:                          em.ID,
		ExchangeID:                  em.ExchangeID,
		Env:                         em.Env,
		Route:                       em.Route,
		Kind:                        em.Kind,
		Method:                      em.Method,
		UpstreamURL:                 em.UpstreamURL,
		StatusCode:                  em.StatusCode,
		ResponseLatencyMilliseconds: em.ResponseLatencyMilliseconds,
		Error:                       em.Error,
		RequestTime:                 em.RequestTime,
	}
}

func convertExchangeMetric(metric *database.ExchangeMetric) *ExchangeMetric {
	return &ExchangeMetric{
		ID:                          metric.ID,
		ExchangeID:                  metric.ExchangeID,
		Env:                         metric.Env,
		Route:                       metric.Route,
		Kind:                        metric.Kind,
		Method:                      metric.Method,
		UpstreamURL:                 metric.UpstreamURL,
		StatusCode:                  metric.StatusCode,
		ResponseLatencyMilliseconds: metric.ResponseLatencyMilliseconds,
		Error:                       metric.Error,
		RequestTime:                 metric.RequestTime,
	}
}
