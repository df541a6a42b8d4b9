// package routines provides configuration and logic
// for running background routines such as metric pruning
// for removing old exchange metrics
package routines

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kava-labs/kava-dev-proxy/clients/database"
	"github.com/kava-labs/kava-dev-proxy/logging"
)

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval         time.Duration
	StartDelay       time.Duration
	MaxMetricAgeDays int64
	Database         database.MetricsDatabase
	Logger           logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical exchange metrics
type MetricPruningRoutine struct {
	id               string
	interval         time.Duration
	startDelay       time.Duration
	maxMetricAgeDays int64
	db               database.MetricsDatabase
	logging.ServiceLogger
}

// Run runs the metric pruning routine until ctx is done, returning
// error (if any) from starting the routine and an error channel
// which any errors encountered during running will be sent on.
// Errors nobody is receiving are dropped.
func (mpr *MetricPruningRoutine) Run(ctx context.Context) (<-chan error, error) {
	if mpr.interval <= 0 {
		return nil, fmt.Errorf("invalid metric pruning interval %s", mpr.interval)
	}

	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		select {
		case <-ctx.Done():
			return
		case <-time.After(mpr.startDelay):
		}

		ticker := time.NewTicker(mpr.interval)
		defer ticker.Stop()

		for {
			mpr.prune(ctx, errorChannel)

			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				mpr.Trace().Msg(fmt.Sprintf("%s tick at %+v", mpr.id, tick))
			}
		}
	}()

	return errorChannel, nil
}

func (mpr *MetricPruningRoutine) prune(ctx context.Context, errorChannel chan<- error) {
	mpr.Debug().Msg(fmt.Sprintf("%s pruning exchange metrics older than %d days", mpr.id, mpr.maxMetricAgeDays))

	err := mpr.db.DeleteExchangeMetricsOlderThanNDays(ctx, mpr.maxMetricAgeDays)
	if err == nil {
		return
	}

	mpr.Error().Msg(fmt.Sprintf("%s error %s pruning exchange metrics", mpr.id, err))

	select {
	case errorChannel <- err:
	default:
	}
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Database == nil {
		return nil, fmt.Errorf("metric pruning routine requires a database")
	}

	return &MetricPruningRoutine{
		id:               uuid.New().String(),
		interval:         config.Interval,
		startDelay:       config.StartDelay,
		maxMetricAgeDays: config.MaxMetricAgeDays,
		db:               config.Database,
		ServiceLogger:    config.Logger,
	}, nil
}
