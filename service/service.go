// package service provides functions and methods
// for creating and running the dev proxy: the plugin that routes,
// observes and logs proxied traffic, and the api used to control it
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/negroni"

	"github.com/kava-labs/kava-dev-proxy/clients/cache"
	"github.com/kava-labs/kava-dev-proxy/clients/database"
	"github.com/kava-labs/kava-dev-proxy/clients/database/noop"
	"github.com/kava-labs/kava-dev-proxy/clients/database/postgres"
	"github.com/kava-labs/kava-dev-proxy/clients/database/postgres/migrations"
	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/kava-labs/kava-dev-proxy/routes"
)

const metricSaveTimeout = 5 * time.Second

// ProxyService represents an instance of the dev proxy
type ProxyService struct {
	httpProxy *http.Server
	Plugin    *Plugin
	Cache     cache.Cache
	Database  database.MetricsDatabase
	History   *History
	Metrics   *Metrics
	*logging.ServiceLogger
}

// New returns a new ProxyService with the specified config and error (if any).
// options are the inline plugin options, merged with the external config
// file found in the configured directory when the plugin activates.
func New(ctx context.Context, serviceConfig config.Config, options config.Options, serviceLogger *logging.ServiceLogger) (ProxyService, error) {
	service := ProxyService{
		ServiceLogger: serviceLogger,
	}

	proxyCache, err := createCache(serviceConfig, serviceLogger)
	if err != nil {
		return ProxyService{}, fmt.Errorf("error creating cache: %w", err)
	}
	service.Cache = proxyCache

	db, err := createDatabase(ctx, serviceConfig, serviceLogger)
	if err != nil {
		return ProxyService{}, fmt.Errorf("error creating database: %w", err)
	}
	service.Database = db

	if serviceConfig.ProxyEnv != "" {
		options.Env = config.EnvKey(serviceConfig.ProxyEnv)
	}

	pluginOptions := []PluginOption{
		WithConfigDir(serviceConfig.ProxyConfigDir),
		WithServiceLogger(serviceLogger),
		WithHostRoutes(hostRouteEntries(serviceConfig.ProxyHostRoutes)...),
	}

	if serviceConfig.MetricsEnabled {
		service.Metrics = NewMetrics()
		pluginOptions = append(pluginOptions, WithMetrics(service.Metrics))
	}

	if serviceConfig.ExchangeHistoryEnabled {
		service.History = NewHistory(proxyCache, serviceConfig.CachePrefix, serviceConfig.ExchangeHistoryTTL, serviceLogger)
		pluginOptions = append(pluginOptions, WithObservers(service.History))
	}

	if serviceConfig.MetricDatabaseEnabled {
		pluginOptions = append(pluginOptions, WithObservers(NewMetricRecorder(db, metricSaveTimeout, serviceLogger)))
	}

	service.Plugin = NewPlugin(options, pluginOptions...)

	table := service.Plugin.Activate(CommandServe)
	serviceLogger.Info().
		Str("env", string(table.Env)).
		Int("routes", table.Len()).
		Msg("proxy routes generated")

	n := negroni.New()
	n.Use(createRecoveryMiddleware(serviceLogger))
	n.Use(createRequestLoggingMiddleware(serviceLogger))
	n.UseHandler(createRouter(&service))

	// create an http server for the caller to start at their own discretion
	service.httpProxy = &http.Server{
		Addr:              fmt.Sprintf(":%s", serviceConfig.ProxyServicePort),
		Handler:           n,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return service, nil
}

// Handler returns the root handler of the service, the proxied routes
// together with the control api.
func (p *ProxyService) Handler() http.Handler {
	return p.httpProxy.Handler
}

// Run runs the proxy service, returning error (if any) in the event
// the proxy service stops
func (p *ProxyService) Run() error {
	err := p.httpProxy.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new connections and waits for the ones in
// flight until ctx is done.
func (p *ProxyService) Shutdown(ctx context.Context) error {
	return p.httpProxy.Shutdown(ctx)
}

// Reload re-reads the external config file and rebuilds the proxy routes
func (p *ProxyService) Reload() {
	table := p.Plugin.Reload()

	p.Info().
		Str("env", string(table.Env)).
		Int("routes", table.Len()).
		Msg("proxy routes reloaded")
}

func createCache(serviceConfig config.Config, serviceLogger *logging.ServiceLogger) (cache.Cache, error) {
	if serviceConfig.RedisEndpointURL == "" {
		serviceLogger.Debug().Msg("using in memory exchange history")
		return cache.NewInMemoryCache(), nil
	}

	serviceLogger.Debug().Str("address", serviceConfig.RedisEndpointURL).Msg("using redis exchange history")

	return cache.NewRedisCache(&cache.RedisConfig{
		Address:           serviceConfig.RedisEndpointURL,
		Password:          serviceConfig.RedisPassword,
		DefaultExpiration: serviceConfig.ExchangeHistoryTTL,
	}, serviceLogger)
}

func createDatabase(ctx context.Context, serviceConfig config.Config, serviceLogger *logging.ServiceLogger) (database.MetricsDatabase, error) {
	if !serviceConfig.MetricDatabaseEnabled {
		return noop.New(), nil
	}

	client, err := postgres.NewClient(postgres.DatabaseConfig{
		DatabaseName:        serviceConfig.DatabaseName,
		DatabaseEndpointURL: serviceConfig.DatabaseEndpointURL,
		DatabaseUsername:    serviceConfig.DatabaseUserName,
		DatabasePassword:    serviceConfig.DatabasePassword,
		ReadTimeoutSeconds:  serviceConfig.DatabaseReadTimeoutSeconds,
		SSLEnabled:          serviceConfig.DatabaseSSLEnabled,
		QueryLoggingEnabled: serviceConfig.DatabaseQueryLoggingEnabled,
		Logger:              serviceLogger,
	})
	if err != nil {
		return nil, err
	}

	if serviceConfig.RunDatabaseMigrations {
		applied, err := client.Migrate(ctx, *migrations.Migrations)
		if err != nil {
			return nil, fmt.Errorf("error running migrations: %w", err)
		}
		serviceLogger.Info().Msg(fmt.Sprintf("applied migrations %v", applied))
	}

	return client, nil
}

func hostRouteEntries(hostRoutes []config.HostRoute) []routes.Entry {
	entries := make([]routes.Entry, 0, len(hostRoutes))
	for _, route := range hostRoutes {
		entries = append(entries, routes.Entry{
			Key:       route.Path,
			MatchPath: route.Path,
			Target:    route.Target,
		})
	}
	return entries
}
