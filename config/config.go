// package config provides functions and values
// for reading and validating dev proxy service configuration
// and the proxy plugin options merged from code and an external file
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ProxyServicePort               string
	LogLevel                       string
	ProxyEnv                       string
	ProxyConfigDir                 string
	ProxyConfigWatchEnabled        bool
	ProxyHostRoutesRaw             string
	ProxyHostRoutes                []HostRoute
	MetricsEnabled                 bool
	ExchangeHistoryEnabled         bool
	ExchangeHistoryTTL             time.Duration
	RedisEndpointURL               string
	RedisPassword                  string
	CachePrefix                    string
	MetricDatabaseEnabled          bool
	DatabaseName                   string
	DatabaseEndpointURL            string
	DatabaseUserName               string
	DatabasePassword               string
	DatabaseReadTimeoutSeconds     int64
	DatabaseSSLEnabled             bool
	DatabaseQueryLoggingEnabled    bool
	RunDatabaseMigrations          bool
	MetricPruningRoutineInterval   time.Duration
	MetricPruningRoutineDelayFirst time.Duration
	MetricPruningMaxRequestAgeDays int64
}

const (
	PROXY_SERVICE_PORT_ENVIRONMENT_KEY                     = "PROXY_SERVICE_PORT"
	DEFAULT_PROXY_SERVICE_PORT                             = "7777"
	LOG_LEVEL_ENVIRONMENT_KEY                              = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                      = "INFO"
	PROXY_ENV_ENVIRONMENT_KEY                              = "PROXY_ENV"
	PROXY_CONFIG_DIR_ENVIRONMENT_KEY                       = "PROXY_CONFIG_DIR"
	DEFAULT_PROXY_CONFIG_DIR                               = "."
	PROXY_CONFIG_WATCH_ENVIRONMENT_KEY                     = "PROXY_CONFIG_WATCH"
	DEFAULT_PROXY_CONFIG_WATCH                             = false
	PROXY_HOST_ROUTES_ENVIRONMENT_KEY                      = "PROXY_HOST_ROUTES"
	METRICS_ENABLED_ENVIRONMENT_KEY                        = "METRICS_ENABLED"
	DEFAULT_METRICS_ENABLED                                = true
	EXCHANGE_HISTORY_ENABLED_ENVIRONMENT_KEY               = "EXCHANGE_HISTORY_ENABLED"
	DEFAULT_EXCHANGE_HISTORY_ENABLED                       = true
	EXCHANGE_HISTORY_TTL_SECONDS_ENVIRONMENT_KEY           = "EXCHANGE_HISTORY_TTL_SECONDS"
	DEFAULT_EXCHANGE_HISTORY_TTL_SECONDS                   = 600
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                     = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                         = "REDIS_PASSWORD"
	CACHE_PREFIX_ENVIRONMENT_KEY                           = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                   = "devproxy"
	METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY                = "METRIC_DATABASE_ENABLED"
	DEFAULT_METRIC_DATABASE_ENABLED                        = false
	DATABASE_NAME_ENVIRONMENT_KEY                          = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                  = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                      = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                      = "DATABASE_PASSWORD"
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY          = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                  = 60
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                   = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY         = "DATABASE_QUERY_LOGGING_ENABLED"
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                = "RUN_DATABASE_MIGRATIONS"
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_KEY            = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS        = 3600
	METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_KEY     = "METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS = 10
	METRIC_PRUNING_MAX_REQUEST_AGE_DAYS_KEY                = "METRIC_PRUNING_MAX_REQUEST_AGE_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_REQUEST_AGE_DAYS            = 7
)

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultBool fetches a bool from an environment variable, or if not set
// or not parseable returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// EnvOrDefaultInt fetches an int from an environment variable, or if not set
// or not parseable returns the fallback value
func EnvOrDefaultInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fallback
		}
		return parsed
	}
	return fallback
}

// HostRoute is a route the dev server forwards on its own, without
// rewriting or observing it
type HostRoute struct {
	Path   string
	Target string
}

// ParseRawHostRoutes parses a comma separated list of path>target pairs,
// e.g. `/auth>http://localhost:9000,/static>http://localhost:9001`
// returning the routes in the order given and error (if any)
func ParseRawHostRoutes(raw string) ([]HostRoute, error) {
	var hostRoutes []HostRoute

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return hostRoutes, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		path, target, found := strings.Cut(strings.TrimSpace(pair), ">")
		if !found {
			return nil, fmt.Errorf("expected path>target, got %q", pair)
		}

		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("host route path %q must start with /", path)
		}

		parsed, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q for host route %s: %w", target, path, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("target %q for host route %s must be an absolute url", target, path)
		}

		hostRoutes = append(hostRoutes, HostRoute{Path: path, Target: target})
	}

	return hostRoutes, nil
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	rawHostRoutes := EnvOrDefault(PROXY_HOST_ROUTES_ENVIRONMENT_KEY, "")
	// best effort, Validate reports malformed host routes
	hostRoutes, _ := ParseRawHostRoutes(rawHostRoutes)

	return Config{
		ProxyServicePort:               EnvOrDefault(PROXY_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_PROXY_SERVICE_PORT),
		LogLevel:                       EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		ProxyEnv:                       EnvOrDefault(PROXY_ENV_ENVIRONMENT_KEY, ""),
		ProxyConfigDir:                 EnvOrDefault(PROXY_CONFIG_DIR_ENVIRONMENT_KEY, DEFAULT_PROXY_CONFIG_DIR),
		ProxyConfigWatchEnabled:        EnvOrDefaultBool(PROXY_CONFIG_WATCH_ENVIRONMENT_KEY, DEFAULT_PROXY_CONFIG_WATCH),
		ProxyHostRoutesRaw:             rawHostRoutes,
		ProxyHostRoutes:                hostRoutes,
		MetricsEnabled:                 EnvOrDefaultBool(METRICS_ENABLED_ENVIRONMENT_KEY, DEFAULT_METRICS_ENABLED),
		ExchangeHistoryEnabled:         EnvOrDefaultBool(EXCHANGE_HISTORY_ENABLED_ENVIRONMENT_KEY, DEFAULT_EXCHANGE_HISTORY_ENABLED),
		ExchangeHistoryTTL:             time.Duration(EnvOrDefaultInt(EXCHANGE_HISTORY_TTL_SECONDS_ENVIRONMENT_KEY, DEFAULT_EXCHANGE_HISTORY_TTL_SECONDS)) * time.Second,
		RedisEndpointURL:               EnvOrDefault(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY, ""),
		RedisPassword:                  EnvOrDefault(REDIS_PASSWORD_ENVIRONMENT_KEY, ""),
		CachePrefix:                    EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),
		MetricDatabaseEnabled:          EnvOrDefaultBool(METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY, DEFAULT_METRIC_DATABASE_ENABLED),
		DatabaseName:                   EnvOrDefault(DATABASE_NAME_ENVIRONMENT_KEY, ""),
		DatabaseEndpointURL:            EnvOrDefault(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY, ""),
		DatabaseUserName:               EnvOrDefault(DATABASE_USERNAME_ENVIRONMENT_KEY, ""),
		DatabasePassword:               EnvOrDefault(DATABASE_PASSWORD_ENVIRONMENT_KEY, ""),
		DatabaseReadTimeoutSeconds:     int64(EnvOrDefaultInt(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS)),
		DatabaseSSLEnabled:             EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:    EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		RunDatabaseMigrations:          EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, false),
		MetricPruningRoutineInterval:   time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)) * time.Second,
		MetricPruningRoutineDelayFirst: time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS)) * time.Second,
		MetricPruningMaxRequestAgeDays: int64(EnvOrDefaultInt(METRIC_PRUNING_MAX_REQUEST_AGE_DAYS_KEY, DEFAULT_METRIC_PRUNING_MAX_REQUEST_AGE_DAYS)),
	}
}
