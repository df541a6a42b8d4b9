package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ValidLogLevels = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var validLogLevel bool
	var allErrs error

	for _, validLevel := range ValidLogLevels {
		if config.LogLevel == validLevel {
			validLogLevel = true
			break
		}
	}

	if !validLogLevel {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	port, err := strconv.Atoi(config.ProxyServicePort)

	if err != nil || port <= 0 || port > 65535 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", PROXY_SERVICE_PORT_ENVIRONMENT_KEY, config.ProxyServicePort))
	}

	if config.ProxyConfigDir == "" {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", PROXY_CONFIG_DIR_ENVIRONMENT_KEY, config.ProxyConfigDir))
	}

	if _, err := ParseRawHostRoutes(config.ProxyHostRoutesRaw); err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s: %v", PROXY_HOST_ROUTES_ENVIRONMENT_KEY, config.ProxyHostRoutesRaw, err))
	}

	if config.ExchangeHistoryEnabled {
		if config.ExchangeHistoryTTL <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", EXCHANGE_HISTORY_TTL_SECONDS_ENVIRONMENT_KEY, config.ExchangeHistoryTTL))
		}
		if strings.Contains(config.CachePrefix, ":") {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not contain colon symbol", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
		if config.CachePrefix == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
	}

	if config.MetricDatabaseEnabled {
		if config.DatabaseEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty when %s is set", DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY, config.DatabaseEndpointURL, METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY))
		}
		if config.MetricPruningMaxRequestAgeDays < 1 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", METRIC_PRUNING_MAX_REQUEST_AGE_DAYS_KEY, config.MetricPruningMaxRequestAgeDays))
		}
		if config.MetricPruningRoutineInterval <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_KEY, config.MetricPruningRoutineInterval))
		}
	}

	return allErrs
}
