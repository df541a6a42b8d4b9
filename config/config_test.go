package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/stretchr/testify/assert"
)

var (
	proxyServicePort             = "7777"
	randomEnvironmentVariableKey = "TEST_DEV_PROXY_RANDOM_VALUE"
)

func TestUnitTestEnvODefaultReturnsDefaultIfEnvironmentVariableNotSet(t *testing.T) {
	err := os.Unsetenv(randomEnvironmentVariableKey)

	assert.Nil(t, err, "error clearing environment variable")

	defaultValue := "default"

	value := config.EnvOrDefault(randomEnvironmentVariableKey, defaultValue)

	assert.Equal(t, defaultValue, value)
}

func TestUnitTestEnvODefaultReturnsSetValue(t *testing.T) {
	setValue := "default"
	t.Setenv(randomEnvironmentVariableKey, setValue)

	value := config.EnvOrDefault(randomEnvironmentVariableKey, "")

	assert.Equal(t, setValue, value)
}

func TestUnitTestEnvOrDefaultBoolFallsBackOnGarbage(t *testing.T) {
	t.Setenv(randomEnvironmentVariableKey, "maybe")
	assert.True(t, config.EnvOrDefaultBool(randomEnvironmentVariableKey, true))

	t.Setenv(randomEnvironmentVariableKey, "false")
	assert.False(t, config.EnvOrDefaultBool(randomEnvironmentVariableKey, true))
}

func TestUnitTestEnvOrDefaultIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv(randomEnvironmentVariableKey, "ten")
	assert.Equal(t, 3, config.EnvOrDefaultInt(randomEnvironmentVariableKey, 3))

	t.Setenv(randomEnvironmentVariableKey, "10")
	assert.Equal(t, 10, config.EnvOrDefaultInt(randomEnvironmentVariableKey, 3))
}

func TestUnitTestReadConfigReturnsConfigWithValuesFromEnv(t *testing.T) {
	setDefaultEnv()
	t.Setenv(config.PROXY_ENV_ENVIRONMENT_KEY, "staging")
	t.Setenv(config.EXCHANGE_HISTORY_TTL_SECONDS_ENVIRONMENT_KEY, "30")

	readConfig := config.ReadConfig()

	assert.Equal(t, config.DEFAULT_LOG_LEVEL, readConfig.LogLevel)
	assert.Equal(t, proxyServicePort, readConfig.ProxyServicePort)
	assert.Equal(t, "staging", readConfig.ProxyEnv)
	assert.Equal(t, 30*time.Second, readConfig.ExchangeHistoryTTL)
	assert.Equal(t, config.DEFAULT_CACHE_PREFIX, readConfig.CachePrefix)
}

func setDefaultEnv() {
	os.Setenv(config.PROXY_SERVICE_PORT_ENVIRONMENT_KEY, proxyServicePort)
	os.Setenv(config.LOG_LEVEL_ENVIRONMENT_KEY, config.DEFAULT_LOG_LEVEL)
	os.Unsetenv(config.METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY)
}

func TestUnitTestParseRawHostRoutes(t *testing.T) {
	parsed, err := config.ParseRawHostRoutes("/auth>http://localhost:9000, /static>http://localhost:9001/assets")

	assert.Nil(t, err)
	assert.Equal(t, []config.HostRoute{
		{Path: "/auth", Target: "http://localhost:9000"},
		{Path: "/static", Target: "http://localhost:9001/assets"},
	}, parsed)

	parsed, err = config.ParseRawHostRoutes("")
	assert.Nil(t, err)
	assert.Empty(t, parsed)

	_, err = config.ParseRawHostRoutes("/auth=http://localhost:9000")
	assert.Error(t, err)

	_, err = config.ParseRawHostRoutes("auth>http://localhost:9000")
	assert.Error(t, err)

	_, err = config.ParseRawHostRoutes("/auth>localhost")
	assert.Error(t, err)
}
