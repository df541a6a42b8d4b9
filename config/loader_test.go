package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestUnitTestLoadExternalReturnsErrNoExternalConfigForEmptyDir(t *testing.T) {
	fileConfig, _, err := config.LoadExternal(t.TempDir())

	assert.Nil(t, fileConfig)
	assert.ErrorIs(t, err, config.ErrNoExternalConfig)
}

func TestUnitTestLoadExternalPrefersYAMLOverJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "proxy.config.json", `{"env": "from-json"}`)
	writeConfigFile(t, dir, "proxy.config.yml", "env: from-yml\n")

	fileConfig, path, err := config.LoadExternal(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "proxy.config.yml"), path)
	assert.Equal(t, config.EnvKey("from-yml"), *fileConfig.Env)
}

func TestUnitTestLoadExternalStopsAtFirstMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "proxy.config.yaml", "env: [unterminated\n")
	writeConfigFile(t, dir, "proxy.config.json", `{"env": "from-json"}`)

	fileConfig, _, err := config.LoadExternal(dir)

	assert.Nil(t, fileConfig)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrNoExternalConfig)
}

func TestUnitTestLoadExternalParsesFullJSONConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "proxy.config.json", `{
		"env": "staging",
		"enabled": false,
		"targets": {
			"staging": {"v3": "http://staging/api/v3"}
		},
		"logger": {"level": 4, "prefix": "[Dev]"},
		"rewriteRules": {"/api/v3": "/api"},
		"customProxyConfig": {"timeout": 1500, "changeOrigin": false},
		"filterAction": "reject",
		"maxBufferedBodyBytes": 2048
	}`)

	fileConfig, _, err := config.LoadExternal(dir)
	require.NoError(t, err)

	assert.Equal(t, config.EnvKey("staging"), *fileConfig.Env)
	assert.False(t, *fileConfig.Enabled)
	assert.Equal(t, []string{"v3"}, routeKeys(fileConfig.Targets["staging"]))
	assert.Equal(t, logging.LevelDebug, *fileConfig.Logger.Level)
	assert.Equal(t, "[Dev]", *fileConfig.Logger.Prefix)
	assert.Equal(t, "/api", fileConfig.RewriteRules["/api/v3"])
	assert.Equal(t, 1500, *fileConfig.Transport.TimeoutMillis)
	assert.False(t, fileConfig.Transport.ShouldChangeOrigin())
	assert.Equal(t, config.FilterActionReject, *fileConfig.FilterAction)
	assert.Equal(t, int64(2048), *fileConfig.MaxBufferedBodyBytes)
	assert.Nil(t, fileConfig.DevOnly)
}

func TestUnitTestParseFileConfigRejectsUnknownExtension(t *testing.T) {
	_, err := config.ParseFileConfig("proxy.config.toml", []byte(`env = "x"`))
	assert.Error(t, err)
}
