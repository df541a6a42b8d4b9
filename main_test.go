package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/service"
)

const testProxyConfig = `
env: staging
targets:
  local:
    v3: http://localhost:8080
  staging:
    v3: https://staging.example.com
    auth:
      target: https://auth.staging.example.com
      rewrite: /auth/v2
`

func runRoutes(t *testing.T, args ...string) (service.RoutesResponse, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"routes"}, args...))

	var response service.RoutesResponse
	if err := cmd.Execute(); err != nil {
		return response, err
	}

	require.NoError(t, json.Unmarshal(out.Bytes(), &response))
	return response, nil
}

func TestUnitTestRoutesCommandPrintsExternalConfigRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proxy.config.yaml"), []byte(testProxyConfig), 0o644))

	response, err := runRoutes(t, "--config-dir", dir)
	require.NoError(t, err)

	assert.Equal(t, config.EnvKey("staging"), response.Env)
	require.Len(t, response.Routes, 2)
	assert.Equal(t, "/api/v3", response.Routes[0].MatchPath)
	assert.Equal(t, "https://staging.example.com", response.Routes[0].Target)
	assert.Equal(t, "/auth", response.Routes[1].MatchPath)
	assert.Equal(t, "/auth/v2", response.Routes[1].RewritePrefix)
}

func TestUnitTestRoutesCommandWithoutExternalConfig(t *testing.T) {
	response, err := runRoutes(t, "--config-dir", t.TempDir(), "--env", "staging")
	require.NoError(t, err)

	assert.Equal(t, config.EnvKey("staging"), response.Env)
	assert.Empty(t, response.Routes)
}

func TestUnitTestInvalidConfigIsRejected(t *testing.T) {
	t.Setenv(config.LOG_LEVEL_ENVIRONMENT_KEY, "LOUD")

	_, err := runRoutes(t, "--config-dir", t.TempDir())

	assert.ErrorContains(t, err, config.LOG_LEVEL_ENVIRONMENT_KEY)
}

func TestUnitTestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv(config.PROXY_SERVICE_PORT_ENVIRONMENT_KEY, "7000")
	t.Setenv(config.PROXY_ENV_ENVIRONMENT_KEY, "local")

	cmd := newRootCommand()
	serve, _, err := cmd.Find([]string{service.CommandServe})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{"--port", "7100", "--watch"}))

	serviceConfig, err := loadConfig(serve, cliFlags{port: "7100", watch: true})
	require.NoError(t, err)

	assert.Equal(t, "7100", serviceConfig.ProxyServicePort)
	assert.True(t, serviceConfig.ProxyConfigWatchEnabled)
	assert.Equal(t, "local", serviceConfig.ProxyEnv)
}
