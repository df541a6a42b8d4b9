package service_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/kava-labs/kava-dev-proxy/routes"
	"github.com/kava-labs/kava-dev-proxy/service"
)

func TestUnitTestPluginRoutesNothingBeforeActivate(t *testing.T) {
	plugin := service.NewPlugin(config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:1")),
	}, service.WithConfigDir(t.TempDir()), service.WithLogOutput(&syncBuffer{}))

	assert.Equal(t, 0, plugin.GenerateProxyConfig().Len())
}

func TestUnitTestActivateGeneratesRoutes(t *testing.T) {
	plugin, _, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal,
			bare("v3", "http://localhost:8080"),
			bare("auth", "http://localhost:9000"),
		),
		Logger: plainLogger(logging.LevelInfo),
	})

	table := plugin.GenerateProxyConfig()

	assert.Equal(t, config.EnvLocal, table.Env)
	assert.Equal(t, 2, table.Len())
	entry, ok := table.Get("/auth")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9000", entry.Target)
	assert.Contains(t, logs.String(), "proxy config applied, 2 routes")
	assert.Contains(t, logs.String(), "proxy plugin initialized, env: local")
}

func TestUnitTestDisabledProxyGeneratesNoRoutes(t *testing.T) {
	upstream := newEchoUpstream(t)

	plugin, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", upstream.URL)),
		Logger:  plainLogger(logging.LevelInfo),
		Enabled: boolPtr(false),
	})

	res, _ := get(t, proxy.URL+"/api/v3/users")

	assert.Equal(t, 0, plugin.GenerateProxyConfig().Len())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, logs.String(), "proxy disabled")
}

func TestUnitTestDevOnlySkipsOtherCommands(t *testing.T) {
	logs := &syncBuffer{}
	plugin := service.NewPlugin(config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelInfo),
		DevOnly: true,
	}, service.WithConfigDir(t.TempDir()), service.WithLogOutput(logs))

	table := plugin.Activate("build")

	assert.Equal(t, 0, table.Len())
	assert.Contains(t, logs.String(), "skipping proxy config, host is not serving (build)")

	table = plugin.Activate(service.CommandServe)
	assert.Equal(t, 1, table.Len())
}

func TestUnitTestMissingEnvFallsBackToLocal(t *testing.T) {
	plugin, _, _ := startProxy(t, config.Options{
		Env:     "staging",
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelInfo),
	})

	table := plugin.GenerateProxyConfig()

	assert.Equal(t, config.EnvKey("staging"), table.Env)
	assert.Equal(t, 1, table.Len())
}

func TestUnitTestNoTargetsForEnv(t *testing.T) {
	plugin, _, logs := startProxy(t, config.Options{
		Env:     "staging",
		Targets: targetsFor("production", bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelInfo),
	})

	assert.Equal(t, 0, plugin.GenerateProxyConfig().Len())
	assert.Contains(t, logs.String(), "no proxy targets for env staging")
}

func TestUnitTestExternalConfigOverridesInlineOptions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proxy.config.json"), []byte(`{
		"env": "staging",
		"targets": {"staging": {"auth": "http://localhost:9000"}},
		"logger": {"level": "INFO", "colorful": false, "timestamp": false}
	}`), 0o644))

	plugin, _, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelNone),
	}, service.WithConfigDir(dir))

	table := plugin.GenerateProxyConfig()

	assert.Equal(t, config.EnvKey("staging"), table.Env)
	assert.Equal(t, []string{"/auth"}, matchPaths(table))
	assert.Contains(t, logs.String(), "loaded external proxy config "+filepath.Join(dir, "proxy.config.json"))
}

func TestUnitTestExternalConfigCanDisableProxy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proxy.config.json"), []byte(`{"enabled": false}`), 0o644))

	plugin, _, _ := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelNone),
	}, service.WithConfigDir(dir))

	assert.Equal(t, 0, plugin.GenerateProxyConfig().Len())
	assert.False(t, plugin.State().Enabled)
}

func TestUnitTestMalformedExternalConfigIsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proxy.config.yaml"), []byte("targets: [unclosed"), 0o644))

	plugin, _, _ := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelNone),
	}, service.WithConfigDir(dir))

	assert.Equal(t, []string{"/api/v3"}, matchPaths(plugin.GenerateProxyConfig()))
}

func TestUnitTestUpdateEnvironmentSwitchesRoutes(t *testing.T) {
	local := newEchoUpstream(t)
	staging := newEchoUpstream(t)

	targets := targetsFor(config.EnvLocal, bare("v3", local.URL))
	targets["staging"] = config.RouteTargets{bare("v3", staging.URL)}

	plugin, proxy, logs := startProxy(t, config.Options{
		Targets: targets,
		Logger:  plainLogger(logging.LevelInfo),
	})

	plugin.UpdateEnvironment("staging")

	get(t, proxy.URL+"/api/v3/users")

	assert.Equal(t, config.EnvKey("staging"), plugin.State().Env)
	assert.Contains(t, logs.String(), "environment switched to: staging")
	assert.Contains(t, logs.String(), "🚀 proxy to: "+staging.URL+"/users")
	assert.NotContains(t, logs.String(), "🚀 proxy to: "+local.URL)
}

func TestUnitTestUpdateTargetsReplacesOnlyGivenEnvs(t *testing.T) {
	targets := targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080"))
	targets["staging"] = config.RouteTargets{bare("v3", "http://staging:8080")}

	plugin, _, _ := startProxy(t, config.Options{
		Targets: targets,
		Logger:  plainLogger(logging.LevelNone),
	})

	plugin.UpdateTargets(targetsFor(config.EnvLocal, bare("auth", "http://localhost:9000")))

	state := plugin.State()
	assert.Equal(t, []string{"/auth"}, matchPaths(plugin.GenerateProxyConfig()))
	assert.Equal(t, config.RouteTargets{bare("v3", "http://staging:8080")}, state.Targets["staging"])
}

func TestUnitTestEnableAndDisableProxy(t *testing.T) {
	upstream := newEchoUpstream(t)

	plugin, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", upstream.URL)),
		Logger:  plainLogger(logging.LevelInfo),
	})

	plugin.DisableProxy()
	res, _ := get(t, proxy.URL+"/api/v3/users")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.False(t, plugin.State().Enabled)

	plugin.EnableProxy()
	res, _ = get(t, proxy.URL+"/api/v3/users")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, plugin.State().Enabled)

	assert.Contains(t, logs.String(), "proxy disabled")
	assert.Contains(t, logs.String(), "proxy enabled")
}

func TestUnitTestStateIsACopy(t *testing.T) {
	plugin, _, _ := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelNone),
	})

	state := plugin.State()
	state.Env = "production"
	state.Enabled = false
	state.Targets[config.EnvLocal][0] = bare("v3", "http://elsewhere")

	current := plugin.State()
	assert.Equal(t, config.EnvLocal, current.Env)
	assert.True(t, current.Enabled)
	assert.Equal(t, "http://localhost:8080", current.Targets[config.EnvLocal][0].Value.Target)
}

func TestUnitTestReloadDropsControlChanges(t *testing.T) {
	plugin, _, _ := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", "http://localhost:8080")),
		Logger:  plainLogger(logging.LevelNone),
	})

	plugin.DisableProxy()
	table := plugin.Reload()

	assert.Equal(t, 1, table.Len())
	assert.True(t, plugin.State().Enabled)
}

func TestUnitTestHostRoutesWinOverGeneratedRoutes(t *testing.T) {
	generated := newEchoUpstream(t)
	host := newEchoUpstream(t)

	plugin, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("v3", generated.URL)),
		Logger:  plainLogger(logging.LevelInfo),
	}, service.WithHostRoutes(routes.Entry{Key: "/api/v3", MatchPath: "/api/v3", Target: host.URL}))

	res, body := get(t, proxy.URL+"/api/v3/users")

	assert.Equal(t, 1, plugin.GenerateProxyConfig().Len())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "/api/v3/users", body)
	assert.Empty(t, res.Header.Get(service.ExchangeIDHeader))
	assert.NotContains(t, logs.String(), "proxy to:")
}

func matchPaths(table routes.Table) []string {
	var paths []string
	for _, entry := range table.Entries() {
		paths = append(paths, entry.MatchPath)
	}
	return paths
}
