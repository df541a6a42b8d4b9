package service_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/kava-labs/kava-dev-proxy/service"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the
// proxy goroutines and the reads of the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Count(substr string) int {
	return strings.Count(b.String(), substr)
}

func boolPtr(b bool) *bool {
	return &b
}

func levelPtr(level logging.LogLevel) *logging.LogLevel {
	return &level
}

// plainLogger is a logger config producing lines without color or timestamp.
func plainLogger(level logging.LogLevel) config.LoggerConfig {
	return config.LoggerConfig{
		Level:     levelPtr(level),
		Colorful:  boolPtr(false),
		Timestamp: boolPtr(false),
	}
}

func targetsFor(env config.EnvKey, routes ...config.RouteTarget) config.Targets {
	return config.Targets{env: config.RouteTargets(routes)}
}

func bare(key, target string) config.RouteTarget {
	return config.RouteTarget{Key: key, Value: config.Bare(target)}
}

// startProxy activates a plugin built from options, with no external
// config, and serves it. Unrouted requests get 404.
func startProxy(t *testing.T, options config.Options, opts ...service.PluginOption) (*service.Plugin, *httptest.Server, *syncBuffer) {
	t.Helper()
	t.Setenv(logging.NO_COLOR_ENVIRONMENT_KEY, "1")

	logs := &syncBuffer{}
	opts = append([]service.PluginOption{
		service.WithConfigDir(t.TempDir()),
		service.WithLogOutput(logs),
	}, opts...)

	plugin := service.NewPlugin(options, opts...)
	plugin.Activate(service.CommandServe)

	proxy := httptest.NewServer(plugin.Handler(http.NotFoundHandler()))
	t.Cleanup(proxy.Close)

	return plugin, proxy, logs
}
