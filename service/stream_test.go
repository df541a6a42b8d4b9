package service_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
)

const eventually = 2 * time.Second

func newEventStreamUpstream(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Seen-Accept", r.Header.Get("Accept"))
		w.Header().Set("X-Seen-Token", r.Header.Get("X-Stream-Token"))
		w.WriteHeader(http.StatusOK)
		for _, event := range events {
			io.WriteString(w, event)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

func getEventStream(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	request.Header.Set("Accept", "text/event-stream")

	res, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res, string(body)
}

func TestUnitTestSSEStreamIsRelayedAndLogged(t *testing.T) {
	events := []string{
		"data: {\"n\": 1}\n\n",
		": keep-alive\n\n",
		"event: update\r\ndata: two\r\n\r\n",
	}
	upstream := newEventStreamUpstream(t, events...)

	logger := plainLogger(logging.LevelInfo)
	logger.ShowSseMessages = boolPtr(true)
	logger.PrettifyJSON = boolPtr(false)

	_, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, config.RouteTarget{
			Key: "events",
			Value: config.RouteValue{
				Kind:   config.DetailedRoute,
				Target: upstream.URL,
				SSE:    &config.SSEConfig{Headers: map[string]string{"X-Stream-Token": "abc"}},
			},
		}),
		Logger: logger,
	})

	res, body := getEventStream(t, proxy.URL+"/events/feed")

	assert.Equal(t, strings.Join(events, ""), body)
	assert.Equal(t, "abc", res.Header.Get("X-Seen-Token"))
	assert.Equal(t, "no-cache", res.Header.Get("Cache-Control"))
	assert.Equal(t, "no", res.Header.Get("X-Accel-Buffering"))

	streamURL := upstream.URL + "/feed"
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "📴 SSE closed: "+streamURL+" (2 messages, ")
	}, eventually, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "[GET] 📡 SSE stream: 200 "+streamURL)
	assert.Contains(t, logs.String(), "📨 SSE message: "+streamURL+` {"n":1}`)
	assert.Contains(t, logs.String(), "📨 SSE message: "+streamURL+" event: update")
	assert.NotContains(t, logs.String(), "keep-alive")
}

func TestUnitTestSSEMiddlewareRunsAfterHTTPMiddleware(t *testing.T) {
	upstream := newEventStreamUpstream(t, "data: one\n\n")

	var order []string
	_, proxy, _ := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("events", upstream.URL)),
		Logger:  plainLogger(logging.LevelNone),
		Middleware: []config.Middleware{
			func(ctx context.Context, out, in *http.Request) error {
				order = append(order, "http")
				return nil
			},
		},
		SSEMiddleware: []config.Middleware{
			func(ctx context.Context, out, in *http.Request) error {
				order = append(order, "sse")
				out.Header.Set("X-Stream-Token", "from-middleware")
				return nil
			},
		},
	})

	res, _ := getEventStream(t, proxy.URL+"/events")

	assert.Equal(t, []string{"http", "sse"}, order)
	assert.Equal(t, "from-middleware", res.Header.Get("X-Seen-Token"))
}

func TestUnitTestSSEDisabledRouteIsPlainHTTP(t *testing.T) {
	upstream := newEventStreamUpstream(t, "data: one\n\n")

	logger := plainLogger(logging.LevelInfo)
	logger.ShowSseMessages = boolPtr(true)

	_, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, config.RouteTarget{
			Key: "events",
			Value: config.RouteValue{
				Kind:   config.DetailedRoute,
				Target: upstream.URL,
				SSE:    &config.SSEConfig{Enabled: boolPtr(false), Headers: map[string]string{"X-Stream-Token": "abc"}},
			},
		}),
		Logger: logger,
	})

	res, body := getEventStream(t, proxy.URL+"/events")

	assert.Equal(t, "data: one\n\n", body)
	assert.Empty(t, res.Header.Get("X-Seen-Token"))
	assert.Empty(t, res.Header.Get("X-Accel-Buffering"))
	assert.Contains(t, logs.String(), "✅ 200 "+upstream.URL)
	assert.NotContains(t, logs.String(), "SSE")
}

func newWebSocketEchoUpstream(t *testing.T) (*httptest.Server, chan http.Header) {
	t.Helper()
	headers := make(chan http.Header, 1)
	upgrader := websocket.Upgrader{Subprotocols: []string{"graphql-ws"}}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(messageType, []byte("echo: "+string(data))); err != nil {
				return
			}
		}
	}))
	t.Cleanup(upstream.Close)
	return upstream, headers
}

func webSocketURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestUnitTestWebSocketRoundTrip(t *testing.T) {
	upstream, headers := newWebSocketEchoUpstream(t)

	logger := plainLogger(logging.LevelInfo)
	logger.ShowWsMessages = boolPtr(true)

	_, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, config.RouteTarget{
			Key: "ws",
			Value: config.RouteValue{
				Kind:      config.DetailedRoute,
				Target:    upstream.URL,
				WebSocket: &config.WebSocketConfig{Headers: map[string]string{"X-Socket-Token": "abc"}},
			},
		}),
		Logger: logger,
	})

	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws"}}
	conn, res, err := dialer.Dial(webSocketURL(proxy, "/ws/echo"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)
	assert.Equal(t, "graphql-ws", conn.Subprotocol())
	assert.Equal(t, "abc", (<-headers).Get("X-Socket-Token"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", string(reply))

	socketURL := upstream.URL + "/echo"
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "💬 WebSocket sent: "+socketURL+" (5 bytes) hello") &&
			strings.Contains(logs.String(), "💬 WebSocket received: "+socketURL+" (11 bytes) echo: hello")
	}, eventually, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "[GET] 🔌 WebSocket upgrade: "+socketURL+" (protocols: graphql-ws)")
}

func TestUnitTestWebSocketDisabledRouteIsForbidden(t *testing.T) {
	upstream, _ := newWebSocketEchoUpstream(t)

	_, proxy, logs := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, config.RouteTarget{
			Key: "ws",
			Value: config.RouteValue{
				Kind:      config.DetailedRoute,
				Target:    upstream.URL,
				WebSocket: &config.WebSocketConfig{Enabled: boolPtr(false)},
			},
		}),
		Logger: plainLogger(logging.LevelInfo),
	})

	_, res, err := websocket.DefaultDialer.Dial(webSocketURL(proxy, "/ws/echo"), nil)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, logs.String(), "[WARN]")
	assert.NotContains(t, logs.String(), "WebSocket upgrade")
}

func TestUnitTestWebSocketFilterActions(t *testing.T) {
	upstream, _ := newWebSocketEchoUpstream(t)

	tests := []struct {
		name       string
		action     config.FilterAction
		wantStatus int
	}{
		{name: "observe only forwards the upgrade", action: config.FilterActionObserveOnly, wantStatus: http.StatusSwitchingProtocols},
		{name: "reject refuses the upgrade", action: config.FilterActionReject, wantStatus: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var filtered []string
			_, proxy, logs := startProxy(t, config.Options{
				Targets:      targetsFor(config.EnvLocal, bare("ws", upstream.URL)),
				Logger:       plainLogger(logging.LevelInfo),
				FilterAction: tc.action,
				WebSocketFilter: func(url string, protocols []string) bool {
					filtered = append(filtered, url)
					return false
				},
			})

			conn, res, err := websocket.DefaultDialer.Dial(webSocketURL(proxy, "/ws/echo"), nil)
			if conn != nil {
				conn.Close()
			}
			if tc.wantStatus == http.StatusSwitchingProtocols {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.wantStatus, res.StatusCode)
			assert.Equal(t, []string{"/ws/echo"}, filtered)
			assert.NotContains(t, logs.String(), "WebSocket upgrade")
		})
	}
}

func TestUnitTestWebSocketMiddlewareRunsOnUpgrade(t *testing.T) {
	upstream, headers := newWebSocketEchoUpstream(t)

	httpHookRan := false
	_, proxy, _ := startProxy(t, config.Options{
		Targets: targetsFor(config.EnvLocal, bare("ws", upstream.URL)),
		Logger:  plainLogger(logging.LevelNone),
		Middleware: []config.Middleware{
			func(ctx context.Context, out, in *http.Request) error {
				httpHookRan = true
				return nil
			},
		},
		WebSocketMiddleware: []config.Middleware{
			func(ctx context.Context, out, in *http.Request) error {
				out.Header.Set("X-Socket-Token", fmt.Sprintf("for %s", in.URL.Path))
				return nil
			},
		},
	})

	conn, _, err := websocket.DefaultDialer.Dial(webSocketURL(proxy, "/ws/echo"), nil)
	require.NoError(t, err)
	conn.Close()

	assert.Equal(t, "for /ws/echo", (<-headers).Get("X-Socket-Token"))
	assert.False(t, httpHookRan)
}
