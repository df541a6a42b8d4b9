package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
)

// Pipeline runs the middleware configured for each traffic kind.
//
// The hooks of a kind run one at a time in registration order, each one
// returning before the next starts. A hook that returns an error or panics
// produces one error line and the following hooks still run. Nothing a
// hook does stops the request from being forwarded.
type Pipeline struct {
	http      []config.Middleware
	webSocket []config.Middleware
	sse       []config.Middleware
	logger    *logging.ProxyLogger
	onFailure func(kind TrafficKind)
}

// NewPipeline creates a Pipeline for the middleware in options. onFailure,
// when set, is called once for every failed hook.
func NewPipeline(options config.Options, logger *logging.ProxyLogger, onFailure func(kind TrafficKind)) Pipeline {
	return Pipeline{
		http:      append([]config.Middleware(nil), options.Middleware...),
		webSocket: append([]config.Middleware(nil), options.WebSocketMiddleware...),
		sse:       append([]config.Middleware(nil), options.SSEMiddleware...),
		logger:    logger,
		onFailure: onFailure,
	}
}

// RunHTTP runs the HTTP middleware and returns how many hooks failed.
func (p Pipeline) RunHTTP(ctx context.Context, out, in *http.Request) int {
	return p.run(ctx, TrafficHTTP, p.http, out, in)
}

// RunWebSocket runs the WebSocket middleware and returns how many hooks failed.
func (p Pipeline) RunWebSocket(ctx context.Context, out, in *http.Request) int {
	return p.run(ctx, TrafficWebSocket, p.webSocket, out, in)
}

// RunSSE runs the HTTP middleware followed by the SSE middleware and
// returns how many hooks failed.
func (p Pipeline) RunSSE(ctx context.Context, out, in *http.Request) int {
	failures := p.run(ctx, TrafficHTTP, p.http, out, in)
	return failures + p.run(ctx, TrafficSSE, p.sse, out, in)
}

func (p Pipeline) run(ctx context.Context, kind TrafficKind, hooks []config.Middleware, out, in *http.Request) int {
	failures := 0
	for i, hook := range hooks {
		err := runHook(ctx, hook, out, in)
		if err == nil {
			continue
		}

		failures++
		if p.logger != nil {
			p.logger.Errorf("%s middleware #%d failed: %v", kind, i+1, err)
		}
		if p.onFailure != nil {
			p.onFailure(kind)
		}
	}
	return failures
}

func runHook(ctx context.Context, hook config.Middleware, out, in *http.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook(ctx, out, in)
}

// CaptureRequestBody returns HTTP middleware that keeps up to limit bytes
// of the request body for the detailed request log. The body forwarded
// upstream is left whole.
func CaptureRequestBody(limit int64) config.Middleware {
	return func(ctx context.Context, out, in *http.Request) error {
		if out.Body == nil || out.Body == http.NoBody {
			return nil
		}

		ex, ok := exchangeFrom(ctx)
		if !ok {
			return nil
		}

		head, err := io.ReadAll(io.LimitReader(out.Body, limit))
		if err != nil {
			return fmt.Errorf("error reading request body: %w", err)
		}

		out.Body = readCloser{
			Reader: io.MultiReader(bytes.NewReader(head), out.Body),
			Closer: out.Body,
		}
		ex.setRequestBody(head)

		return nil
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
