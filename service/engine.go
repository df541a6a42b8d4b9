package service

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/kava-labs/kava-dev-proxy/routes"
)

const requestBodyHint = "request body is only captured by middleware"

var (
	ErrRouteNotFound     = errors.New("no proxy route matches the request")
	errWebSocketDisabled = errors.New("websocket upgrades are disabled for this route")
	errWebSocketFiltered = errors.New("websocket upgrade rejected by filter")
)

// routeProxy forwards the requests of one route through an
// httputil.ReverseProxy whose hooks observe every exchange.
type routeProxy struct {
	snap      *snapshot
	entry     routes.Entry
	target    *url.URL
	transport config.TransportOptions
	tracker   *Tracker
	proxy     *httputil.ReverseProxy
	now       func() time.Time
}

func newRouteProxy(snap *snapshot, entry routes.Entry) http.Handler {
	target, err := url.Parse(entry.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		snap.logger.Errorf("invalid target %q for route %s: %v", entry.Target, entry.MatchPath, err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid proxy target", http.StatusBadGateway)
		})
	}

	rp := &routeProxy{
		snap:      snap,
		entry:     entry,
		target:    target,
		transport: snap.options.Transport.Overlay(entry.Transport),
		tracker:   NewTracker(),
		now:       time.Now,
	}

	rp.proxy = &httputil.ReverseProxy{
		Rewrite:        rp.rewrite,
		ModifyResponse: rp.modifyResponse,
		ErrorHandler:   rp.handleError,
		Transport:      newTransport(rp.transport),
	}

	return rp
}

// newTransport returns a transport honoring the timeout and certificate
// options of a route. The timeout bounds the wait for response headers,
// streamed bodies may run for as long as the upstream keeps them open.
func newTransport(options config.TransportOptions) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = options.Timeout()
	if !options.IsSecure() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

func (rp *routeProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind := Classify(r)
	if kind == TrafficSSE && !rp.entry.SSE.IsEnabled() {
		kind = TrafficHTTP
	}

	requestURI := r.URL.RequestURI()
	ex := &exchange{
		id:          uuid.New().String(),
		kind:        kind,
		snapshot:    rp.snap,
		route:       rp.entry.MatchPath,
		method:      r.Method,
		requestURI:  requestURI,
		startedAt:   rp.now(),
		upstreamURL: routes.UpstreamURL(rp.entry, requestURI),
		observed:    true,
	}

	r = r.WithContext(withExchange(r.Context(), ex))
	w.Header().Set(ExchangeIDHeader, ex.id)

	rp.tracker.Begin(ex.id)

	if kind == TrafficWebSocket {
		ex.protocols = websocket.Subprotocols(r)

		if !rp.entry.WebSocket.IsEnabled() {
			rp.reject(w, r, ex, errWebSocketDisabled)
			return
		}

		if !rp.snap.filters.AllowWebSocket(requestURI, ex.protocols) {
			if rp.snap.filters.RejectsFilteredUpgrades() {
				rp.reject(w, r, ex, errWebSocketFiltered)
				return
			}
			ex.observed = false
		}
	}

	rp.proxy.ServeHTTP(w, r)
}

// reject answers an upgrade that is not forwarded with 403.
func (rp *routeProxy) reject(w http.ResponseWriter, r *http.Request, ex *exchange, reason error) {
	duration, hasDuration := rp.tracker.End(ex.id)

	rp.snap.logger.Warnf("%s %s: %v", r.Method, ex.upstreamURL, reason)
	rp.snap.observe(r, ex.summary(http.StatusForbidden, duration, hasDuration, reason))

	http.Error(w, reason.Error(), http.StatusForbidden)
}

// rewrite prepares the outgoing request and runs the request side hooks.
func (rp *routeProxy) rewrite(pr *httputil.ProxyRequest) {
	rp.setUpstreamURL(pr)
	pr.SetXForwarded()

	if !rp.transport.ShouldChangeOrigin() {
		pr.Out.Host = pr.In.Host
	}

	ex, ok := exchangeFrom(pr.In.Context())
	if !ok {
		return
	}

	setHeaders(pr.Out.Header, rp.transport.Headers)
	switch ex.kind {
	case TrafficWebSocket:
		if rp.entry.WebSocket != nil {
			setHeaders(pr.Out.Header, rp.entry.WebSocket.Headers)
		}
		rp.onUpgradeRequest(pr, ex)
	case TrafficSSE:
		if rp.entry.SSE != nil {
			setHeaders(pr.Out.Header, rp.entry.SSE.Headers)
		}
		rp.onOutgoingRequest(pr, ex)
	default:
		rp.onOutgoingRequest(pr, ex)
	}
}

// setUpstreamURL points the outgoing request at the route target. The
// prefix is stripped from the escaped path so encoded segments such as
// %2F are forwarded as they arrived.
func (rp *routeProxy) setUpstreamURL(pr *httputil.ProxyRequest) {
	escaped := routes.Rewrite(pr.In.URL.EscapedPath(), rp.entry.RewritePrefix)
	path, err := url.PathUnescape(escaped)
	if err != nil {
		path, escaped = routes.Rewrite(pr.In.URL.Path, rp.entry.RewritePrefix), ""
	}

	pr.Out.URL.Path = path
	pr.Out.URL.RawPath = escaped
	pr.SetURL(rp.target)

	if path == "" {
		// the match path itself goes to the target path, no slash appended
		pr.Out.URL.Path = rp.target.Path
		pr.Out.URL.RawPath = rp.target.RawPath
	}
}

func (rp *routeProxy) onOutgoingRequest(pr *httputil.ProxyRequest, ex *exchange) {
	snap := rp.snap
	if !snap.filters.AllowRequest(ex.requestURI, ex.method) {
		return
	}

	ctx := pr.In.Context()
	if ex.kind == TrafficSSE {
		snap.pipeline.RunSSE(ctx, pr.Out, pr.In)
	} else {
		snap.pipeline.RunHTTP(ctx, pr.Out, pr.In)
	}

	snap.logger.LogRequest(ex.method, ex.upstreamURL)

	if snap.logger.ShouldLog(logging.LevelDebug) {
		snap.logger.LogDetailedRequest(ex.method, ex.upstreamURL, logging.RequestDetails{
			Headers:     pr.Out.Header.Clone(),
			Body:        requestBodyForLog(ex),
			QueryParams: true,
		})
	}
}

func (rp *routeProxy) onUpgradeRequest(pr *httputil.ProxyRequest, ex *exchange) {
	if !ex.observed {
		return
	}

	rp.snap.pipeline.RunWebSocket(pr.In.Context(), pr.Out, pr.In)
	rp.snap.logger.LogWebSocketConnection(ex.upstreamURL, ex.protocols)
}

// modifyResponse observes the upstream response before it is copied to
// the client. Event streams and upgraded connections are tapped, never
// buffered.
func (rp *routeProxy) modifyResponse(resp *http.Response) error {
	r := resp.Request
	ex, ok := exchangeFrom(r.Context())
	if !ok {
		return nil
	}

	snap := rp.snap
	logger := snap.logger
	duration, hasDuration := rp.tracker.End(correlationKey(r))
	defer snap.observe(r, ex.summary(resp.StatusCode, duration, hasDuration, nil))

	if resp.StatusCode == http.StatusSwitchingProtocols {
		if ex.observed {
			resp.Body = newWebSocketTap(resp.Body, ex.upstreamURL, logger, snap.maxBufferedBodyBytes)
		}
		return nil
	}

	eventStream := isEventStreamResponse(resp.Header) && rp.entry.SSE.IsEnabled()
	if eventStream {
		setSSEResponseHeaders(resp.Header)
	}

	if !snap.filters.AllowResponse(ex.requestURI, ex.method, resp.StatusCode) {
		return nil
	}

	logger.LogResponse(ex.method, ex.upstreamURL, resp.StatusCode, duration, hasDuration)

	if isEventStreamResponse(resp.Header) {
		if eventStream {
			logger.LogSSEConnection(ex.method, ex.upstreamURL, resp.StatusCode)
			resp.Body = newSSETap(resp.Body, ex, logger, snap.maxBufferedBodyBytes)
		}
		if logger.ShouldLog(logging.LevelDebug) {
			logger.LogDetailedResponse(ex.method, ex.upstreamURL, resp.StatusCode, logging.ResponseDetails{
				Headers:     resp.Header.Clone(),
				Body:        "[SSE stream, not captured]",
				Duration:    duration,
				HasDuration: hasDuration,
			})
		}
		return nil
	}

	if !logger.ShouldLog(logging.LevelDebug) {
		return nil
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		logger.LogDetailedResponse(ex.method, ex.upstreamURL, resp.StatusCode, logging.ResponseDetails{
			Headers:     resp.Header.Clone(),
			Duration:    duration,
			HasDuration: hasDuration,
		})
		return nil
	}

	headers := resp.Header.Clone()
	status := resp.StatusCode
	resp.Body = newCaptureBody(resp.Body, snap.maxBufferedBodyBytes, func(body []byte, truncated bool, err error) {
		details := logging.ResponseDetails{
			Headers:     headers,
			Body:        responseBodyForLog(body, truncated, err),
			Duration:    duration,
			HasDuration: hasDuration,
		}
		logger.LogDetailedResponse(ex.method, ex.upstreamURL, status, details)
	})

	return nil
}

// setSSEResponseHeaders keeps intermediaries from buffering an event
// stream. Values the upstream chose are left alone.
func setSSEResponseHeaders(h http.Header) {
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "no-cache")
	}
	if h.Get("X-Accel-Buffering") == "" {
		h.Set("X-Accel-Buffering", "no")
	}
	h.Del("Content-Length")
}

// handleError reports a failed exchange and answers 502.
func (rp *routeProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	duration, hasDuration := rp.tracker.End(correlationKey(r))

	ex, ok := exchangeFrom(r.Context())
	if !ok {
		rp.snap.logger.LogError(r.Method, rp.entry.Target+r.URL.RequestURI(), err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	if ex.kind == TrafficWebSocket {
		rp.snap.logger.LogWebSocketError(ex.upstreamURL, err)
	} else {
		rp.snap.logger.LogError(ex.method, ex.upstreamURL, err)
	}

	rp.snap.observe(r, ex.summary(http.StatusBadGateway, duration, hasDuration, err))

	w.WriteHeader(http.StatusBadGateway)
}

// newHostRouteProxy forwards a route the host configured itself, unchanged
// and unobserved.
func newHostRouteProxy(entry routes.Entry) http.Handler {
	target, err := url.Parse(entry.Target)
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid proxy target", http.StatusBadGateway)
		})
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = routes.Rewrite(pr.In.URL.Path, entry.RewritePrefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
		},
	}
}

func setHeaders(header http.Header, values map[string]string) {
	for name, value := range values {
		header.Set(name, value)
	}
}

func requestBodyForLog(ex *exchange) interface{} {
	if body := ex.capturedRequestBody(); len(body) > 0 {
		if gjson.ValidBytes(body) {
			return json.RawMessage(body)
		}
		return string(body)
	}

	switch ex.method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return requestBodyHint
	}
	return nil
}

func responseBodyForLog(body []byte, truncated bool, err error) interface{} {
	switch {
	case err != nil:
		return "failed to read response body: " + err.Error()
	case len(body) == 0:
		return nil
	case !truncated && gjson.ValidBytes(body):
		return json.RawMessage(body)
	}
	return string(body)
}
