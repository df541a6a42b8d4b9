package config

import (
	"context"
	"net/http"

	"github.com/kava-labs/kava-dev-proxy/logging"
)

// EnvKey names a set of route targets. Callers may use any key,
// EnvLocal is the built-in default.
type EnvKey string

const EnvLocal EnvKey = "local"

// FilterAction decides what happens to a WebSocket upgrade rejected by
// the WebSocket filter.
type FilterAction string

const (
	// FilterActionObserveOnly forwards the upgrade without logging it
	// or running WebSocket middleware.
	FilterActionObserveOnly FilterAction = "observeOnly"
	// FilterActionReject answers the upgrade with 403 and never forwards it.
	FilterActionReject FilterAction = "reject"
)

const DefaultMaxBufferedBodyBytes int64 = 1 << 20

type (
	// RequestFilter reports whether a request is logged and sent through middleware.
	RequestFilter func(url, method string) bool
	// ResponseFilter reports whether a response is logged.
	ResponseFilter func(url, method string, status int) bool
	// WebSocketFilter reports whether an upgrade is logged and sent through
	// WebSocket middleware, see FilterAction for what happens otherwise.
	WebSocketFilter func(url string, protocols []string) bool
	// Middleware is a hook run before a request is forwarded. It may modify
	// out, the request sent upstream; in is the request received from the
	// client. A returned error is logged and does not stop the request.
	Middleware func(ctx context.Context, out *http.Request, in *http.Request) error
)

// Options configures the proxy plugin. Filters and middleware can only be
// supplied from code, every other field can also come from an external
// config file, see FileConfig.
type Options struct {
	Env          EnvKey
	Targets      Targets
	Logger       LoggerConfig
	RewriteRules map[string]string
	// Transport applies to every route and is overridden field by field
	// by a route's own transport options.
	Transport TransportOptions
	// DevOnly skips route generation unless the host is serving.
	DevOnly bool
	// Enabled defaults to true when nil.
	Enabled              *bool
	FilterAction         FilterAction
	MaxBufferedBodyBytes int64

	RequestFilter   RequestFilter
	ResponseFilter  ResponseFilter
	WebSocketFilter WebSocketFilter

	Middleware          []Middleware
	WebSocketMiddleware []Middleware
	SSEMiddleware       []Middleware
}

// IsEnabled reports whether the proxy is enabled, true unless set otherwise.
func (o Options) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// EffectiveEnv returns the configured environment, or EnvLocal.
func (o Options) EffectiveEnv() EnvKey {
	if o.Env == "" {
		return EnvLocal
	}
	return o.Env
}

// EffectiveFilterAction returns the configured filter action, or FilterActionObserveOnly.
func (o Options) EffectiveFilterAction() FilterAction {
	if o.FilterAction == "" {
		return FilterActionObserveOnly
	}
	return o.FilterAction
}

// EffectiveMaxBufferedBodyBytes returns the response capture cap, or DefaultMaxBufferedBodyBytes.
func (o Options) EffectiveMaxBufferedBodyBytes() int64 {
	if o.MaxBufferedBodyBytes <= 0 {
		return DefaultMaxBufferedBodyBytes
	}
	return o.MaxBufferedBodyBytes
}

// FileConfig is the data an external config file may set. A nil field
// means the key was absent from the file.
type FileConfig struct {
	Env                  *EnvKey           `json:"env,omitempty" yaml:"env,omitempty"`
	Targets              Targets           `json:"targets,omitempty" yaml:"targets,omitempty"`
	Logger               *LoggerConfig     `json:"logger,omitempty" yaml:"logger,omitempty"`
	RewriteRules         map[string]string `json:"rewriteRules,omitempty" yaml:"rewriteRules,omitempty"`
	Transport            *TransportOptions `json:"customProxyConfig,omitempty" yaml:"customProxyConfig,omitempty"`
	DevOnly              *bool             `json:"devOnly,omitempty" yaml:"devOnly,omitempty"`
	Enabled              *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	FilterAction         *FilterAction     `json:"filterAction,omitempty" yaml:"filterAction,omitempty"`
	MaxBufferedBodyBytes *int64            `json:"maxBufferedBodyBytes,omitempty" yaml:"maxBufferedBodyBytes,omitempty"`
}

// LoggerConfig is the user facing logger configuration, every field is optional.
type LoggerConfig struct {
	Level               *logging.LogLevel `json:"level,omitempty" yaml:"level,omitempty"`
	Colorful            *bool             `json:"colorful,omitempty" yaml:"colorful,omitempty"`
	Timestamp           *bool             `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ShowMethod          *bool             `json:"showMethod,omitempty" yaml:"showMethod,omitempty"`
	ShowStatus          *bool             `json:"showStatus,omitempty" yaml:"showStatus,omitempty"`
	ShowError           *bool             `json:"showError,omitempty" yaml:"showError,omitempty"`
	Prefix              *string           `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	ShowRequestHeaders  *bool             `json:"showRequestHeaders,omitempty" yaml:"showRequestHeaders,omitempty"`
	ShowRequestBody     *bool             `json:"showRequestBody,omitempty" yaml:"showRequestBody,omitempty"`
	ShowResponseHeaders *bool             `json:"showResponseHeaders,omitempty" yaml:"showResponseHeaders,omitempty"`
	ShowResponseBody    *bool             `json:"showResponseBody,omitempty" yaml:"showResponseBody,omitempty"`
	ShowQueryParams     *bool             `json:"showQueryParams,omitempty" yaml:"showQueryParams,omitempty"`
	ShowWsConnections   *bool             `json:"showWsConnections,omitempty" yaml:"showWsConnections,omitempty"`
	ShowWsMessages      *bool             `json:"showWsMessages,omitempty" yaml:"showWsMessages,omitempty"`
	ShowSseConnections  *bool             `json:"showSseConnections,omitempty" yaml:"showSseConnections,omitempty"`
	ShowSseMessages     *bool             `json:"showSseMessages,omitempty" yaml:"showSseMessages,omitempty"`
	MaxBodyLength       *int              `json:"maxBodyLength,omitempty" yaml:"maxBodyLength,omitempty"`
	MaxWsMessageLength  *int              `json:"maxWsMessageLength,omitempty" yaml:"maxWsMessageLength,omitempty"`
	MaxSseMessageLength *int              `json:"maxSseMessageLength,omitempty" yaml:"maxSseMessageLength,omitempty"`
	PrettifyJSON        *bool             `json:"prettifyJson,omitempty" yaml:"prettifyJson,omitempty"`
	File                *string           `json:"file,omitempty" yaml:"file,omitempty"`
}

// Resolve returns the logger settings with every unset field defaulted.
func (c LoggerConfig) Resolve() logging.Settings {
	s := logging.DefaultSettings()

	if c.Level != nil {
		s.Level = *c.Level
	}
	setBool(&s.Colorful, c.Colorful)
	setBool(&s.Timestamp, c.Timestamp)
	setBool(&s.ShowMethod, c.ShowMethod)
	setBool(&s.ShowStatus, c.ShowStatus)
	setBool(&s.ShowError, c.ShowError)
	if c.Prefix != nil {
		s.Prefix = *c.Prefix
	}
	setBool(&s.ShowRequestHeaders, c.ShowRequestHeaders)
	setBool(&s.ShowRequestBody, c.ShowRequestBody)
	setBool(&s.ShowResponseHeaders, c.ShowResponseHeaders)
	setBool(&s.ShowResponseBody, c.ShowResponseBody)
	setBool(&s.ShowQueryParams, c.ShowQueryParams)
	setBool(&s.ShowWsConnections, c.ShowWsConnections)
	setBool(&s.ShowWsMessages, c.ShowWsMessages)
	setBool(&s.ShowSseConnections, c.ShowSseConnections)
	setBool(&s.ShowSseMessages, c.ShowSseMessages)
	setInt(&s.MaxBodyLength, c.MaxBodyLength)
	setInt(&s.MaxWsMessageLength, c.MaxWsMessageLength)
	setInt(&s.MaxSseMessageLength, c.MaxSseMessageLength)
	setBool(&s.PrettifyJSON, c.PrettifyJSON)
	if c.File != nil {
		s.File = *c.File
	}

	return s
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil && *src > 0 {
		*dst = *src
	}
}
