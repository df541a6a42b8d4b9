package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// RouteKind tells the two shapes of a route value apart.
type RouteKind int

const (
	// BareTarget is a route given as just an upstream URL.
	BareTarget RouteKind = iota
	// DetailedRoute is a route given as an object.
	DetailedRoute
)

// RouteValue is the value of one route key: either a bare upstream URL or
// an object carrying the upstream plus optional path, rewrite and protocol
// overrides. Only Target is meaningful for a BareTarget.
type RouteValue struct {
	Kind      RouteKind
	Target    string
	Path      string
	Rewrite   string
	WebSocket *WebSocketConfig
	SSE       *SSEConfig
	Transport *TransportOptions
}

// detailedRoute is the wire shape of a DetailedRoute.
type detailedRoute struct {
	Target    string            `json:"target" yaml:"target"`
	Path      string            `json:"path,omitempty" yaml:"path,omitempty"`
	Rewrite   string            `json:"rewrite,omitempty" yaml:"rewrite,omitempty"`
	WebSocket *WebSocketConfig  `json:"ws,omitempty" yaml:"ws,omitempty"`
	SSE       *SSEConfig        `json:"sse,omitempty" yaml:"sse,omitempty"`
	Transport *TransportOptions `json:"transport,omitempty" yaml:"transport,omitempty"`
}

// Bare returns a BareTarget route value.
func Bare(target string) RouteValue {
	return RouteValue{Kind: BareTarget, Target: target}
}

func (v *RouteValue) fromDetailed(d detailedRoute) {
	*v = RouteValue{
		Kind:      DetailedRoute,
		Target:    d.Target,
		Path:      d.Path,
		Rewrite:   d.Rewrite,
		WebSocket: d.WebSocket,
		SSE:       d.SSE,
		Transport: d.Transport,
	}
}

func (v RouteValue) MarshalJSON() ([]byte, error) {
	if v.Kind == BareTarget {
		return json.Marshal(v.Target)
	}
	return json.Marshal(detailedRoute{
		Target:    v.Target,
		Path:      v.Path,
		Rewrite:   v.Rewrite,
		WebSocket: v.WebSocket,
		SSE:       v.SSE,
		Transport: v.Transport,
	})
}

func (v *RouteValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*v = RouteValue{}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var target string
		if err := json.Unmarshal(trimmed, &target); err != nil {
			return err
		}
		*v = Bare(target)
		return nil
	}

	var d detailedRoute
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return fmt.Errorf("route value must be a target URL or an object: %w", err)
	}
	v.fromDetailed(d)
	return nil
}

func (v *RouteValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = RouteValue{}
			return nil
		}
		*v = Bare(node.Value)
		return nil
	case yaml.MappingNode:
		var d detailedRoute
		if err := node.Decode(&d); err != nil {
			return err
		}
		v.fromDetailed(d)
		return nil
	}
	return fmt.Errorf("line %d: route value must be a target URL or a mapping", node.Line)
}

// RouteTarget is one key of an environment's route mapping.
type RouteTarget struct {
	Key   string
	Value RouteValue
}

// RouteTargets is the route mapping of one environment. It keeps the
// order the keys were written in, which decides precedence between
// routes resolving to the same path.
type RouteTargets []RouteTarget

// Get returns the value of key.
func (t RouteTargets) Get(key string) (RouteValue, bool) {
	for _, target := range t {
		if target.Key == key {
			return target.Value, true
		}
	}
	return RouteValue{}, false
}

func (t RouteTargets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, target := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(target.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(target.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *RouteTargets) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	token, err := dec.Token()
	if err != nil {
		return err
	}
	if token == nil {
		*t = nil
		return nil
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("route targets must be an object, got %v", token)
	}

	targets := RouteTargets{}
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("unexpected route key %v", token)
		}

		var value RouteValue
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("route %q: %w", key, err)
		}
		targets = append(targets, RouteTarget{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*t = targets
	return nil
}

func (t *RouteTargets) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: route targets must be a mapping", node.Line)
	}

	targets := make(RouteTargets, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value

		var value RouteValue
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("route %q: %w", key, err)
		}
		targets = append(targets, RouteTarget{Key: key, Value: value})
	}

	*t = targets
	return nil
}

// Targets maps each environment to its routes.
type Targets map[EnvKey]RouteTargets

// Clone returns a copy of t sharing no slices or maps with it.
func (t Targets) Clone() Targets {
	if t == nil {
		return nil
	}
	clone := make(Targets, len(t))
	for env, routes := range t {
		copied := make(RouteTargets, len(routes))
		for i, route := range routes {
			copied[i] = RouteTarget{Key: route.Key, Value: route.Value.clone()}
		}
		clone[env] = copied
	}
	return clone
}

// Merge returns t with every environment of update replacing the one in t.
func (t Targets) Merge(update Targets) Targets {
	merged := t.Clone()
	if merged == nil {
		merged = Targets{}
	}
	for env, routes := range update.Clone() {
		merged[env] = routes
	}
	return merged
}

func (v RouteValue) clone() RouteValue {
	if v.WebSocket != nil {
		ws := *v.WebSocket
		ws.Headers = cloneHeaders(ws.Headers)
		v.WebSocket = &ws
	}
	if v.SSE != nil {
		sse := *v.SSE
		sse.Headers = cloneHeaders(sse.Headers)
		v.SSE = &sse
	}
	if v.Transport != nil {
		transport := v.Transport.clone()
		v.Transport = &transport
	}
	return v
}

// WebSocketConfig overrides how a route handles WebSocket upgrades.
type WebSocketConfig struct {
	// Enabled defaults to true, a route with upgrades disabled refuses them.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Headers are set on upgrade requests sent upstream.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// IsEnabled reports whether upgrades are forwarded, c may be nil.
func (c *WebSocketConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// SSEConfig overrides how a route handles event-stream requests.
type SSEConfig struct {
	// Enabled defaults to true, when false event-stream requests are handled as plain HTTP.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Headers are set on event-stream requests sent upstream.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// IsEnabled reports whether event-stream handling applies, c may be nil.
func (c *SSEConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// TransportOptions tunes how requests reach the upstream.
type TransportOptions struct {
	// TimeoutMillis bounds the wait for the upstream response headers, zero means no timeout.
	TimeoutMillis *int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// ChangeOrigin rewrites the Host header to the upstream host, default true.
	ChangeOrigin *bool `json:"changeOrigin,omitempty" yaml:"changeOrigin,omitempty"`
	// Secure verifies upstream TLS certificates, default true.
	Secure *bool `json:"secure,omitempty" yaml:"secure,omitempty"`
	// Headers are set on every request sent upstream.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Overlay returns o with every field set in override replacing its own.
// Headers are merged key by key.
func (o TransportOptions) Overlay(override *TransportOptions) TransportOptions {
	merged := o.clone()
	if override == nil {
		return merged
	}
	if override.TimeoutMillis != nil {
		merged.TimeoutMillis = override.TimeoutMillis
	}
	if override.ChangeOrigin != nil {
		merged.ChangeOrigin = override.ChangeOrigin
	}
	if override.Secure != nil {
		merged.Secure = override.Secure
	}
	if len(override.Headers) > 0 {
		if merged.Headers == nil {
			merged.Headers = map[string]string{}
		}
		for name, value := range override.Headers {
			merged.Headers[name] = value
		}
	}
	return merged
}

// Timeout returns the upstream timeout, zero for none.
func (o TransportOptions) Timeout() time.Duration {
	if o.TimeoutMillis == nil || *o.TimeoutMillis <= 0 {
		return 0
	}
	return time.Duration(*o.TimeoutMillis) * time.Millisecond
}

// ShouldChangeOrigin reports whether the Host header is rewritten.
func (o TransportOptions) ShouldChangeOrigin() bool {
	return o.ChangeOrigin == nil || *o.ChangeOrigin
}

// IsSecure reports whether upstream certificates are verified.
func (o TransportOptions) IsSecure() bool {
	return o.Secure == nil || *o.Secure
}

func (o TransportOptions) clone() TransportOptions {
	o.Headers = cloneHeaders(o.Headers)
	return o
}

func cloneHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	for name, value := range headers {
		clone[name] = value
	}
	return clone
}
