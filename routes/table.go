// package routes resolves the configured targets of one environment into
// the table of routes the proxy serves
package routes

import (
	"strings"

	"github.com/kava-labs/kava-dev-proxy/config"
)

// legacyPaths maps the route keys of older configurations to their match paths.
var legacyPaths = map[string]string{
	"v3": "/api/v3",
	"v2": "/api",
	"v1": "/api/v1",
}

// Entry is one resolved route.
type Entry struct {
	Key           string                   `json:"key"`
	MatchPath     string                   `json:"matchPath"`
	Target        string                   `json:"target"`
	RewritePrefix string                   `json:"rewrite"`
	WebSocket     *config.WebSocketConfig  `json:"ws,omitempty"`
	SSE           *config.SSEConfig        `json:"sse,omitempty"`
	Transport     *config.TransportOptions `json:"transport,omitempty"`
}

// Table holds the routes of one environment keyed by match path, in the
// order the paths were first resolved. A Table is never modified after
// Resolve returns it.
type Table struct {
	Env     config.EnvKey
	entries []Entry
	index   map[string]int
}

// Logf receives debug messages about added and skipped routes.
type Logf func(format string, args ...interface{})

// DerivePath returns the match path implied by a route key.
func DerivePath(key string) string {
	if path, ok := legacyPaths[key]; ok {
		return path
	}
	if key == "" {
		return ""
	}
	if strings.HasPrefix(key, "/") {
		return key
	}
	return "/" + key
}

// Resolve builds the route table of env from its targets. Routes without a
// target or match path are skipped. When two routes resolve to the same
// match path the later one wins.
func Resolve(env config.EnvKey, targets config.RouteTargets, rewriteRules map[string]string, logf Logf) Table {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	table := Table{
		Env:   env,
		index: make(map[string]int, len(targets)),
	}

	for _, route := range targets {
		value := route.Value
		entry := Entry{
			Key:       route.Key,
			Target:    value.Target,
			MatchPath: DerivePath(route.Key),
		}

		if value.Kind == config.DetailedRoute {
			if value.Path != "" {
				entry.MatchPath = value.Path
			}
			entry.RewritePrefix = value.Rewrite
			entry.WebSocket = value.WebSocket
			entry.SSE = value.SSE
			entry.Transport = value.Transport
		}

		if entry.Target == "" || entry.MatchPath == "" {
			logf("skipping route %q: missing target or match path", route.Key)
			continue
		}

		if entry.RewritePrefix == "" {
			entry.RewritePrefix = rewriteRules[entry.MatchPath]
		}
		if entry.RewritePrefix == "" {
			entry.RewritePrefix = entry.MatchPath
		}

		table.set(entry)
		logf("added route: %s -> %s => %s (rewrite: %s)", entry.Key, entry.MatchPath, entry.Target, entry.RewritePrefix)
	}

	return table
}

func (t *Table) set(entry Entry) {
	if i, ok := t.index[entry.MatchPath]; ok {
		t.entries[i] = entry
		return
	}
	t.index[entry.MatchPath] = len(t.entries)
	t.entries = append(t.entries, entry)
}

// Len returns the number of routes.
func (t Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the routes in table order.
func (t Table) Entries() []Entry {
	entries := make([]Entry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Get returns the route registered for matchPath.
func (t Table) Get(matchPath string) (Entry, bool) {
	i, ok := t.index[matchPath]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Match returns the first route, in table order, whose match path is a
// prefix of path.
func (t Table) Match(path string) (Entry, bool) {
	for _, entry := range t.entries {
		if strings.HasPrefix(path, entry.MatchPath) {
			return entry, true
		}
	}
	return Entry{}, false
}

// Overlay returns a copy of t with entries added. An entry whose match path
// is already routed replaces that route in place.
func (t Table) Overlay(entries []Entry) Table {
	overlaid := Table{
		Env:     t.Env,
		entries: t.Entries(),
		index:   make(map[string]int, len(t.index)+len(entries)),
	}
	for path, i := range t.index {
		overlaid.index[path] = i
	}
	for _, entry := range entries {
		if entry.MatchPath == "" || entry.Target == "" {
			continue
		}
		overlaid.set(entry)
	}
	return overlaid
}
