package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/kava-labs/kava-dev-proxy/routes"
)

// CommandServe is the host command under which the dev server runs,
// a plugin configured with DevOnly generates no routes for any other.
const CommandServe = "serve"

// State is the part of the effective configuration the control surface
// changes, as reported by Plugin.State.
type State struct {
	Env     config.EnvKey    `json:"env"`
	Targets config.Targets   `json:"targets"`
	Logger  logging.Settings `json:"logger"`
	Enabled bool             `json:"enabled"`
}

func (s State) clone() State {
	s.Targets = s.Targets.Clone()
	return s
}

func initialState(options config.Options) State {
	return State{
		Env:     options.EffectiveEnv(),
		Targets: options.Targets.Clone(),
		Logger:  options.Logger.Resolve(),
		Enabled: options.IsEnabled(),
	}
}

// snapshot is one immutable build of the effective configuration. Every
// exchange holds the snapshot that routed it until it ends, so a rebuild
// never changes how an exchange already in flight is logged.
type snapshot struct {
	options              config.Options
	state                State
	table                routes.Table
	generated            int
	logger               *logging.ProxyLogger
	pipeline             Pipeline
	filters              FilterGate
	maxBufferedBodyBytes int64
	observers            []ExchangeObserver
	handlers             map[string]http.Handler
}

func (s *snapshot) observe(r *http.Request, summary ExchangeSummary) {
	for _, observer := range s.observers {
		observer.ObserveExchange(r.Context(), summary)
	}
}

// Plugin turns the proxy options into routes and serves them. Until
// Activate is called it routes nothing. Control calls (UpdateEnvironment,
// UpdateTargets, EnableProxy, DisableProxy) rebuild the routes at once,
// requests already in flight finish with the configuration they started with.
type Plugin struct {
	mu      sync.Mutex
	inline  config.Options
	options config.Options
	state   State
	active  bool

	configDir     string
	hostRoutes    []routes.Entry
	logOutput     io.Writer
	serviceLogger *logging.ServiceLogger
	observers     []ExchangeObserver
	metrics       *Metrics

	current atomic.Pointer[snapshot]
}

type PluginOption func(*Plugin)

// WithConfigDir sets the directory probed for an external config file,
// the working directory by default.
func WithConfigDir(dir string) PluginOption {
	return func(p *Plugin) {
		p.configDir = dir
	}
}

// WithHostRoutes adds routes the host already serves. They are forwarded
// without rewrite or observation and win over generated routes with the
// same match path.
func WithHostRoutes(entries ...routes.Entry) PluginOption {
	return func(p *Plugin) {
		p.hostRoutes = append(p.hostRoutes, entries...)
	}
}

// WithLogOutput sends the traffic log to out instead of stdout or the
// configured log file.
func WithLogOutput(out io.Writer) PluginOption {
	return func(p *Plugin) {
		p.logOutput = out
	}
}

func WithServiceLogger(logger *logging.ServiceLogger) PluginOption {
	return func(p *Plugin) {
		p.serviceLogger = logger
	}
}

// WithObservers registers observers notified of every finished exchange.
func WithObservers(observers ...ExchangeObserver) PluginOption {
	return func(p *Plugin) {
		p.observers = append(p.observers, observers...)
	}
}

// WithMetrics records exchanges, middleware failures and rebuilds in m.
func WithMetrics(m *Metrics) PluginOption {
	return func(p *Plugin) {
		p.metrics = m
		p.observers = append(p.observers, m)
	}
}

// NewPlugin creates a Plugin from inline options.
func NewPlugin(options config.Options, opts ...PluginOption) *Plugin {
	nop := logging.Nop()

	p := &Plugin{
		inline:        options,
		options:       options,
		state:         initialState(options),
		configDir:     ".",
		serviceLogger: &nop,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.current.Store(p.build())

	return p
}

// Activate merges the external config file into the inline options and
// generates the routes, which the Plugin serves from then on. It returns
// the route table, empty when the proxy is disabled or skipped.
//
// A missing or malformed external file leaves the inline options in use.
func (p *Plugin) Activate(command string) routes.Table {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.options.DevOnly && command != CommandServe {
		p.current.Load().logger.Infof("skipping proxy config, host is not serving (%s)", command)
		return routes.Table{Env: p.state.Env}
	}

	p.options = p.inline
	external, path, err := config.LoadExternal(p.configDir)
	switch {
	case errors.Is(err, config.ErrNoExternalConfig):
		p.serviceLogger.Debug().Str("dir", p.configDir).Msg("no external proxy config found")
	case err != nil:
		p.serviceLogger.Debug().Err(err).Str("path", path).Msg("ignoring external proxy config")
	default:
		p.options = config.Merge(p.inline, external)
	}

	p.state = initialState(p.options)
	p.active = true

	snap := p.install()

	if external != nil {
		snap.logger.Infof("loaded external proxy config %s", path)
	}
	if snap.generated > 0 {
		snap.logger.Infof("proxy config applied, %d routes", snap.generated)
	}
	snap.logger.Infof("proxy plugin initialized, env: %s", snap.state.Env)

	return snap.table
}

// Reload re-reads the external config file and rebuilds the routes.
// Changes made through the control surface since activation are dropped.
func (p *Plugin) Reload() routes.Table {
	return p.Activate(CommandServe)
}

// GenerateProxyConfig returns the routes the Plugin currently serves.
func (p *Plugin) GenerateProxyConfig() routes.Table {
	return p.current.Load().table
}

// UpdateEnvironment switches the routes to the targets of env.
func (p *Plugin) UpdateEnvironment(env config.EnvKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Env = env
	p.install().logger.Infof("environment switched to: %s", env)
}

// UpdateTargets replaces the targets of every environment present in targets.
func (p *Plugin) UpdateTargets(targets config.Targets) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Targets = p.state.Targets.Merge(targets)
	p.install().logger.Infof("proxy targets updated")
}

func (p *Plugin) EnableProxy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Enabled = true
	p.install().logger.Infof("proxy enabled")
}

// DisableProxy stops routing new requests. Exchanges in flight complete.
func (p *Plugin) DisableProxy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Enabled = false
	p.install().logger.Infof("proxy disabled")
}

// State returns a copy of the current state. Changing it has no effect
// on the Plugin.
func (p *Plugin) State() State {
	return p.current.Load().state.clone()
}

// Handler routes requests matching a route to its upstream and passes
// every other request to next.
func (p *Plugin) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := p.current.Load()

		entry, ok := snap.table.Match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		snap.handlers[entry.MatchPath].ServeHTTP(w, r)
	})
}

// install builds a snapshot from the current state and makes it current.
// Callers hold p.mu.
func (p *Plugin) install() *snapshot {
	snap := p.build()
	p.current.Store(snap)

	if p.metrics != nil {
		p.metrics.ConfigRebuilt()
	}
	p.serviceLogger.Debug().
		Str("env", string(snap.state.Env)).
		Bool("enabled", snap.state.Enabled).
		Int("routes", snap.table.Len()).
		Msg("proxy configuration rebuilt")

	return snap
}

func (p *Plugin) build() *snapshot {
	state := p.state.clone()
	logger := p.newLogger(state.Logger)

	var onFailure func(kind TrafficKind)
	if p.metrics != nil {
		onFailure = p.metrics.MiddlewareFailed
	}

	snap := &snapshot{
		options:              p.options,
		state:                state,
		table:                routes.Table{Env: state.Env},
		logger:               logger,
		pipeline:             NewPipeline(p.options, logger, onFailure),
		filters:              NewFilterGate(p.options),
		maxBufferedBodyBytes: p.options.EffectiveMaxBufferedBodyBytes(),
		observers:            p.observers,
		handlers:             map[string]http.Handler{},
	}

	if !p.active {
		return snap
	}

	generated := generateTable(snap)
	snap.generated = generated.Len()
	snap.table = generated.Overlay(p.hostRoutes)

	host := make(map[string]bool, len(p.hostRoutes))
	for _, entry := range p.hostRoutes {
		host[entry.MatchPath] = true
	}

	for _, entry := range snap.table.Entries() {
		if host[entry.MatchPath] {
			snap.handlers[entry.MatchPath] = newHostRouteProxy(entry)
			continue
		}
		snap.handlers[entry.MatchPath] = newRouteProxy(snap, entry)
	}

	return snap
}

func (p *Plugin) newLogger(settings logging.Settings) *logging.ProxyLogger {
	if p.logOutput != nil {
		return logging.NewProxyLoggerWithOutput(settings, p.logOutput)
	}
	return logging.NewProxyLogger(settings)
}

// generateTable resolves the routes of the snapshot environment, falling
// back to the local environment when it has no targets.
func generateTable(snap *snapshot) routes.Table {
	logger := snap.logger
	env := snap.state.Env

	if !snap.state.Enabled {
		logger.Infof("proxy disabled")
		return routes.Table{Env: env}
	}

	targets, ok := snap.state.Targets[env]
	if !ok {
		targets, ok = snap.state.Targets[config.EnvLocal]
		if ok {
			logger.Debugf("no targets for env %s, using %s", env, config.EnvLocal)
		}
	}
	if !ok {
		logger.Infof("no proxy targets for env %s", env)
		return routes.Table{Env: env}
	}

	if logger.ShouldLog(logging.LevelDebug) {
		encoded, err := json.Marshal(targets)
		if err == nil {
			logger.Debugf("generating proxy config, targets: %s", encoded)
		}
	}

	return routes.Resolve(env, targets, snap.options.RewriteRules, logger.Debugf)
}
