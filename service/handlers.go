package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kava-labs/kava-dev-proxy/clients/cache"
	"github.com/kava-labs/kava-dev-proxy/config"
)

const (
	HealthcheckPath   = "/healthcheck"
	ServicecheckPath  = "/servicecheck"
	MetricsPath       = "/metrics"
	ControlPathPrefix = "/_proxy"
	StatePath         = ControlPathPrefix + "/state"
	RoutesPath        = ControlPathPrefix + "/routes"
	EnvironmentPath   = ControlPathPrefix + "/env"
	TargetsPath       = ControlPathPrefix + "/targets"
	EnablePath        = ControlPathPrefix + "/enable"
	DisablePath       = ControlPathPrefix + "/disable"
	ReloadPath        = ControlPathPrefix + "/reload"
	ExchangesPath     = ControlPathPrefix + "/exchanges"
)

// createRouter registers the control api, every request it doesn't
// handle goes to the proxied routes
func createRouter(service *ProxyService) http.Handler {
	r := chi.NewRouter()

	r.Get(HealthcheckPath, createHealthcheckHandler(service))
	r.Get(ServicecheckPath, createServicecheckHandler(service))

	if service.Metrics != nil {
		r.Method(http.MethodGet, MetricsPath, service.Metrics.Handler())
	}

	r.Route(ControlPathPrefix, func(r chi.Router) {
		r.Get("/state", createStateHandler(service))
		r.Get("/routes", createRoutesHandler(service))
		r.Put("/env", createUpdateEnvironmentHandler(service))
		r.Put("/targets", createUpdateTargetsHandler(service))
		r.Post("/enable", createEnableHandler(service))
		r.Post("/disable", createDisableHandler(service))
		r.Post("/reload", createReloadHandler(service))
		r.Get("/exchanges/{id}", createExchangeHandler(service))
	})

	notFound := service.Plugin.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, ErrRouteNotFound.Error(), http.StatusNotFound)
	}))
	r.NotFound(notFound.ServeHTTP)
	r.MethodNotAllowed(notFound.ServeHTTP)

	return r
}

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the proxy service is able to connect to
// it's dependencies and functioning as expected
func createHealthcheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var combinedErrors error

		service.Debug().Msg("/healthcheck called")

		// check that the database is reachable
		err := service.Database.HealthCheck()
		if err != nil {
			errMsg := fmt.Errorf("proxy service unable to connect to database: %v", err)
			combinedErrors = errors.Join(combinedErrors, errMsg)
		}

		// check that the exchange history cache is reachable
		err = service.Cache.Healthcheck(r.Context())
		if err != nil {
			service.Logger.Error().
				Err(err).
				Msg("cache healthcheck failed")

			errMsg := fmt.Errorf("proxy service unable to connect to cache: %v", err)
			combinedErrors = errors.Join(combinedErrors, errMsg)
		}

		if combinedErrors != nil {
			w.WriteHeader(http.StatusInternalServerError)

			w.Write([]byte(combinedErrors.Error()))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("proxy service is healthy"))
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok if the proxy service is running
func createServicecheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/servicecheck called")

		w.WriteHeader(http.StatusOK)

		w.Write([]byte("proxy service is in service"))
	}
}

func createStateHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeState(service, w)
	}
}

func createRoutesHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		table := service.Plugin.GenerateProxyConfig()

		response := RoutesResponse{
			Env:    table.Env,
			Routes: table.Entries(),
		}

		if err := MarshalJSONResponse(&response, w); err != nil {
			service.Error().Err(err).Msg("error encoding routes response")
		}
	}
}

func createUpdateEnvironmentHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var request UpdateEnvironmentRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Env == "" {
			writeError(service, w, http.StatusBadRequest, "expected a json body with a non empty env")
			return
		}

		service.Plugin.UpdateEnvironment(request.Env)
		service.Info().Str("env", string(request.Env)).Msg("proxy environment updated")

		writeState(service, w)
	}
}

func createUpdateTargetsHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var targets config.Targets
		if err := json.NewDecoder(r.Body).Decode(&targets); err != nil {
			writeError(service, w, http.StatusBadRequest, fmt.Sprintf("invalid targets: %v", err))
			return
		}

		service.Plugin.UpdateTargets(targets)
		service.Info().Int("envs", len(targets)).Msg("proxy targets updated")

		writeState(service, w)
	}
}

func createEnableHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Plugin.EnableProxy()
		writeState(service, w)
	}
}

func createDisableHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Plugin.DisableProxy()
		writeState(service, w)
	}
}

func createReloadHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Reload()
		writeState(service, w)
	}
}

// createExchangeHandler creates a handler returning the summary of a
// recent exchange by the id sent back in its X-Proxy-Exchange-Id header
func createExchangeHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if service.History == nil {
			writeError(service, w, http.StatusNotFound, "exchange history is disabled")
			return
		}

		id := chi.URLParam(r, "id")

		summary, err := service.History.Get(r.Context(), id)
		switch {
		case errors.Is(err, cache.ErrNotFound):
			writeError(service, w, http.StatusNotFound, fmt.Sprintf("no exchange %s", id))
			return
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			service.Error().Err(err).Str("exchange_id", id).Msg("error reading exchange history")
			writeError(service, w, http.StatusInternalServerError, "error reading exchange history")
			return
		}

		if err := MarshalJSONResponse(&summary, w); err != nil {
			service.Error().Err(err).Msg("error encoding exchange response")
		}
	}
}

func writeState(service *ProxyService, w http.ResponseWriter) {
	state := service.Plugin.State()
	if err := MarshalJSONResponse(&state, w); err != nil {
		service.Error().Err(err).Msg("error encoding state response")
	}
}

func writeError(service *ProxyService, w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		service.Error().Err(err).Msg("error encoding error response")
	}
}

// MarshalJSONResponse marshals an interface into the response body and sets JSON content type headers
func MarshalJSONResponse(obj interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		return err
	}
	return nil
}
