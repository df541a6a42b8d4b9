package service

import (
	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/routes"
)

// RoutesResponse wraps values
// returned by calls to /_proxy/routes
type RoutesResponse struct {
	Env    config.EnvKey  `json:"env"`    // environment the routes were generated for
	Routes []routes.Entry `json:"routes"` // routes in match order, host routes included
}

// UpdateEnvironmentRequest is the body of calls to /_proxy/env
type UpdateEnvironmentRequest struct {
	Env config.EnvKey `json:"env"`
}

// ErrorResponse is the body of every failed control api call
type ErrorResponse struct {
	Error string `json:"error"`
}
