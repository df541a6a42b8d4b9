package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"net/http"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/kava-dev-proxy/config"
)

// ProxyServiceClient provides a client
// for making requests and decoding responses
// to the dev proxy control API
type ProxyServiceClient struct {
	*http.Client
	config            ProxyServiceClientConfig
	DebugLogResponses bool
}

// ProxyServiceClientConfig wraps values used to
// create a new ProxyServiceClient
type ProxyServiceClientConfig struct {
	ProxyServiceHostname string
	DebugLogResponses    bool
}

// NewProxyServiceClient creates a new ProxyServiceClient
// using the provided config, returning the client and error (if any)
func NewProxyServiceClient(config ProxyServiceClientConfig) (*ProxyServiceClient, error) {
	httpClient := &http.Client{}
	return &ProxyServiceClient{
		Client:            httpClient,
		DebugLogResponses: config.DebugLogResponses,
		config:            config,
	}, nil
}

// WaitForReady polls `ServicecheckPath` until the proxy answers
// or maxWait elapses, returning the last error (if any)
func (c *ProxyServiceClient) WaitForReady(ctx context.Context, maxWait time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxElapsedTime = maxWait

	return backoff.Retry(func() error {
		request, err := c.newRequest(ctx, http.MethodGet, ServicecheckPath, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		return Call(*c, request, nil)
	}, backoff.WithContext(policy, ctx))
}

// GetState calls `StatePath` to get the current proxy state
func (c *ProxyServiceClient) GetState(ctx context.Context) (State, error) {
	var response State
	err := c.do(ctx, http.MethodGet, StatePath, nil, &response)
	return response, err
}

// GetRoutes calls `RoutesPath` to get the routes currently proxied
func (c *ProxyServiceClient) GetRoutes(ctx context.Context) (RoutesResponse, error) {
	var response RoutesResponse
	err := c.do(ctx, http.MethodGet, RoutesPath, nil, &response)
	return response, err
}

// UpdateEnvironment calls `EnvironmentPath` to switch the proxy
// to the targets of env, returning the new state
func (c *ProxyServiceClient) UpdateEnvironment(ctx context.Context, env config.EnvKey) (State, error) {
	var response State
	err := c.do(ctx, http.MethodPut, EnvironmentPath, UpdateEnvironmentRequest{Env: env}, &response)
	return response, err
}

// UpdateTargets calls `TargetsPath` to replace the targets of
// every environment in targets, returning the new state
func (c *ProxyServiceClient) UpdateTargets(ctx context.Context, targets config.Targets) (State, error) {
	var response State
	err := c.do(ctx, http.MethodPut, TargetsPath, targets, &response)
	return response, err
}

// EnableProxy calls `EnablePath`, returning the new state
func (c *ProxyServiceClient) EnableProxy(ctx context.Context) (State, error) {
	var response State
	err := c.do(ctx, http.MethodPost, EnablePath, nil, &response)
	return response, err
}

// DisableProxy calls `DisablePath`, returning the new state
func (c *ProxyServiceClient) DisableProxy(ctx context.Context) (State, error) {
	var response State
	err := c.do(ctx, http.MethodPost, DisablePath, nil, &response)
	return response, err
}

// GetExchange calls `ExchangesPath` to get the summary of the
// exchange answered with the given X-Proxy-Exchange-Id
func (c *ProxyServiceClient) GetExchange(ctx context.Context, id string) (ExchangeSummary, error) {
	var response ExchangeSummary
	err := c.do(ctx, http.MethodGet, ExchangesPath+"/"+id, nil, &response)
	return response, err
}

func (c *ProxyServiceClient) do(ctx context.Context, method, path string, params, result interface{}) error {
	request, err := c.newRequest(ctx, method, path, params)
	if err != nil {
		return err
	}
	return Call(*c, request, result)
}

func (c *ProxyServiceClient) newRequest(ctx context.Context, method, path string, params interface{}) (*http.Request, error) {
	request, err := CreateRequest(method, c.config.ProxyServiceHostname+path, params)
	if err != nil {
		return nil, err
	}
	return request.WithContext(ctx), nil
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message, url, statusCode}
}

// CreateRequest isolates duplicate code in creating http search request.
func CreateRequest(method string, path string, params interface{}) (*http.Request, error) {
	var buf bytes.Buffer
	var req *http.Request
	if params != nil {
		err := json.NewEncoder(&buf).Encode(&params)
		if err != nil {
			return req, err
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	if err != nil {
		return req, &RequestError{
			URL:     path,
			message: err.Error(),
		}
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Call makes an http request to a JSON HTTP api
// decoding the JSON response to the result interface if non-nil
// returning error (if any)
func Call(client ProxyServiceClient, request *http.Request, result interface{}) error {
	response, err := client.Do(request)

	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	defer response.Body.Close()

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		requestURL := request.URL.String()
		return &RequestError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			message:    fmt.Sprintf("request to %s error server http error %d", requestURL, response.StatusCode),
		}
	}

	// If no result is expected, don't attempt to decode a potentially
	// empty response stream and avoid incurring EOF errors
	if result == nil {
		return nil
	}
	// Check if debug is on
	if client.DebugLogResponses {
		var bodyBytes []byte
		if response.Body != nil {
			bodyBytes, err = io.ReadAll(response.Body)
			if err != nil {
				return &RequestError{
					URL:     request.URL.String(),
					message: err.Error(),
				}
			}
			fmt.Printf("Request Path %s \n Response Body %s \n  Response Status Code %d \n ", request.URL, string(bodyBytes), response.StatusCode)

		}
		// Repopulate body with the data read
		response.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	err = json.NewDecoder(response.Body).Decode(&result)
	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}
	return nil
}
