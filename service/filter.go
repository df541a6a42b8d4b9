package service

import "github.com/kava-labs/kava-dev-proxy/config"

// FilterGate decides which exchanges are observed, that is logged and
// sent through middleware. Apart from upgrades rejected under
// config.FilterActionReject, filters never change what is forwarded.
// A missing filter allows everything.
type FilterGate struct {
	request   config.RequestFilter
	response  config.ResponseFilter
	webSocket config.WebSocketFilter
	action    config.FilterAction
}

func NewFilterGate(options config.Options) FilterGate {
	return FilterGate{
		request:   options.RequestFilter,
		response:  options.ResponseFilter,
		webSocket: options.WebSocketFilter,
		action:    options.EffectiveFilterAction(),
	}
}

func (g FilterGate) AllowRequest(url, method string) bool {
	return g.request == nil || g.request(url, method)
}

func (g FilterGate) AllowResponse(url, method string, status int) bool {
	return g.response == nil || g.response(url, method, status)
}

func (g FilterGate) AllowWebSocket(url string, protocols []string) bool {
	return g.webSocket == nil || g.webSocket(url, protocols)
}

// RejectsFilteredUpgrades reports whether upgrades the WebSocket filter
// turns down are refused instead of forwarded unobserved.
func (g FilterGate) RejectsFilteredUpgrades() bool {
	return g.action == config.FilterActionReject
}
