package service

import (
	"net/http"
	"strings"
)

// TrafficKind is the protocol path an exchange takes through the proxy.
type TrafficKind string

const (
	TrafficHTTP      TrafficKind = "http"
	TrafficSSE       TrafficKind = "sse"
	TrafficWebSocket TrafficKind = "websocket"
)

const eventStreamMediaType = "text/event-stream"

// IsSSE reports whether the request asks for an event stream.
// The Accept header is matched as received, without case folding.
func IsSSE(header http.Header) bool {
	for _, accept := range header.Values("Accept") {
		if strings.Contains(accept, eventStreamMediaType) {
			return true
		}
	}
	return false
}

// IsWebSocketUpgrade reports whether the request asks to switch to WebSocket.
func IsWebSocketUpgrade(header http.Header) bool {
	return strings.EqualFold(header.Get("Upgrade"), "websocket")
}

// Classify returns the traffic kind of r.
func Classify(r *http.Request) TrafficKind {
	switch {
	case IsWebSocketUpgrade(r.Header):
		return TrafficWebSocket
	case IsSSE(r.Header):
		return TrafficSSE
	}
	return TrafficHTTP
}

// isEventStreamResponse reports whether a response is an event stream,
// such responses are never buffered.
func isEventStreamResponse(header http.Header) bool {
	return strings.Contains(header.Get("Content-Type"), eventStreamMediaType)
}
