package logging

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006/01/02 15:04:05"

// ProxyLogger writes the human readable traffic log: one line per
// request start, response end, error and SSE / WebSocket event.
// A ProxyLogger never changes after construction, Child and WithConfig
// return new loggers sharing the same output.
type ProxyLogger struct {
	settings Settings
	out      io.Writer
	outMu    *sync.Mutex
	color    colorizer
	now      func() time.Time
}

// RequestDetails is the optional payload of a detailed request line.
type RequestDetails struct {
	Headers     http.Header
	Body        interface{}
	QueryParams bool
}

// ResponseDetails is the optional payload of a detailed response line.
type ResponseDetails struct {
	Headers     http.Header
	Body        interface{}
	Duration    time.Duration
	HasDuration bool
}

// NewProxyLogger creates a ProxyLogger writing to stdout, or to the
// rotating file named by settings.File.
func NewProxyLogger(settings Settings) *ProxyLogger {
	return NewProxyLoggerWithOutput(settings, outputFor(settings.File))
}

// NewProxyLoggerWithOutput creates a ProxyLogger writing to out.
func NewProxyLoggerWithOutput(settings Settings, out io.Writer) *ProxyLogger {
	return &ProxyLogger{
		settings: settings,
		out:      out,
		outMu:    &sync.Mutex{},
		color:    colorizer{enabled: detectColorSupport(settings.Colorful, out)},
		now:      time.Now,
	}
}

// Settings returns a copy of the logger configuration.
func (l *ProxyLogger) Settings() Settings {
	return l.settings
}

// Child returns a logger whose prefix is extended with `:prefix`.
func (l *ProxyLogger) Child(prefix string) *ProxyLogger {
	return l.WithConfig(func(s *Settings) {
		s.Prefix = fmt.Sprintf("%s:%s", s.Prefix, prefix)
	})
}

// WithConfig returns a logger with update applied to a copy of the current settings.
func (l *ProxyLogger) WithConfig(update func(*Settings)) *ProxyLogger {
	settings := l.settings
	update(&settings)
	return &ProxyLogger{
		settings: settings,
		out:      l.out,
		outMu:    l.outMu,
		color:    colorizer{enabled: detectColorSupport(settings.Colorful, l.out)},
		now:      l.now,
	}
}

// ShouldLog reports whether a line of the given level passes the configured threshold.
func (l *ProxyLogger) ShouldLog(level LogLevel) bool {
	return level <= l.settings.Level
}

func (l *ProxyLogger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

func (l *ProxyLogger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

func (l *ProxyLogger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

func (l *ProxyLogger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

func (l *ProxyLogger) logf(level LogLevel, format string, args ...interface{}) {
	if !l.ShouldLog(level) {
		return
	}
	tag := l.color.paint(fmt.Sprintf("[%s]", level), levelColors[level])
	l.emit(l.line(tag, fmt.Sprintf(format, args...)))
}

// LogRequest records that a request is being forwarded to url.
func (l *ProxyLogger) LogRequest(method, url string) {
	if !l.ShouldLog(LevelInfo) {
		return
	}
	l.emit(l.line(
		l.formatMethod(method),
		l.color.paint("🚀 proxy to:", cyan),
		l.formatURL(url),
	))
}

// LogResponse records the upstream response of an exchange. The duration
// is shown only when the exchange start was observed.
func (l *ProxyLogger) LogResponse(method, url string, status int, duration time.Duration, hasDuration bool) {
	if !l.ShouldLog(LevelInfo) {
		return
	}
	l.emit(l.line(
		l.formatMethod(method),
		l.statusBadge(status),
		l.formatURL(url)+l.formatDuration(duration, hasDuration),
	))
}

// LogError records a transport error for url.
func (l *ProxyLogger) LogError(method, url string, err error) {
	if !l.ShouldLog(LevelError) || !l.settings.ShowError {
		return
	}
	l.emit(l.line(
		l.formatMethod(method),
		l.color.paint("💥 proxy error:", red),
		l.formatURL(url),
		"-",
		l.color.paint(errorMessage(err), red),
	))
}

// LogDetailedRequest writes the request line followed by the enabled
// query, header and body sections.
func (l *ProxyLogger) LogDetailedRequest(method, url string, details RequestDetails) {
	if !l.ShouldLog(LevelDebug) {
		return
	}

	lines := []string{l.line(
		l.formatMethod(method),
		l.color.paint("📤 request details:", blue),
		l.formatURL(url),
	)}

	if l.settings.ShowQueryParams && details.QueryParams {
		lines = append(lines, l.section("query params:", " "+l.formatQueryParams(url)))
	}
	if l.settings.ShowRequestHeaders && details.Headers != nil {
		lines = append(lines, l.section("request headers:", l.formatHeaders(details.Headers)))
	}
	if l.settings.ShowRequestBody && !isEmptyData(details.Body) {
		lines = append(lines, l.section("request body:", " "+l.formatData(details.Body, 0)))
	}

	l.emit(strings.Join(lines, "\n"))
}

// LogDetailedResponse writes the response line followed by the enabled
// header and body sections.
func (l *ProxyLogger) LogDetailedResponse(method, url string, status int, details ResponseDetails) {
	if !l.ShouldLog(LevelDebug) {
		return
	}

	lines := []string{l.line(
		l.formatMethod(method),
		"📥 "+statusIcon(status)+" response details:",
		l.formatStatus(status),
		l.formatURL(url)+l.formatDuration(details.Duration, details.HasDuration),
	)}

	if l.settings.ShowResponseHeaders && details.Headers != nil {
		lines = append(lines, l.section("response headers:", l.formatHeaders(details.Headers)))
	}
	if l.settings.ShowResponseBody && !isEmptyData(details.Body) {
		lines = append(lines, l.section("response body:", " "+l.formatData(details.Body, 0)))
	}

	l.emit(strings.Join(lines, "\n"))
}

// LogSSEConnection records an event stream opened through url.
func (l *ProxyLogger) LogSSEConnection(method, url string, status int) {
	if !l.ShouldLog(LevelInfo) || !l.settings.ShowSseConnections {
		return
	}
	l.emit(l.line(
		l.formatMethod(method),
		l.color.paint("📡 SSE stream:", cyan),
		l.formatStatus(status),
		l.formatURL(url),
	))
}

// LogSSEClosed records the end of an event stream.
func (l *ProxyLogger) LogSSEClosed(method, url string, messages int, duration time.Duration) {
	if !l.ShouldLog(LevelInfo) || !l.settings.ShowSseConnections {
		return
	}
	l.emit(l.line(
		l.formatMethod(method),
		l.color.paint("📴 SSE closed:", gray),
		l.formatURL(url)+l.color.paint(fmt.Sprintf(" (%d messages, %s)", messages, formatElapsed(duration)), gray),
	))
}

// LogSSEMessage records one event relayed on a stream.
func (l *ProxyLogger) LogSSEMessage(url, message string) {
	if !l.ShouldLog(LevelInfo) || !l.settings.ShowSseMessages {
		return
	}
	l.emit(l.line(
		l.color.paint("📨 SSE message:", cyan),
		l.formatURL(url),
		l.formatSSEMessage(message),
	))
}

// LogWebSocketConnection records an upgrade forwarded to url.
func (l *ProxyLogger) LogWebSocketConnection(url string, protocols []string) {
	if !l.ShouldLog(LevelInfo) || !l.settings.ShowWsConnections {
		return
	}
	detail := ""
	if len(protocols) > 0 {
		detail = l.color.paint(fmt.Sprintf("(protocols: %s)", strings.Join(protocols, ", ")), gray)
	}
	l.emit(l.line(
		l.formatMethod(http.MethodGet),
		l.color.paint("🔌 WebSocket upgrade:", cyan),
		l.formatURL(url),
		detail,
	))
}

// LogWebSocketMessage records data relayed on an upgraded connection.
func (l *ProxyLogger) LogWebSocketMessage(url, direction string, data []byte) {
	if !l.ShouldLog(LevelInfo) || !l.settings.ShowWsMessages {
		return
	}
	l.emit(l.line(
		l.color.paint(fmt.Sprintf("💬 WebSocket %s:", direction), cyan),
		l.formatURL(url),
		l.color.paint(fmt.Sprintf("(%d bytes)", len(data)), gray),
		l.formatData(printable(data), l.settings.MaxWsMessageLength),
	))
}

// LogWebSocketError records a failed upgrade or a broken upgraded connection.
func (l *ProxyLogger) LogWebSocketError(url string, err error) {
	if !l.ShouldLog(LevelError) || !l.settings.ShowError {
		return
	}
	l.emit(l.line(
		l.formatMethod(http.MethodGet),
		l.color.paint("💥 WebSocket error:", red),
		l.formatURL(url),
		"-",
		l.color.paint(errorMessage(err), red),
	))
}

// line joins the timestamp, prefix and parts with single spaces, skipping empty parts.
func (l *ProxyLogger) line(parts ...string) string {
	all := make([]string, 0, len(parts)+2)
	all = append(all, l.formatTimestamp(), l.formatPrefix())
	all = append(all, parts...)

	kept := all[:0]
	for _, part := range all {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}

func (l *ProxyLogger) section(title, body string) string {
	return "  " + l.color.paint(title, yellow) + body
}

func (l *ProxyLogger) emit(text string) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	fmt.Fprintln(l.out, text)
}

func (l *ProxyLogger) formatTimestamp() string {
	if !l.settings.Timestamp {
		return ""
	}
	return l.color.paint(l.now().Format(timestampLayout), gray)
}

func (l *ProxyLogger) formatPrefix() string {
	return l.color.paint(l.settings.Prefix, cyan)
}

func (l *ProxyLogger) formatMethod(method string) string {
	if !l.settings.ShowMethod {
		return ""
	}
	attrs, ok := methodColors[method]
	if !ok {
		attrs = white
	}
	return "[" + l.color.paint(fmt.Sprintf("%-3s", method), attrs) + "]"
}

func (l *ProxyLogger) formatStatus(status int) string {
	if !l.settings.ShowStatus {
		return ""
	}
	return l.color.paint(fmt.Sprint(status), statusColor(status))
}

func (l *ProxyLogger) statusBadge(status int) string {
	if formatted := l.formatStatus(status); formatted != "" {
		return statusIcon(status) + " " + formatted
	}
	return statusIcon(status)
}

func (l *ProxyLogger) formatURL(url string) string {
	return l.color.paint(url, brightBlue)
}

func (l *ProxyLogger) formatDuration(duration time.Duration, known bool) string {
	if !known {
		return ""
	}
	return l.color.paint(fmt.Sprintf(" (%s)", formatElapsed(duration)), gray)
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func statusIcon(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "✅"
	case status >= 400:
		return "❌"
	}
	return "⚠️"
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// printable replaces control bytes so relayed binary data stays on one line.
func printable(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f || r == '�' {
			return '.'
		}
		return r
	}, string(data))
}
