package logging

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

const (
	noDataText           = "no data"
	noHeadersText        = "no headers"
	noQueryParamsText    = "no query params"
	truncatedMarker      = "...(truncated)"
	formatFailedTemplate = "format failed: %v"
	queryParseFailedText = "failed to parse query params"
)

// formatData renders a body or message for display: strings pass through,
// objects are JSON encoded, anything else is stringified. Content longer than
// maxLength (or the configured body limit when maxLength is zero) is truncated.
// Formatting never fails, a failure marker is returned instead.
func (l *ProxyLogger) formatData(data interface{}, maxLength int) (formatted string) {
	defer func() {
		if r := recover(); r != nil {
			formatted = l.color.paint(fmt.Sprintf(formatFailedTemplate, r), red)
		}
	}()

	if isEmptyData(data) {
		return l.color.paint(noDataText, gray)
	}

	var content string

	switch typed := data.(type) {
	case string:
		content = typed
	case []byte:
		content = string(typed)
	case json.RawMessage:
		content = l.renderJSON(typed)
	case fmt.Stringer:
		content = typed.String()
	default:
		if isObject(data) {
			var encoded []byte
			var err error
			if l.settings.PrettifyJSON {
				encoded, err = json.MarshalIndent(data, "", "  ")
			} else {
				encoded, err = json.Marshal(data)
			}
			if err != nil {
				return l.color.paint(fmt.Sprintf(formatFailedTemplate, err), red)
			}
			content = string(encoded)
		} else {
			content = fmt.Sprint(data)
		}
	}

	limit := maxLength
	if limit <= 0 {
		limit = l.settings.MaxBodyLength
	}
	if limit <= 0 {
		limit = DefaultMaxBodyLength
	}

	content, truncated := truncate(content, limit)
	formatted = l.color.paint(content, white)
	if truncated {
		formatted += l.color.paint(truncatedMarker, gray)
	}

	return formatted
}

func isEmptyData(data interface{}) bool {
	if data == nil {
		return true
	}
	switch typed := data.(type) {
	case string:
		return typed == ""
	case []byte:
		return len(typed) == 0
	case json.RawMessage:
		return len(typed) == 0
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func isObject(data interface{}) bool {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]), true
}

func (l *ProxyLogger) renderJSON(raw []byte) string {
	if l.settings.PrettifyJSON {
		return strings.TrimRight(string(pretty.Pretty(raw)), "\n")
	}
	return string(pretty.Ugly(raw))
}

func (l *ProxyLogger) formatHeaders(headers http.Header) string {
	if len(headers) == 0 {
		return l.color.paint(noHeadersText, gray)
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("    %s: %s",
			l.color.paint(name, cyan),
			l.color.paint(strings.Join(headers[name], ", "), white)))
	}

	return "\n" + strings.Join(lines, "\n")
}

func (l *ProxyLogger) formatQueryParams(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return l.color.paint(queryParseFailedText, red)
	}

	values := parsed.Query()
	if len(values) == 0 {
		return l.color.paint(noQueryParamsText, gray)
	}

	params := make(map[string]string, len(values))
	for key, vals := range values {
		// repeated keys keep the last value
		params[key] = vals[len(vals)-1]
	}

	return l.formatData(params, 0)
}

// formatSSEMessage pretty prints the JSON payload of a `data:` envelope,
// then the raw text when it is JSON itself, and otherwise returns the text verbatim.
func (l *ProxyLogger) formatSSEMessage(message string) string {
	content := message

	if payload, ok := sseDataPayload(message); ok && gjson.Valid(payload) {
		content = l.renderJSON([]byte(payload))
	} else if trimmed := strings.TrimSpace(message); gjson.Valid(trimmed) {
		content = l.renderJSON([]byte(trimmed))
	}

	return l.formatData(content, l.settings.MaxSseMessageLength)
}

// sseDataPayload joins the `data:` lines of one event.
func sseDataPayload(message string) (string, bool) {
	var data []string
	for _, line := range strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		value := strings.TrimPrefix(line, "data:")
		value = strings.TrimPrefix(value, " ")
		data = append(data, value)
	}
	if len(data) == 0 {
		return "", false
	}
	return strings.Join(data, "\n"), true
}
