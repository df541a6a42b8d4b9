package routes

import "strings"

// Rewrite strips prefix from the start of path. A path that doesn't
// start with prefix is returned unchanged.
func Rewrite(path, prefix string) string {
	if prefix == "" {
		return path
	}
	return strings.TrimPrefix(path, prefix)
}

// UpstreamURL is the full upstream address a request for requestURI is
// forwarded to, used in every log line of the exchange.
func UpstreamURL(entry Entry, requestURI string) string {
	return entry.Target + Rewrite(requestURI, entry.RewritePrefix)
}
