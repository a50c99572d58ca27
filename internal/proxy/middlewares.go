package proxy

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// noCookies middleware removes all cookies from a request before it leaves the
// gateway, the upstream backend only understands bearer credentials
func noCookies(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Request().Header.Del("Cookie")
		return next(c)
	}
}

// hop-by-hop headers are stripped in both directions
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// gateway-internal headers additionally never reach the upstream
var strippedHeaders = append(hopByHopHeaders,
	"Cookie",
	"Host",
	SilentHeader,
	// the pipeline owns the bearer credential, inbound ones are dropped
	"Authorization",
)

func outboundHeader(inbound http.Header) http.Header {
	outbound := inbound.Clone()
	for _, name := range strippedHeaders {
		outbound.Del(name)
	}
	return outbound
}

func responseHeader(upstream http.Header) http.Header {
	filtered := upstream.Clone()
	for _, name := range hopByHopHeaders {
		filtered.Del(name)
	}
	return filtered
}

func joinPath(base string, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
