package middleware

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

// SecurityHeaders returns middleware that sets security response headers on
// every request. The API handles PHI, so responses are marked
// non-cacheable and frame embedding is denied.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}

// EnforceHTTPS returns middleware that rejects plaintext requests when
// enabled. Terminating proxies are detected through X-Forwarded-Proto.
func EnforceHTTPS(enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enabled {
				return next(c)
			}
			req := c.Request()
			proto := req.Header.Get("X-Forwarded-Proto")
			if proto == "" && req.TLS != nil {
				proto = "https"
			}
			if proto != "https" {
				return httperr.New(httperr.KindForbidden, "https required")
			}
			return next(c)
		}
	}
}

// OriginPolicy validates the Origin header against an allowlist. Requests
// without an Origin header (non-browser clients) pass. In production,
// loopback origins are rejected even when listed.
func OriginPolicy(allowed []string, production bool) echo.MiddlewareFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowedSet[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin == "" {
				return next(c)
			}
			trimmed := strings.TrimRight(origin, "/")
			if production && isLoopbackOrigin(trimmed) {
				return httperr.New(httperr.KindForbidden, "origin not allowed")
			}
			if !allowedSet[trimmed] {
				return httperr.New(httperr.KindForbidden, "origin not allowed")
			}
			c.Response().Header().Set("Access-Control-Allow-Origin", origin)
			c.Response().Header().Set("Vary", "Origin")
			return next(c)
		}
	}
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
