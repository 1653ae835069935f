package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/morezero/mirror-remote/pkg/query"
)

// openPaths never require credentials: liveness probes and the route listing.
var openPaths = map[string]bool{
	"/api":      true,
	"/api/":     true,
	"/api/test": true,
	"/api/docs": true,
}

// keyAuth enforces the API key when one is configured. The header is checked
// first, with schemes "apikey" and "Bearer" accepted case-insensitively; the
// apiKey query parameter is a fallback only when no recognizable header is
// present. A missing credential is 403, a wrong one is 401: operators need to
// tell "client not configured" apart from "client misconfigured".
func (r *Router) keyAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if r.apiKey == "" || openPaths[c.Path()] {
			return next(c)
		}

		if supplied, ok := headerKey(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
			if supplied == r.apiKey {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, query.Error("API key provided is not correct"))
		}
		if supplied := c.QueryParam("apiKey"); supplied != "" {
			if supplied == r.apiKey {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, query.Error("API key provided is not correct"))
		}
		return c.JSON(http.StatusForbidden, query.Error("API key not provided"))
	}
}

// headerKey extracts the credential from an Authorization header value,
// reporting whether the header carried a recognizable scheme at all.
func headerKey(header string) (string, bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}
	switch strings.ToLower(scheme) {
	case "apikey", "bearer":
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// secured gates sensitive routes: absent an API key they stay closed unless
// the operator explicitly disabled the secure-endpoints policy.
func (r *Router) secured(h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if r.apiKey == "" && r.secureEndpoints {
			return c.JSON(http.StatusForbidden, query.Error("API key not configured and secure endpoints are enabled"))
		}
		return h(c)
	}
}

// requireJSON rejects POST bodies that are not declared application/json.
func requireJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodPost {
			ct := c.Request().Header.Get(echo.HeaderContentType)
			if !strings.HasPrefix(strings.ToLower(ct), echo.MIMEApplicationJSON) {
				return c.JSON(http.StatusBadRequest, query.Error("POST body must be application/json"))
			}
		}
		return next(c)
	}
}
