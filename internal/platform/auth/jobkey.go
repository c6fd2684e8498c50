package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// jobKeyPrefix identifies job credentials so they are easy to spot in logs
// and configuration files: scp_j1_<random>.
const jobKeyPrefix = "scp_j1_"

// JobKeyMiddleware authenticates machine callers of the batch recompute and
// scheduled-trigger endpoints against a single pre-shared key. The key is
// checked via the X-API-Key header first, then via Authorization: Bearer when
// the token carries the job key prefix. User JWTs never reach these routes;
// the middleware rejects anything that does not match the configured key.
func JobKeyMiddleware(configuredKey string) echo.MiddlewareFunc {
	configuredHash := sha256.Sum256([]byte(configuredKey))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if configuredKey == "" {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "job endpoints are not configured")
			}

			rawKey := extractJobKey(c)
			if rawKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing job api key")
			}

			presentedHash := sha256.Sum256([]byte(rawKey))
			if subtle.ConstantTimeCompare(configuredHash[:], presentedHash[:]) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid job api key")
			}

			return next(c)
		}
	}
}

// extractJobKey returns the raw job key from the request, checking X-API-Key
// first and then the Authorization: Bearer header.
func extractJobKey(c echo.Context) string {
	if apiKey := c.Request().Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	token := parts[1]
	if strings.HasPrefix(token, jobKeyPrefix) {
		return token
	}
	return ""
}
