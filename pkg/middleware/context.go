package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/context"
	"github.com/Ramsey-B/laurel/pkg/models"
)

const (
	// HeaderUserID is the header key for user ID
	HeaderUserID = "X-User-ID"
	// HeaderRole is the header key for the caller's role
	HeaderRole = "X-Role"
)

// Context seeds the request context with request id, caller identity and
// normalized role. When OIDC auth is enabled the authentication middleware
// overwrites identity and role from verified claims.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			userID := req.Header.Get(HeaderUserID)

			role := ""
			if parsed, err := models.ParseRole(req.Header.Get(HeaderRole)); err == nil {
				role = string(parsed)
			}

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetUserID(ctx, userID)
			ctx = context.SetRole(ctx, role)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
