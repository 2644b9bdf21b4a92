package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-auth/internal/auth"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// through the token service and injects the sanitized identity claims into
// the request context. Verification goes through the service rather than the
// JWT library directly so the claim whitelist and the revocation check apply
// to every request. The 401 body distinguishes an expired token from a
// malformed one: clients retry an expired token with a refresh, while a
// malformed token means re-login.
func JWTAuth(ts *auth.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			payload, err := ts.VerifyAccessToken(raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// Signature validity alone does not make the token usable: a
			// logged-out token still verifies until its expiry passes.
			revoked, err := ts.IsRevoked(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revocation check failed"})
			}
			if revoked {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
			}

			// Expose the identity to handlers and downstream middleware.
			c.Set("user_id", payload.SubjectID)
			c.Set("email", payload.Email)
			c.Set("role", string(payload.Role))
			return next(c)
		}
	}
}
