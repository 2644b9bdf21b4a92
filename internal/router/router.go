package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-auth/internal/handler"
	"github.com/iliyamo/clinic-auth/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication. Currently
// that is only the health check used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the authentication endpoints. Unauthenticated
// operations live under /v1/auth and carry the rate limiter (they are the
// brute-force surface); protected endpoints live under /v1 behind the JWT
// middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/verify", a.Verify)
	g.POST("/otp", a.RequestOTP)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts a refresh token in the body, a bearer access token, or
	// both, so it needs no JWT middleware of its own.
	g.POST("/logout", a.Logout)

	protected := e.Group("/v1")
	protected.Use(middleware.JWTAuth(a.Tokens))
	protected.GET("/me", a.Me)
}

// RegisterAdmin wires the maintenance endpoints. Every route requires a
// valid access token AND the ADMIN role; the scheduler itself never checks
// authorization, the gate lives entirely here.
func RegisterAdmin(e *echo.Echo, m *handler.MaintenanceHandler) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(m.Tokens))
	g.Use(middleware.RequireRole("ADMIN"))

	g.GET("/cleanup/stats", m.Stats)
	g.GET("/cleanup/candidates", m.Candidates)
	g.POST("/cleanup/run", m.RunNow)
	g.GET("/scheduler", m.Status)
	g.POST("/revocations/purge", m.PurgeRevocations)
}
