// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-planner/internal/handler"
	"github.com/iliyamo/event-planner/internal/middleware"
)

// RegisterRoutes wires the resource API onto the provided Echo instance.
//
//	GET  /healthz                          liveness probe
//	GET  /v1/resources/:name               current value or default
//	GET  /v1/resources/:name/subscribe     WebSocket push channel
//	PUT  /v1/resources/:name               atomic mutation (JWT required)
//
// Reads and the subscribe channel are open: guests browse without a
// session.  Mutations require a token issued by the auth collaborator.
func RegisterRoutes(e *echo.Echo, res *handler.ResourceHandler, sub *handler.SubscribeHandler,
	jwtSecret string, rateLimit echo.MiddlewareFunc, cache *middleware.ResponseCache) {

	e.GET("/healthz", handler.Health)

	g := e.Group("/v1/resources")
	if rateLimit != nil {
		g.Use(rateLimit)
	}
	g.GET("/:name", res.Get, cache.Middleware())
	g.GET("/:name/subscribe", sub.Subscribe)
	g.PUT("/:name", res.Put, middleware.JWTAuth(jwtSecret))
}
