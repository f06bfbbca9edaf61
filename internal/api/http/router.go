package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Channels       *handlers.ChannelsHandler
	Presence       *handlers.PresenceHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The presence and channel surfaces use
// optional authentication: a bearer token resolves to an authenticated
// identity, otherwise the anonymous key (body or X-Anon-Key header) is used.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	app.Get("/users/me", cfg.AuthMiddleware.Require, cfg.Users.Me)

	channels := app.Group("/channels", cfg.AuthMiddleware.Optional)
	channels.Get("/", cfg.Channels.List)
	channels.Get("/:name", cfg.Channels.GetByName)

	presence := channels.Group("/:id/presence")
	presence.Post("/heartbeat", cfg.Presence.Heartbeat)
	presence.Post("/leave", cfg.Presence.Leave)
	presence.Post("/typing", cfg.Presence.TypingBeat)
	presence.Get("/online", cfg.Presence.ListOnline)
	presence.Get("/typing", cfg.Presence.ListTyping)
}
