package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bookshelf-labs/library-service/internal/api/http/handlers"
	"github.com/bookshelf-labs/library-service/internal/auth"
	"github.com/bookshelf-labs/library-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Docs          *handlers.DocsHandler
	Auth          *handlers.AuthHandler
	Books         *handlers.BooksHandler
	Reviews       *handlers.ReviewsHandler
	Gatekeeper    *auth.Gatekeeper
	AuthRateLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes. The gatekeeper runs for every request; route
// guards below decide what anonymous or under-privileged callers get.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	rateLimit := cfg.AuthRateLimit
	if rateLimit == nil {
		rateLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	authenticated := auth.RequireAuthenticated()
	adminOnly := auth.RequireRole(domain.RoleAdmin)

	app.Use(cfg.Gatekeeper.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/v3/api-docs", cfg.Docs.Index)
	app.Get("/docs", cfg.Docs.Index)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", rateLimit, cfg.Auth.Register)
	authGroup.Post("/login", rateLimit, cfg.Auth.Login)
	authGroup.Post("/refresh", rateLimit, cfg.Auth.Refresh)
	authGroup.Get("/me", authenticated, cfg.Auth.Me)

	books := api.Group("/books")
	books.Get("", cfg.Books.List)
	books.Get("/:id", cfg.Books.Get)
	books.Get("/:id/reviews", cfg.Reviews.List)
	books.Get("/:id/download", authenticated, cfg.Books.Download)
	books.Post("/:id/reviews", auth.RequireRole(domain.RoleUser, domain.RoleAdmin), cfg.Reviews.Add)
	books.Post("", adminOnly, cfg.Books.Create)
	books.Post("/:id/pdf", adminOnly, cfg.Books.UploadPDF)
	books.Delete("/:id", adminOnly, cfg.Books.Delete)

	api.Delete("/reviews/:id", authenticated, cfg.Reviews.Delete)

	admin := api.Group("/admin", adminOnly)
	admin.Put("/users/:id/role", cfg.Auth.ChangeRole)
	admin.Get("/metrics", cfg.Health.Metrics)
}
