package handlers

import (
	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/metrics"
	"github.com/bookclub/backend/internal/middleware"
	"github.com/bookclub/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth          *services.AuthService
	Providers     *services.OAuthProviderService
	Clubs         *services.ClubService
	Memberships   *services.MembershipService
	Requests      *services.MembershipRequestService
	Notifications *services.NotificationService
	Metrics       *metrics.Collector
}

// NewApp builds the fiber app with the shared middleware stack. Club names
// arrive percent-encoded in the path, so path unescaping is on.
func NewApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		UnescapePath: true,
		BodyLimit:    64 * 1024,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	return app
}

func Register(app *fiber.App, cfg *config.Config, svc Services) {
	authMiddleware := middleware.NewAuthMiddleware(svc.Auth)
	authLimiter := middleware.NewRateLimiter("auth", cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst)
	requestLimiter := middleware.NewRateLimiter("membership_requests", cfg.RateLimit.RequestPerMinute, cfg.RateLimit.RequestBurst)

	authHandler := NewAuthHandler(svc.Auth)
	ssoHandler := NewSSOHandler(svc.Providers, svc.Auth, cfg.Server.FrontendURL, cfg.SSO.AutoRegister)
	clubsHandler := NewClubsHandler(svc.Clubs, svc.Memberships)
	requestsHandler := NewRequestsHandler(svc.Requests)
	notificationsHandler := NewNotificationsHandler(svc.Notifications)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	if svc.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(svc.Metrics.Handler()))
	}

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authLimiter.Handler(), authHandler.Register)
	authRoutes.Post("/login", authLimiter.Handler(), authHandler.Login)
	authRoutes.Post("/refresh", authLimiter.Handler(), authHandler.Refresh)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	if svc.Providers != nil {
		ssoRoutes := authRoutes.Group("/sso")
		ssoRoutes.Get("/providers", ssoHandler.ListProviders)
		ssoRoutes.Get("/oauth/:provider", ssoHandler.GetLoginRedirect)
		ssoRoutes.Get("/oauth/:provider/callback", ssoHandler.HandleOAuthCallback)
	}

	clubRoutes := api.Group("/clubs", authMiddleware.RequireAuth)
	clubRoutes.Post("/", clubsHandler.Create)
	clubRoutes.Get("/", clubsHandler.ListPublic)
	clubRoutes.Get("/mine", clubsHandler.ListMine)
	clubRoutes.Get("/:name", clubsHandler.Get)
	clubRoutes.Delete("/:name", clubsHandler.Disband)
	clubRoutes.Get("/:name/role", clubsHandler.Role)
	clubRoutes.Get("/:name/members", clubsHandler.ListMembers)
	clubRoutes.Put("/:name/members/:readerId", clubsHandler.UpdateRole)
	clubRoutes.Delete("/:name/members/:readerId", clubsHandler.RemoveMember)
	clubRoutes.Post("/:name/leave", clubsHandler.Leave)
	clubRoutes.Post("/:name/transfer", clubsHandler.Transfer)
	clubRoutes.Post("/:name/requests", requestLimiter.Handler(), requestsHandler.Submit)
	clubRoutes.Get("/:name/requests", requestsHandler.ListOpen)
	clubRoutes.Get("/:name/requests/pending", requestsHandler.Pending)
	clubRoutes.Post("/:name/requests/:id/review", requestsHandler.Review)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationsHandler.List)
	notificationRoutes.Get("/unread-count", notificationsHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationsHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationsHandler.MarkRead)
}
