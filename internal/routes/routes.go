package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// Dependencies are the collaborators the route table mounts
type Dependencies struct {
	AuthHandler      *handlers.AuthHandler
	HealthHandler    *handlers.HealthHandler
	SessionValidator auth.SessionValidator
	Limiter          middleware.EndpointLimiter
	Logger           *slog.Logger
	AuditLogger      *pkglogger.AuditLogger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	limit := func(class models.EndpointClass) func(http.Handler) http.Handler {
		return middleware.EndpointRateLimit(deps.Limiter, class, deps.Logger, deps.AuditLogger)
	}

	router.Get("/health", deps.HealthHandler.Health)

	router.Route("/api/auth", func(r chi.Router) {
		// Public routes, each with its own per-IP budget
		r.With(limit(models.EndpointOTPRequest)).Post("/request-otp", deps.AuthHandler.RequestOTP)
		r.With(limit(models.EndpointOTPVerify)).Post("/verify-otp", deps.AuthHandler.VerifyOTP)
		r.With(limit(models.EndpointLegacyLogin)).Post("/login", deps.AuthHandler.Login)

		// Protected routes - session token required
		r.Group(func(r chi.Router) {
			r.Use(auth.SessionMiddleware(deps.SessionValidator))
			r.Get("/verify", deps.AuthHandler.VerifyToken)
		})
	})
}
