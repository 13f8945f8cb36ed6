package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/httprate"
)

// EndpointLimiter decides whether a request from ip may proceed
type EndpointLimiter interface {
	Allow(ctx context.Context, ip string, class models.EndpointClass) (models.RateLimitDecision, error)
	Rule(class models.EndpointClass) (models.RateLimitRule, bool)
}

// EndpointRateLimit gates a route on its endpoint class budget. A rejected
// request gets 429 with the class's fixed message and Retry-After.
func EndpointRateLimit(limiter EndpointLimiter, class models.EndpointClass, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			decision, err := limiter.Allow(r.Context(), ip, class)
			if err != nil {
				logger.Error("rate limiter misconfigured",
					slog.String("endpoint_class", string(class)),
					slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if !decision.Allowed {
				rule, _ := limiter.Rule(class)
				auditLogger.LogAuthAttempt(r.Context(), pkglogger.AuditEvent{
					EventType:     pkglogger.EventRateLimited,
					IPAddress:     ip,
					FailureReason: string(class),
				})
				pkghttp.WriteTooManyRequests(w, rule.Message, decision.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig holds the global per-IP ceiling
type RateLimitConfig struct {
	RequestsPerMinute int
}

// RateLimitByIP is a coarse per-IP ceiling over every route, in front of
// the per-endpoint budgets
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please slow down", 0)
		}),
	)
}
