package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/models"
)

// WindowStore counts hits per key in fixed windows
type WindowStore interface {
	// Increment adds one hit to key's current window, starting a new window
	// of the given length if none is open, and returns the count and the
	// time until the window resets
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimiter applies an independent fixed-window budget per endpoint class and client IP
type RateLimiter struct {
	store  WindowStore
	rules  map[models.EndpointClass]models.RateLimitRule
	logger *slog.Logger
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(store WindowStore, rules map[models.EndpointClass]models.RateLimitRule, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		rules:  rules,
		logger: logger,
	}
}

// RulesFromConfig builds the three endpoint budgets with their rejection messages
func RulesFromConfig(cfg config.RateLimitConfig) map[models.EndpointClass]models.RateLimitRule {
	return map[models.EndpointClass]models.RateLimitRule{
		models.EndpointOTPRequest: {
			Window:      cfg.OTPRequest.Window,
			MaxRequests: cfg.OTPRequest.MaxRequests,
			Message:     rejectionMessage("OTP requests", cfg.OTPRequest.Window),
		},
		models.EndpointOTPVerify: {
			Window:      cfg.OTPVerify.Window,
			MaxRequests: cfg.OTPVerify.MaxRequests,
			Message:     rejectionMessage("OTP verification attempts", cfg.OTPVerify.Window),
		},
		models.EndpointLegacyLogin: {
			Window:      cfg.LegacyLogin.Window,
			MaxRequests: cfg.LegacyLogin.MaxRequests,
			Message:     rejectionMessage("login attempts", cfg.LegacyLogin.Window),
		},
	}
}

func rejectionMessage(what string, window time.Duration) string {
	minutes := int(math.Ceil(window.Minutes()))
	return fmt.Sprintf("Too many %s from this IP, please try again after %d minutes", what, minutes)
}

// Rule returns the budget for class
func (l *RateLimiter) Rule(class models.EndpointClass) (models.RateLimitRule, bool) {
	rule, ok := l.rules[class]
	return rule, ok
}

// Allow counts one request from ip against class's budget. A store failure
// allows the request and is logged, never returned.
func (l *RateLimiter) Allow(ctx context.Context, ip string, class models.EndpointClass) (models.RateLimitDecision, error) {
	rule, ok := l.rules[class]
	if !ok {
		return models.RateLimitDecision{}, fmt.Errorf("no rate limit rule for endpoint class %q", class)
	}

	key := string(class) + ":" + ip
	count, resetIn, err := l.store.Increment(ctx, key, rule.Window)
	if err != nil {
		l.logger.Error("rate limit store failed, allowing request",
			slog.String("endpoint_class", string(class)),
			slog.Any("error", err))
		return models.RateLimitDecision{Allowed: true, Limit: rule.MaxRequests}, nil
	}

	decision := models.RateLimitDecision{
		Allowed:    count <= int64(rule.MaxRequests),
		Count:      count,
		Limit:      rule.MaxRequests,
		RetryAfter: resetIn,
	}

	if !decision.Allowed {
		l.logger.Warn("rate limit exceeded",
			slog.String("endpoint_class", string(class)),
			slog.String("ip_address", ip),
			slog.Int64("count", count),
			slog.Int("limit", rule.MaxRequests))
	}

	return decision, nil
}
