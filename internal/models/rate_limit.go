package models

import "time"

// EndpointClass identifies an independently limited group of endpoints
type EndpointClass string

const (
	EndpointOTPRequest  EndpointClass = "otp_request"
	EndpointOTPVerify   EndpointClass = "otp_verify"
	EndpointLegacyLogin EndpointClass = "legacy_login"
)

// RateLimitRule is the fixed-window budget for one endpoint class
type RateLimitRule struct {
	Window      time.Duration
	MaxRequests int
	Message     string // Fixed message returned on rejection
}

// RateLimitDecision is the outcome of a single limiter check
type RateLimitDecision struct {
	Allowed    bool
	Count      int64
	Limit      int
	RetryAfter time.Duration // Time until the current window resets
}
