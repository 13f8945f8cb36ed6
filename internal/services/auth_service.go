package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// SessionIssuer mints session tokens for verified accounts
type SessionIssuer interface {
	IssueSessionToken(account *models.Account) (string, time.Time, error)
}

// AuthService runs the request-code and verify-code flows
type AuthService struct {
	accounts    AccountRepository
	ledger      *OTPLedger
	lockout     *LockoutTracker
	sessions    SessionIssuer
	email       EmailService
	timing      *auth.TimingDelay
	sendTimeout time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// AuthServiceDeps groups AuthService collaborators
type AuthServiceDeps struct {
	Accounts    AccountRepository
	Ledger      *OTPLedger
	Lockout     *LockoutTracker
	Sessions    SessionIssuer
	Email       EmailService
	Timing      *auth.TimingDelay // Optional
	SendTimeout time.Duration
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthServiceDeps) *AuthService {
	return &AuthService{
		accounts:    deps.Accounts,
		ledger:      deps.Ledger,
		lockout:     deps.Lockout,
		sessions:    deps.Sessions,
		email:       deps.Email,
		timing:      deps.Timing,
		sendTimeout: deps.SendTimeout,
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
	}
}

// AuthResponse is returned after a successful verification
type AuthResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	User      models.AccountSummary `json:"user"`
}

// RequestOTP issues and emails a code. An unknown email returns nil so
// callers cannot tell registered addresses apart.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	ip := pkghttp.ClientIPFromContext(ctx)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventOTPRequestUnknown,
				Email:         email,
				IPAddress:     ip,
				FailureReason: "unknown_email",
			})
			return nil
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.lockout.CheckLocked(account); err != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventOTPRequestBlocked,
			AccountID:     account.ID,
			IPAddress:     ip,
			FailureReason: "account_locked",
		})
		return err
	}

	if !account.HasEmail() {
		s.logger.Error("account has no registered email", slog.String("account_id", account.ID))
		return models.ErrAccountMisconfigured
	}

	code, err := s.ledger.Issue(ctx, account.ID)
	if err != nil {
		s.logger.Error("failed to issue code", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	sendCtx := ctx
	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	err = s.email.SendLoginCode(sendCtx, LoginCodeEmail{
		Recipient:   account.Email,
		DisplayName: account.Username,
		Code:        code.Code,
		ExpiresIn:   s.ledger.Expiry(),
	})
	if err != nil {
		// The issued code stays valid; a retry supersedes it
		s.logger.Error("failed to dispatch code", slog.String("account_id", account.ID), slog.Any("error", err))
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventOTPRequested,
			AccountID:     account.ID,
			IPAddress:     ip,
			FailureReason: "delivery_failed",
		})
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventOTPRequested,
		AccountID: account.ID,
		IPAddress: ip,
		Success:   true,
	})

	return nil
}

// VerifyOTP exchanges a correct code for a session token. Unknown email,
// wrong code and expired code all return ErrInvalidCredential.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*AuthResponse, error) {
	start := time.Now()
	email = models.NormalizeEmail(email)
	ip := pkghttp.ClientIPFromContext(ctx)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventOTPVerifyFailed,
				Email:         email,
				IPAddress:     ip,
				FailureReason: "unknown_email",
			})
			s.timing.WaitFrom(ctx, start)
			return nil, models.ErrInvalidCredential
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.lockout.CheckLocked(account); err != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventOTPVerifyFailed,
			AccountID:     account.ID,
			IPAddress:     ip,
			FailureReason: "account_locked",
		})
		return nil, err
	}

	ok, err := s.ledger.Verify(ctx, account.ID, code)
	if err != nil {
		s.logger.Error("failed to verify code", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !ok {
		return nil, s.recordFailure(ctx, account, ip, start)
	}

	if err := s.lockout.RecordSuccess(ctx, account.ID); err != nil {
		// The code is already consumed; failing here would strand the user
		s.logger.Error("failed to reset lockout state", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	token, expiresAt, err := s.sessions.IssueSessionToken(account)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventOTPVerified,
		AccountID: account.ID,
		IPAddress: ip,
		Success:   true,
	})
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventSessionIssued,
		AccountID: account.ID,
		IPAddress: ip,
		Success:   true,
		Metadata:  map[string]string{"expires_at": expiresAt.Format(time.RFC3339)},
	})

	return &AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      account.Summary(),
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, account *models.Account, ip string, start time.Time) error {
	defer s.timing.WaitFrom(ctx, start)

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventOTPVerifyFailed,
		AccountID:     account.ID,
		IPAddress:     ip,
		FailureReason: "invalid_code",
	})

	updated, err := s.lockout.RecordFailure(ctx, account.ID)
	if err != nil {
		s.logger.Error("failed to record failed attempt", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if s.lockout.IsLocked(updated) && !s.lockout.IsLocked(account) {
		s.auditLogger.LogAccountAction(ctx, pkglogger.EventAccountLocked, account.ID, map[string]string{
			"failed_attempts": strconv.Itoa(updated.FailedAttempts),
			"locked_until":    updated.LockedUntil.Format(time.RFC3339),
		})
	}

	return models.ErrInvalidCredential
}
