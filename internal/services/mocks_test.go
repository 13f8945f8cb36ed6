package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeStore keeps accounts and codes in memory with the same semantics as
// the Postgres repositories
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	codes    []*models.OneTimeCode
	clock    clock.Clock
}

func newFakeStore(clk clock.Clock) *fakeStore {
	return &fakeStore{accounts: make(map[string]*models.Account), clock: clk}
}

func (s *fakeStore) addAccount(username, email string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := &models.Account{ID: uuid.New().String(), Username: username, Email: models.NormalizeEmail(email)}
	s.accounts[account.ID] = account
	copied := *account
	return &copied
}

func (s *fakeStore) account(id string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *fakeStore) unusedCodes(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes {
		if c.AccountID == accountID && !c.Used {
			n++
		}
	}
	return n
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email != "" && a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *fakeStore) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == models.NormalizeEmail(account.Email) {
			return nil, models.ErrConflict
		}
	}
	created := &models.Account{ID: uuid.New().String(), Username: account.Username, Email: models.NormalizeEmail(account.Email)}
	s.accounts[created.ID] = created
	copied := *created
	return &copied, nil
}

func (s *fakeStore) IncrementFailedAttempts(_ context.Context, id string, threshold int, lockUntil, now time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	a.FailedAttempts++
	if a.FailedAttempts >= threshold {
		until := lockUntil
		a.LockedUntil = &until
	}
	a.UpdatedAt = now
	copied := *a
	return &copied, nil
}

func (s *fakeStore) ResetFailedAttempts(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = now
	return nil
}

func (s *fakeStore) Issue(_ context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[code.AccountID]; !ok {
		return nil, models.ErrNotFound
	}
	for _, c := range s.codes {
		if c.AccountID == code.AccountID {
			c.Used = true
		}
	}
	stored := *code
	stored.ID = uuid.New().String()
	s.codes = append(s.codes, &stored)
	copied := stored
	return &copied, nil
}

func (s *fakeStore) FindActive(_ context.Context, accountID, value string) (*models.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*models.OneTimeCode
	for _, c := range s.codes {
		if c.AccountID == accountID && c.Code == value && !c.Used {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, models.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	copied := *matches[0]
	return &copied, nil
}

func (s *fakeStore) MarkUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.ID == id {
			if c.Used {
				return models.ErrNotFound
			}
			c.Used = true
			return nil
		}
	}
	return models.ErrNotFound
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	mu                sync.Mutex
	Sent              []LoginCodeEmail
	SendLoginCodeFunc func(ctx context.Context, msg LoginCodeEmail) error
}

func (m *MockEmailService) SendLoginCode(ctx context.Context, msg LoginCodeEmail) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, msg)
	}
	return nil
}

func (m *MockEmailService) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ""
	}
	return m.Sent[len(m.Sent)-1].Code
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueSessionTokenFunc func(account *models.Account) (string, time.Time, error)
}

func (m *MockSessionIssuer) IssueSessionToken(account *models.Account) (string, time.Time, error) {
	if m.IssueSessionTokenFunc != nil {
		return m.IssueSessionTokenFunc(account)
	}
	return "token-" + account.ID, time.Time{}, nil
}

// sequenceGenerator returns the given codes in order
func sequenceGenerator(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}
