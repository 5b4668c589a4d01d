package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/session"
)

// AuthService owns registration, login and the per-user income.
type AuthService struct {
	base
	sessions *session.Manager
	cost     int
}

func NewAuthService(repos *repository.Repositories, sessions *session.Manager, opts ...Option) *AuthService {
	return &AuthService{
		base:     newBase(repos, log.ComponentAuth, opts),
		sessions: sessions,
		cost:     bcrypt.DefaultCost,
	}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// Register creates the user and opens a session for it. A taken email
// surfaces core.ErrDuplicateKey.
func (s *AuthService) Register(ctx context.Context, email, password string) (session.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return session.Session{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.repos.Users.Create(ctx, email, string(hash))
	if err != nil {
		return session.Session{}, err
	}
	u, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if u == nil {
		return session.Session{}, fmt.Errorf("registered user %d: %w", id, core.ErrNotFound)
	}
	s.audit(ctx, id, core.EntityUser, id, core.ActionCreate, nil, u, "User registered")
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, id)
	return s.sessions.Create(*u), nil
}

// Login checks the password and opens a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (session.Session, error) {
	u, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return session.Session{}, err
	}
	if u == nil {
		return session.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return session.Session{}, ErrInvalidCredentials
		}
		return session.Session{}, fmt.Errorf("compare password: %w", err)
	}
	return s.sessions.Create(*u), nil
}

func (s *AuthService) Logout(token string) bool {
	return s.sessions.Destroy(token)
}

// Authenticate resolves a bearer token.
func (s *AuthService) Authenticate(token string) (session.Session, bool) {
	return s.sessions.Get(token)
}

// UpdateMonthlyIncome stores the new income and refreshes every live
// session of the user.
func (s *AuthService) UpdateMonthlyIncome(ctx context.Context, sess session.Session, income float64) error {
	before, err := s.repos.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if before == nil {
		return fmt.Errorf("user %d: %w", sess.UserID, core.ErrNotFound)
	}
	if err := s.repos.Users.UpdateMonthlyIncome(ctx, sess.UserID, income); err != nil {
		return err
	}
	after := *before
	after.MonthlyIncome = income
	s.audit(ctx, sess.UserID, core.EntityUser, sess.UserID, core.ActionUpdate, before, after, "Monthly income updated")
	s.sessions.SetIncome(sess.UserID, income)
	s.publish(ctx, amqp.EventIncomeUpdated, sess.UserID, sess.UserID)
	return nil
}

// DeleteAccount removes the user together with its expenses and audit
// trail, then closes every live session of the user. It reports how many
// sessions were closed.
func (s *AuthService) DeleteAccount(ctx context.Context, sess session.Session) (int, error) {
	u, err := s.repos.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, fmt.Errorf("user %d: %w", sess.UserID, core.ErrNotFound)
	}
	if err := s.repos.Users.Delete(ctx, sess.UserID); err != nil {
		return 0, err
	}
	closed := s.sessions.DropUser(sess.UserID)
	s.logger.InfoContext(ctx, "Account deleted", log.FieldUserID, sess.UserID, "sessions_closed", closed)
	return closed, nil
}
