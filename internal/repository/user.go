package repository

import (
	"context"
	"fmt"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

type UserRepository struct {
	gw   gateway.Gateway
	opts options
}

func NewUserRepository(gw gateway.Gateway, opts ...Option) *UserRepository {
	return &UserRepository{gw: gw, opts: buildOptions(opts)}
}

// Create registers a user. An email already stored, compared exactly,
// yields core.ErrDuplicateKey.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (int64, error) {
	id, err := r.gw.Insert(ctx, gateway.TableUsers, gateway.Record{
		"email":          email,
		"password_hash":  passwordHash,
		"monthly_income": 0.0,
		"created_at":     r.opts.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	r.opts.logger.InfoContext(ctx, "User created", "user_id", id)
	return id, nil
}

// GetByEmail returns nil when no user has the email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	rec, err := r.gw.QueryOne(ctx, gateway.TableUsers, gateway.Where(gateway.Eq("email", email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return userFromRecord(rec), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*core.User, error) {
	rec, err := r.gw.QueryOne(ctx, gateway.TableUsers, gateway.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return userFromRecord(rec), nil
}

func (r *UserRepository) UpdateMonthlyIncome(ctx context.Context, id int64, income float64) error {
	if err := r.gw.Update(ctx, gateway.TableUsers, id, gateway.Record{"monthly_income": income}); err != nil {
		return fmt.Errorf("update income of user %d: %w", id, err)
	}
	return nil
}

// Delete removes the user together with their expenses and audit entries.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	if err := r.gw.Delete(ctx, gateway.TableUsers, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	r.opts.logger.InfoContext(ctx, "User deleted", "user_id", id)
	return nil
}

func userFromRecord(rec gateway.Record) *core.User {
	if rec == nil {
		return nil
	}
	return &core.User{
		ID:            rec.ID(),
		Email:         rec.String("email"),
		PasswordHash:  rec.String("password_hash"),
		MonthlyIncome: rec.Float("monthly_income"),
		CreatedAt:     rec.Time("created_at"),
	}
}
