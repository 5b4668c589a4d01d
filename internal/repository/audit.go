package repository

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

const (
	DefaultAuditLimit = 50
	DefaultRecentDays = 7
)

// AuditRepository is append-only.
type AuditRepository struct {
	gw   gateway.Gateway
	opts options
}

func NewAuditRepository(gw gateway.Gateway, opts ...Option) *AuditRepository {
	return &AuditRepository{gw: gw, opts: buildOptions(opts)}
}

// Create appends an entry. The entity it describes need not exist anymore.
func (r *AuditRepository) Create(ctx context.Context, a core.Audit) (int64, error) {
	id, err := r.gw.Insert(ctx, gateway.TableAudits, gateway.Record{
		"user_id":     a.UserID,
		"entity_type": a.EntityType,
		"entity_id":   a.EntityID,
		"action":      string(a.Action),
		"old_value":   a.OldValue,
		"new_value":   a.NewValue,
		"description": a.Description,
		"created_at":  r.opts.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("create audit: %w", err)
	}
	r.opts.logger.DebugContext(ctx, "Audit appended", "audit_id", id, "entity", a.EntityType, "action", a.Action)
	return id, nil
}

// GetByUser returns the newest entries of the user, DefaultAuditLimit when
// limit is not positive.
func (r *AuditRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]core.Audit, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	return r.list(ctx, gateway.Where(gateway.Eq("user_id", userID)).WithLimit(limit))
}

func (r *AuditRepository) GetByEntity(ctx context.Context, entityType string, entityID int64) ([]core.Audit, error) {
	return r.list(ctx, gateway.Where(gateway.Eq("entity_type", entityType), gateway.Eq("entity_id", entityID)))
}

// GetRecent returns the user's entries of the last days days,
// DefaultRecentDays when days is not positive.
func (r *AuditRepository) GetRecent(ctx context.Context, userID int64, days int) ([]core.Audit, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	since := r.opts.now().Add(-time.Duration(days) * 24 * time.Hour)
	return r.list(ctx, gateway.Where(gateway.Eq("user_id", userID), gateway.Ge("created_at", since)))
}

func (r *AuditRepository) GetByAction(ctx context.Context, userID int64, action core.AuditAction) ([]core.Audit, error) {
	return r.list(ctx, gateway.Where(gateway.Eq("user_id", userID), gateway.Eq("action", string(action))))
}

func (r *AuditRepository) list(ctx context.Context, q gateway.Query) ([]core.Audit, error) {
	rows, err := r.gw.QueryAll(ctx, gateway.TableAudits, newestFirst(q))
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	out := make([]core.Audit, 0, len(rows))
	for _, rec := range rows {
		out = append(out, core.Audit{
			ID:          rec.ID(),
			UserID:      rec.Int("user_id"),
			EntityType:  rec.String("entity_type"),
			EntityID:    rec.Int("entity_id"),
			Action:      core.AuditAction(rec.String("action")),
			OldValue:    rec.String("old_value"),
			NewValue:    rec.String("new_value"),
			Description: rec.String("description"),
			CreatedAt:   rec.Time("created_at"),
		})
	}
	return out, nil
}
