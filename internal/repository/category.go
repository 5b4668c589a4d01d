package repository

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

// DefaultCategories seeds an empty category table.
var DefaultCategories = []core.CategoryDraft{
	{Name: "Food", Icon: "restaurant", Color: "#FF6B6B"},
	{Name: "Transport", Icon: "car", Color: "#4ECDC4"},
	{Name: "Entertainment", Icon: "game-controller", Color: "#95E1D3"},
	{Name: "Shopping", Icon: "cart", Color: "#FFE66D"},
	{Name: "Health", Icon: "fitness", Color: "#A8E6CF"},
	{Name: "Education", Icon: "school", Color: "#B4A7D6"},
	{Name: "Services", Icon: "construct", Color: "#FFB3BA"},
	{Name: "Other", Icon: "ellipsis-horizontal", Color: "#BAB8B5"},
}

type CategoryRepository struct {
	gw   gateway.Gateway
	opts options
}

func NewCategoryRepository(gw gateway.Gateway, opts ...Option) *CategoryRepository {
	return &CategoryRepository{gw: gw, opts: buildOptions(opts)}
}

// nameKey folds a category name for the uniqueness check.
func nameKey(name string) string {
	return strings.ToLower(name)
}

// Create stores a category. A name matching an existing one ignoring case,
// active or not, yields core.ErrDuplicateKey.
func (r *CategoryRepository) Create(ctx context.Context, c core.CategoryDraft) (int64, error) {
	active := true
	if c.IsActive != nil {
		active = *c.IsActive
	}
	id, err := r.gw.Insert(ctx, gateway.TableCategories, gateway.Record{
		"name":       c.Name,
		"name_key":   nameKey(c.Name),
		"icon":       c.Icon,
		"color":      c.Color,
		"is_active":  active,
		"created_at": r.opts.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	r.opts.logger.InfoContext(ctx, "Category created", "category_id", id, "name", c.Name)
	return id, nil
}

// GetAll lists every category by name.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]core.Category, error) {
	return r.list(ctx, gateway.Query{})
}

// GetActive lists the categories not soft-deleted, by name.
func (r *CategoryRepository) GetActive(ctx context.Context) ([]core.Category, error) {
	return r.list(ctx, gateway.Where(gateway.Eq("is_active", true)))
}

func (r *CategoryRepository) list(ctx context.Context, q gateway.Query) ([]core.Category, error) {
	rows, err := r.gw.QueryAll(ctx, gateway.TableCategories, q.Asc("name").Asc(gateway.IDColumn))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, rec := range rows {
		out = append(out, *categoryFromRecord(rec))
	}
	return out, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*core.Category, error) {
	rec, err := r.gw.QueryOne(ctx, gateway.TableCategories, gateway.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return categoryFromRecord(rec), nil
}

// Update applies the non-nil fields of p. Renaming onto another category's
// name yields core.ErrDuplicateKey; unknown ids are ignored.
func (r *CategoryRepository) Update(ctx context.Context, id int64, p core.CategoryPatch) error {
	if p.IsEmpty() {
		return nil
	}
	patch := gateway.Record{}
	if p.Name != nil {
		patch["name"] = *p.Name
		patch["name_key"] = nameKey(*p.Name)
	}
	if p.Icon != nil {
		patch["icon"] = *p.Icon
	}
	if p.Color != nil {
		patch["color"] = *p.Color
	}
	if p.IsActive != nil {
		patch["is_active"] = *p.IsActive
	}
	if err := r.gw.Update(ctx, gateway.TableCategories, id, patch); err != nil {
		return fmt.Errorf("update category %d: %w", id, err)
	}
	return nil
}

// Delete deactivates the category, or removes it when hard is set. Missing
// ids are not an error. Expenses keep their category label either way.
func (r *CategoryRepository) Delete(ctx context.Context, id int64, hard bool) error {
	var err error
	if hard {
		err = r.gw.Delete(ctx, gateway.TableCategories, id)
	} else {
		err = r.gw.Update(ctx, gateway.TableCategories, id, gateway.Record{"is_active": false})
	}
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	r.opts.logger.InfoContext(ctx, "Category deleted", "category_id", id, "hard", hard)
	return nil
}

// InitializeDefaults stores DefaultCategories when the table is empty and
// reports how many were created.
func (r *CategoryRepository) InitializeDefaults(ctx context.Context) (int, error) {
	existing, err := r.gw.QueryOne(ctx, gateway.TableCategories, gateway.Query{})
	if err != nil {
		return 0, fmt.Errorf("check categories: %w", err)
	}
	if existing != nil {
		return 0, nil
	}
	for i, c := range DefaultCategories {
		if _, err := r.Create(ctx, c); err != nil {
			return i, fmt.Errorf("seed default categories: %w", err)
		}
	}
	r.opts.logger.InfoContext(ctx, "Default categories initialized", "count", len(DefaultCategories))
	return len(DefaultCategories), nil
}

func categoryFromRecord(rec gateway.Record) *core.Category {
	if rec == nil {
		return nil
	}
	return &core.Category{
		ID:        rec.ID(),
		Name:      rec.String("name"),
		Icon:      rec.String("icon"),
		Color:     rec.String("color"),
		IsActive:  rec.Bool("is_active"),
		CreatedAt: rec.Time("created_at"),
	}
}
