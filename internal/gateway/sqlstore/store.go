package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Store is the relational backend: one sqlite file holding the four tables.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

func New(dbPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: dbPath, logger: logger.With("backend", "sqlite")}
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return core.NewBackendError("init", fmt.Errorf("create db directory: %w", err))
	}
	if err := RunMigrations(s.path); err != nil {
		return core.NewBackendError("init", err)
	}
	db, err := s.open(ctx)
	if err != nil {
		return core.NewBackendError("init", err)
	}
	s.db = db
	s.logger.InfoContext(ctx, "SQLite backend initialized", "db_path", s.path)
	return nil
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+s.path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps the pragmas in force.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return core.ErrNotInitialized
	}
	if err := s.db.Close(); err != nil {
		s.logger.WarnContext(ctx, "Closing database before reset failed", "error", err)
	}
	s.db = nil
	if err := ResetSchema(s.path); err != nil {
		return core.NewBackendError("reset", err)
	}
	db, err := s.open(ctx)
	if err != nil {
		return core.NewBackendError("reset", err)
	}
	s.db = db
	s.logger.InfoContext(ctx, "SQLite schema reset")
	return nil
}

// conn returns the open database and the schema of table under a read lock
// the caller must release.
func (s *Store) conn(table string) (*sql.DB, gateway.Table, func(), error) {
	t, err := gateway.Resolve(table)
	if err != nil {
		return nil, gateway.Table{}, nil, err
	}
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return nil, gateway.Table{}, nil, core.ErrNotInitialized
	}
	return s.db, t, s.mu.RUnlock, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec gateway.Record) (int64, error) {
	db, t, release, err := s.conn(table)
	if err != nil {
		return 0, err
	}
	defer release()

	norm, err := gateway.Normalize(t, rec)
	if err != nil {
		return 0, err
	}
	norm = gateway.Complete(t, norm)

	cols := make([]string, 0, len(t.Columns))
	vals := make([]any, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == gateway.IDColumn {
			continue
		}
		cols = append(cols, c.Name)
		vals = append(vals, gateway.Encode(c, norm[c.Name]))
	}

	res, err := sq.Insert(t.Name).Columns(cols...).Values(vals...).RunWith(db).ExecContext(ctx)
	if err != nil {
		return 0, classify("insert "+t.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, core.NewBackendError("insert "+t.Name, err)
	}
	s.logger.InfoContext(ctx, "Row inserted", "table", t.Name, "id", id)
	return id, nil
}

func (s *Store) QueryAll(ctx context.Context, table string, q gateway.Query) ([]gateway.Record, error) {
	db, t, release, err := s.conn(table)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.selectRows(ctx, db, t, q)
}

func (s *Store) QueryOne(ctx context.Context, table string, q gateway.Query) (gateway.Record, error) {
	db, t, release, err := s.conn(table)
	if err != nil {
		return nil, err
	}
	defer release()
	rows, err := s.selectRows(ctx, db, t, q.WithLimit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (s *Store) selectRows(ctx context.Context, db *sql.DB, t gateway.Table, q gateway.Query) ([]gateway.Record, error) {
	q, err := gateway.NormalizeQuery(t, q)
	if err != nil {
		return nil, err
	}
	b := sq.Select(t.ColumnNames()...).From(t.Name)
	for _, c := range q.Where {
		b = b.Where(toSqlizer(t, c))
	}
	for _, o := range q.OrderBy {
		if o.Desc {
			b = b.OrderBy(o.Column + " DESC")
		} else {
			b = b.OrderBy(o.Column + " ASC")
		}
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	rows, err := b.RunWith(db).QueryContext(ctx)
	if err != nil {
		return nil, classify("query "+t.Name, err)
	}
	defer rows.Close()

	var out []gateway.Record
	for rows.Next() {
		raw := make([]any, len(t.Columns))
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, core.NewBackendError("scan "+t.Name, err)
		}
		rec := make(gateway.Record, len(t.Columns))
		for i, c := range t.Columns {
			v, err := gateway.Coerce(c.Kind, raw[i])
			if err != nil {
				return nil, core.NewBackendError("decode "+t.Name, err)
			}
			rec[c.Name] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewBackendError("query "+t.Name, err)
	}
	s.logger.DebugContext(ctx, "Rows selected", "table", t.Name, "count", len(out))
	return out, nil
}

func (s *Store) Update(ctx context.Context, table string, id int64, patch gateway.Record) error {
	db, t, release, err := s.conn(table)
	if err != nil {
		return err
	}
	defer release()

	norm, err := gateway.Normalize(t, patch)
	if err != nil {
		return err
	}
	delete(norm, gateway.IDColumn)
	if len(norm) == 0 {
		return nil
	}
	set := make(map[string]any, len(norm))
	for name, v := range norm {
		c, _ := t.Column(name)
		set[name] = gateway.Encode(c, v)
	}

	res, err := sq.Update(t.Name).SetMap(set).Where(sq.Eq{gateway.IDColumn: id}).RunWith(db).ExecContext(ctx)
	if err != nil {
		return classify("update "+t.Name, err)
	}
	n, _ := res.RowsAffected()
	s.logger.InfoContext(ctx, "Row updated", "table", t.Name, "id", id, "affected", n)
	return nil
}

func (s *Store) Delete(ctx context.Context, table string, id int64) error {
	db, t, release, err := s.conn(table)
	if err != nil {
		return err
	}
	defer release()

	res, err := sq.Delete(t.Name).Where(sq.Eq{gateway.IDColumn: id}).RunWith(db).ExecContext(ctx)
	if err != nil {
		return classify("delete "+t.Name, err)
	}
	n, _ := res.RowsAffected()
	s.logger.InfoContext(ctx, "Row deleted", "table", t.Name, "id", id, "affected", n)
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, table string, where []gateway.Cond) (int64, error) {
	db, t, release, err := s.conn(table)
	if err != nil {
		return 0, err
	}
	defer release()

	conds, err := gateway.NormalizeConds(t, where)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.NewBackendError("begin delete "+t.Name, err)
	}
	defer tx.Rollback()

	b := sq.Delete(t.Name)
	for _, c := range conds {
		b = b.Where(toSqlizer(t, c))
	}
	res, err := b.RunWith(tx).ExecContext(ctx)
	if err != nil {
		return 0, classify("delete "+t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewBackendError("delete "+t.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, core.NewBackendError("commit delete "+t.Name, err)
	}
	s.logger.InfoContext(ctx, "Rows deleted", "table", t.Name, "affected", n)
	return n, nil
}

// toSqlizer renders a normalized condition. Column names come from the
// schema, never from callers, so they are safe to splice.
func toSqlizer(t gateway.Table, c gateway.Cond) sq.Sqlizer {
	if c.Op == gateway.OpLtColumn {
		return sq.Expr(c.Column + " < " + c.Other)
	}
	col, _ := t.Column(c.Column)
	v := gateway.Encode(col, c.Value)
	switch c.Op {
	case gateway.OpEq:
		return sq.Eq{c.Column: v}
	case gateway.OpNe:
		return sq.NotEq{c.Column: v}
	case gateway.OpLt:
		return sq.Lt{c.Column: v}
	case gateway.OpLe:
		return sq.LtOrEq{c.Column: v}
	case gateway.OpGt:
		return sq.Gt{c.Column: v}
	default:
		return sq.GtOrEq{c.Column: v}
	}
}

// classify maps constraint violations onto the core sentinels and hides
// everything else behind a BackendError.
func classify(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, core.ErrDuplicateKey)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, core.ErrForeignKey)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", op, core.ErrDuplicateKey)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w", op, core.ErrForeignKey)
	}
	return core.NewBackendError(op, err)
}
