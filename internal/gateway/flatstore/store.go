package flatstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

// Store is the document backend: every table lives in memory and is written
// back in full to <dir>/<table>.json on each mutation. Memory is swapped
// only once the write has committed, so a failed write leaves both disk and
// memory as they were.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	ready  bool
	tables map[string][]gateway.Record
}

func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("backend", "flat")}
}

func (s *Store) Name() string { return "flat" }

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+".json")
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return core.NewBackendError("init", fmt.Errorf("create data directory: %w", err))
	}
	if err := s.replay(); err != nil {
		return core.NewBackendError("init", err)
	}

	tables := make(map[string][]gateway.Record, len(gateway.Schema))
	missing := make(map[string][]gateway.Record)
	for _, t := range gateway.Schema {
		rows, err := s.load(t)
		if errors.Is(err, os.ErrNotExist) {
			tables[t.Name] = nil
			missing[t.Name] = nil
			continue
		}
		if err != nil {
			return core.NewBackendError("init", err)
		}
		tables[t.Name] = rows
	}
	if len(missing) > 0 {
		if err := s.write(missing); err != nil {
			return core.NewBackendError("init", err)
		}
	}
	s.tables = tables
	s.ready = true
	s.logger.InfoContext(ctx, "Flat backend initialized", "data_directory", s.dir)
	return nil
}

func (s *Store) load(t gateway.Table) ([]gateway.Record, error) {
	data, err := os.ReadFile(s.path(t.Name))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.Name, err)
	}
	rows := make([]gateway.Record, 0, len(raw))
	for i, r := range raw {
		rec := make(gateway.Record, len(t.Columns))
		for _, c := range t.Columns {
			v, err := gateway.Coerce(c.Kind, r[c.Name])
			if err != nil {
				return nil, fmt.Errorf("decode %s row %d: %w", t.Name, i, err)
			}
			rec[c.Name] = v
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.tables = nil
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return core.ErrNotInitialized
	}
	empty := make(map[string][]gateway.Record, len(gateway.Schema))
	for _, t := range gateway.Schema {
		empty[t.Name] = nil
	}
	if err := s.commit(empty); err != nil {
		return core.NewBackendError("reset", err)
	}
	s.logger.InfoContext(ctx, "Flat collections reset")
	return nil
}

// table resolves the schema; the caller holds s.mu.
func (s *Store) table(name string) (gateway.Table, error) {
	t, err := gateway.Resolve(name)
	if err != nil {
		return gateway.Table{}, err
	}
	if !s.ready {
		return gateway.Table{}, core.ErrNotInitialized
	}
	return t, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec gateway.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return 0, err
	}
	norm, err := gateway.Normalize(t, rec)
	if err != nil {
		return 0, err
	}
	row := gateway.Complete(t, norm)

	rows := s.tables[t.Name]
	var id int64 = 1
	for _, r := range rows {
		if r.ID() >= id {
			id = r.ID() + 1
		}
	}
	row[gateway.IDColumn] = id

	if err := s.checkUnique(t, rows, row); err != nil {
		return 0, fmt.Errorf("insert %s: %w", t.Name, err)
	}
	if err := s.checkReferences(t, row); err != nil {
		return 0, fmt.Errorf("insert %s: %w", t.Name, err)
	}

	next := append(append(make([]gateway.Record, 0, len(rows)+1), rows...), row)
	if err := s.commit(map[string][]gateway.Record{t.Name: next}); err != nil {
		return 0, core.NewBackendError("insert "+t.Name, err)
	}
	s.logger.InfoContext(ctx, "Row inserted", "table", t.Name, "id", id)
	return id, nil
}

func (s *Store) QueryAll(ctx context.Context, table string, q gateway.Query) ([]gateway.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	q, err = gateway.NormalizeQuery(t, q)
	if err != nil {
		return nil, err
	}
	selected := gateway.Select(t, s.tables[t.Name], q)
	out := make([]gateway.Record, len(selected))
	for i, r := range selected {
		out[i] = r.Clone()
	}
	s.logger.DebugContext(ctx, "Rows selected", "table", t.Name, "count", len(out))
	return out, nil
}

func (s *Store) QueryOne(ctx context.Context, table string, q gateway.Query) (gateway.Record, error) {
	rows, err := s.QueryAll(ctx, table, q.WithLimit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (s *Store) Update(ctx context.Context, table string, id int64, patch gateway.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return err
	}
	norm, err := gateway.Normalize(t, patch)
	if err != nil {
		return err
	}
	delete(norm, gateway.IDColumn)
	if len(norm) == 0 {
		return nil
	}

	rows := s.tables[t.Name]
	idx := indexOf(rows, id)
	if idx < 0 {
		return nil
	}
	updated := rows[idx].Clone()
	for k, v := range norm {
		updated[k] = v
	}
	others := make([]gateway.Record, 0, len(rows)-1)
	others = append(others, rows[:idx]...)
	others = append(others, rows[idx+1:]...)
	if err := s.checkUnique(t, others, updated); err != nil {
		return fmt.Errorf("update %s: %w", t.Name, err)
	}
	if err := s.checkReferences(t, updated); err != nil {
		return fmt.Errorf("update %s: %w", t.Name, err)
	}

	next := append([]gateway.Record(nil), rows...)
	next[idx] = updated
	if err := s.commit(map[string][]gateway.Record{t.Name: next}); err != nil {
		return core.NewBackendError("update "+t.Name, err)
	}
	s.logger.InfoContext(ctx, "Row updated", "table", t.Name, "id", id)
	return nil
}

func (s *Store) Delete(ctx context.Context, table string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if indexOf(s.tables[t.Name], id) < 0 {
		return nil
	}
	changes := map[string][]gateway.Record{}
	s.remove(t, []gateway.Cond{gateway.Eq(gateway.IDColumn, id)}, changes)
	if err := s.commit(changes); err != nil {
		return core.NewBackendError("delete "+t.Name, err)
	}
	s.logger.InfoContext(ctx, "Row deleted", "table", t.Name, "id", id)
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, table string, where []gateway.Cond) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(table)
	if err != nil {
		return 0, err
	}
	conds, err := gateway.NormalizeConds(t, where)
	if err != nil {
		return 0, err
	}
	changes := map[string][]gateway.Record{}
	n := s.remove(t, conds, changes)
	if n == 0 {
		return 0, nil
	}
	if err := s.commit(changes); err != nil {
		return 0, core.NewBackendError("delete "+t.Name, err)
	}
	s.logger.InfoContext(ctx, "Rows deleted", "table", t.Name, "affected", n)
	return n, nil
}

// remove stages the deletion of rows of t matching conds into changes,
// following cascading foreign keys. It returns how many rows of t go.
func (s *Store) remove(t gateway.Table, conds []gateway.Cond, changes map[string][]gateway.Record) int64 {
	current, ok := changes[t.Name]
	if !ok {
		current = s.tables[t.Name]
	}
	kept := make([]gateway.Record, 0, len(current))
	var removed []int64
	for _, r := range current {
		if gateway.Match(t, r, conds) {
			removed = append(removed, r.ID())
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 {
		return 0
	}
	changes[t.Name] = kept

	for _, ref := range t.Referencing() {
		if !ref.Key.Cascade {
			continue
		}
		for _, id := range removed {
			s.remove(ref.Table, []gateway.Cond{gateway.Eq(ref.Key.Column, id)}, changes)
		}
	}
	return int64(len(removed))
}

func (s *Store) checkUnique(t gateway.Table, rows []gateway.Record, row gateway.Record) error {
	for _, name := range t.Unique {
		col, _ := t.Column(name)
		for _, r := range rows {
			if gateway.Compare(col.Kind, r[name], row[name]) == 0 {
				return core.ErrDuplicateKey
			}
		}
	}
	return nil
}

func (s *Store) checkReferences(t gateway.Table, row gateway.Record) error {
	for _, fk := range t.ForeignKeys {
		if indexOf(s.tables[fk.RefTable], row.Int(fk.Column)) < 0 {
			return core.ErrForeignKey
		}
	}
	return nil
}

func indexOf(rows []gateway.Record, id int64) int {
	for i, r := range rows {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// commit writes the changed tables and, once the write has committed, swaps
// them into memory.
func (s *Store) commit(changes map[string][]gateway.Record) error {
	if err := s.write(changes); err != nil {
		return err
	}
	for name, rows := range changes {
		s.tables[name] = rows
	}
	return nil
}

// journalFile names the tables of a multi-file commit and their staged
// files. Once it is on disk the commit has happened: replay finishes the
// renames after a failure or a crash.
const journalFile = "commit.journal"

// write replaces the changed collections. A single file is swapped in with
// one rename. Several files are staged, recorded in the journal and then
// renamed; a rename failing after that point is retried by the next write
// or by Init.
func (s *Store) write(changes map[string][]gateway.Record) error {
	if err := s.replay(); err != nil {
		return err
	}
	staged, err := s.stage(changes)
	if err != nil {
		return err
	}
	if len(staged) == 1 {
		for name, tmp := range staged {
			if err := os.Rename(tmp, s.path(name)); err != nil {
				os.Remove(tmp)
				return fmt.Errorf("replace %s: %w", name, err)
			}
		}
		return nil
	}
	if err := s.writeJournal(staged); err != nil {
		discard(staged)
		return err
	}
	if err := s.replay(); err != nil {
		s.logger.Warn("Flat commit left pending", "error", err)
	}
	return nil
}

// stage encodes every changed table into a temp file next to its target.
func (s *Store) stage(changes map[string][]gateway.Record) (map[string]string, error) {
	staged := make(map[string]string, len(changes))
	for name, rows := range changes {
		t, err := gateway.Resolve(name)
		if err != nil {
			discard(staged)
			return nil, err
		}
		data, err := encode(t, rows)
		if err != nil {
			discard(staged)
			return nil, err
		}
		tmp, err := writeTemp(s.dir, name, data)
		if err != nil {
			discard(staged)
			return nil, err
		}
		staged[name] = tmp
	}
	return staged, nil
}

func (s *Store) writeJournal(staged map[string]string) error {
	entries := make(map[string]string, len(staged))
	for name, tmp := range staged {
		entries[name] = filepath.Base(tmp)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	tmp, err := writeTemp(s.dir, "journal", data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, journalFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// replay completes a journaled commit. Staged files already renamed are
// skipped, so replaying twice is harmless.
func (s *Store) replay() error {
	journal := filepath.Join(s.dir, journalFile)
	data, err := os.ReadFile(journal)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode journal: %w", err)
	}
	for name, base := range entries {
		err := os.Rename(filepath.Join(s.dir, base), s.path(name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("replace %s: %w", name, err)
		}
	}
	if err := os.Remove(journal); err != nil {
		return fmt.Errorf("remove journal: %w", err)
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return f.Name(), nil
}

func discard(staged map[string]string) {
	for _, tmp := range staged {
		os.Remove(tmp)
	}
}

func encode(t gateway.Table, rows []gateway.Record) ([]byte, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		doc := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			v := gateway.Encode(c, r[c.Name])
			if c.Kind == gateway.KindBool {
				v = r.Bool(c.Name)
			}
			doc[c.Name] = v
		}
		out = append(out, doc)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t.Name, err)
	}
	return data, nil
}
