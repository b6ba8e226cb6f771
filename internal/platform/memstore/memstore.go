// Package memstore is the in-process backend used by tests, demos and
// single-node development. Every table is partitioned by tenant and numbers
// its rows per tenant starting at 1.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("memstore: not found")

type txKey struct{}

// table is the type-erased view the Store needs for reset and rollback.
type table interface {
	snapshot() any
	restore(any)
	reset()
}

// Store owns the lock shared by all of its tables. A unit of work started
// with InTx holds that lock until it returns, so concurrent callers observe
// either none or all of its writes.
type Store struct {
	mu     sync.Mutex
	tables []table
}

func New() *Store {
	return &Store{}
}

func (s *Store) register(t table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, t)
}

// Reset empties every table and restarts id sequences.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		t.reset()
	}
}

// inTx reports whether ctx already holds this store's lock.
func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// InTx runs fn as one unit of work. If fn returns an error every table is
// restored to its state before the call. Nested calls join the outer unit.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]any, len(s.tables))
	for i, t := range s.tables {
		snaps[i] = t.snapshot()
	}

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		for i, t := range s.tables {
			t.restore(snaps[i])
		}
		return err
	}
	return nil
}

type tableState[T any] struct {
	rows map[int64]map[int64]T
	next map[int64]int64
}

// Table is a tenant-partitioned collection of rows of type T.
type Table[T any] struct {
	store *Store
	clone func(T) T
	state tableState[T]
}

// NewTable registers a table with s. clone must return a copy of a row that
// shares no mutable memory with the original; nil means rows are plain values.
func NewTable[T any](s *Store, clone func(T) T) *Table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	t := &Table[T]{store: s, clone: clone}
	t.reset()
	s.register(t)
	return t
}

func (t *Table[T]) reset() {
	t.state = tableState[T]{
		rows: make(map[int64]map[int64]T),
		next: make(map[int64]int64),
	}
}

func (t *Table[T]) snapshot() any {
	snap := tableState[T]{
		rows: make(map[int64]map[int64]T, len(t.state.rows)),
		next: make(map[int64]int64, len(t.state.next)),
	}
	for tenant, rows := range t.state.rows {
		cp := make(map[int64]T, len(rows))
		for id, row := range rows {
			cp[id] = t.clone(row)
		}
		snap.rows[tenant] = cp
	}
	for tenant, n := range t.state.next {
		snap.next[tenant] = n
	}
	return snap
}

func (t *Table[T]) restore(v any) {
	t.state = v.(tableState[T])
}

func (t *Table[T]) partition(tenantID int64) map[int64]T {
	rows, ok := t.state.rows[tenantID]
	if !ok {
		rows = make(map[int64]T)
		t.state.rows[tenantID] = rows
	}
	return rows
}

// Insert allocates the next id for tenantID, builds the row with it and
// stores a copy. The stored row is returned.
func (t *Table[T]) Insert(ctx context.Context, tenantID int64, build func(id int64) (T, error)) (T, error) {
	unlock := t.store.lock(ctx)
	defer unlock()

	id := t.state.next[tenantID] + 1
	row, err := build(id)
	if err != nil {
		var zero T
		return zero, err
	}
	t.state.next[tenantID] = id
	t.partition(tenantID)[id] = t.clone(row)
	return t.clone(row), nil
}

// Put stores row under an explicit id, replacing any existing row. The id
// sequence is advanced past id.
func (t *Table[T]) Put(ctx context.Context, tenantID, id int64, row T) {
	unlock := t.store.lock(ctx)
	defer unlock()

	t.partition(tenantID)[id] = t.clone(row)
	if id > t.state.next[tenantID] {
		t.state.next[tenantID] = id
	}
}

func (t *Table[T]) Get(ctx context.Context, tenantID, id int64) (T, error) {
	unlock := t.store.lock(ctx)
	defer unlock()

	row, ok := t.state.rows[tenantID][id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return t.clone(row), nil
}

// Update applies fn to a copy of the row and stores the result only when fn
// succeeds.
func (t *Table[T]) Update(ctx context.Context, tenantID, id int64, fn func(row *T) error) (T, error) {
	unlock := t.store.lock(ctx)
	defer unlock()

	var zero T
	row, ok := t.state.rows[tenantID][id]
	if !ok {
		return zero, ErrNotFound
	}
	cp := t.clone(row)
	if err := fn(&cp); err != nil {
		return zero, err
	}
	t.state.rows[tenantID][id] = t.clone(cp)
	return cp, nil
}

// List returns copies of the tenant's rows accepted by keep, in id order.
// A nil keep accepts everything.
func (t *Table[T]) List(ctx context.Context, tenantID int64, keep func(T) bool) []T {
	unlock := t.store.lock(ctx)
	defer unlock()

	rows := t.state.rows[tenantID]
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		row := rows[id]
		if keep == nil || keep(row) {
			out = append(out, t.clone(row))
		}
	}
	return out
}

// Count returns the number of rows stored for tenantID.
func (t *Table[T]) Count(ctx context.Context, tenantID int64) int {
	unlock := t.store.lock(ctx)
	defer unlock()
	return len(t.state.rows[tenantID])
}
