// Package pebblekv adapts cockroachdb/pebble to the kv.DB interface. This
// is the production backend: an LSM tree tolerant of the ledger's
// append-heavy, rarely-overwritten write pattern, adapted from the
// teacher's internal/storage/database/pebble package.
package pebblekv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/crossbank/ledgerd/internal/storage/kv"
)

// DB wraps a single pebble.DB instance.
type DB struct {
	db *pebble.DB
}

var _ kv.DB = (*DB)(nil)

// Open opens (creating if absent) a pebble store at dir.
func Open(dir string) (*DB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebblekv: open %s: %w", dir, err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(_ context.Context, key []byte) ([]byte, error) {
	value, closer, err := d.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, closer.Close()
}

func (d *DB) PutBatch(_ context.Context, ops []kv.Op) error {
	batch := d.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		var err error
		switch op.Type {
		case kv.OpPut:
			err = batch.Set(op.Key, op.Value, nil)
		case kv.OpDelete:
			err = batch.Delete(op.Key, nil)
		default:
			return fmt.Errorf("pebblekv: unknown op type %d", op.Type)
		}
		if err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (d *DB) Iterator(_ context.Context, start, end []byte) (kv.Iterator, error) {
	it, err := d.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return nil, err
	}
	return &iterator{it: it, started: false}, nil
}

func (d *DB) Snapshot(_ context.Context) (kv.Snapshot, error) {
	return &snapshot{snap: d.db.NewSnapshot()}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

type iterator struct {
	it      *pebble.Iterator
	started bool
}

func (i *iterator) Next() bool {
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *iterator) Key() []byte   { return i.it.Key() }
func (i *iterator) Value() []byte { return i.it.Value() }
func (i *iterator) Error() error  { return i.it.Error() }
func (i *iterator) Close() error  { return i.it.Close() }

type snapshot struct {
	snap *pebble.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	value, closer, err := s.snap.Get(key)
	if err == pebble.ErrNotFound {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, closer.Close()
}

func (s *snapshot) Iterator(start, end []byte) (kv.Iterator, error) {
	it, err := s.snap.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return nil, err
	}
	return &iterator{it: it}, nil
}

func (s *snapshot) Close() error {
	return s.snap.Close()
}

// Manager tracks one pebble store per named namespace (e.g. "ledger",
// "settlement"), grounded on the teacher's pebble.Manager.
type Manager struct {
	mu   sync.Mutex
	root string
	dbs  map[string]*DB
}

func NewManager(root string) *Manager {
	return &Manager{root: root, dbs: make(map[string]*DB)}
}

func (m *Manager) Open(name string) (*DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.dbs[name]; ok {
		return db, nil
	}
	db, err := Open(filepath.Join(m.root, name+".pebble"))
	if err != nil {
		return nil, err
	}
	m.dbs[name] = db
	return db, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, db := range m.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pebblekv: close %s: %w", name, err)
		}
		delete(m.dbs, name)
	}
	return firstErr
}
