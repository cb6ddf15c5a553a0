// Package boltkv adapts go.etcd.io/bbolt to the kv.DB interface. This is
// the development / single-node backend: one file, no background
// compaction, adapted from the teacher's internal/storage/database/bbolt
// package. bbolt's MVCC read transactions double as the kv.Snapshot
// implementation directly: a Begin(false) transaction already pins a
// consistent point-in-time view.
package boltkv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/crossbank/ledgerd/internal/storage/kv"
)

var rootBucket = []byte("kv")

// DB wraps a single bbolt.DB instance with one flat bucket.
type DB struct {
	db *bbolt.DB
}

var _ kv.DB = (*DB)(nil)

// Open opens (creating if absent) a bbolt store at path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltkv: create root bucket: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(_ context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := d.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(rootBucket).Get(key)
		if value == nil {
			return kv.ErrNotFound
		}
		out = make([]byte, len(value))
		copy(out, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) PutBatch(_ context.Context, ops []kv.Op) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucket)
		for _, op := range ops {
			var err error
			switch op.Type {
			case kv.OpPut:
				err = bucket.Put(op.Key, op.Value)
			case kv.OpDelete:
				err = bucket.Delete(op.Key)
			default:
				return fmt.Errorf("boltkv: unknown op type %d", op.Type)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) Iterator(_ context.Context, start, end []byte) (kv.Iterator, error) {
	tx, err := d.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &iterator{tx: tx, cursor: tx.Bucket(rootBucket).Cursor(), start: start, end: end}, nil
}

func (d *DB) Snapshot(_ context.Context) (kv.Snapshot, error) {
	tx, err := d.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &snapshot{tx: tx}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

type iterator struct {
	tx         *bbolt.Tx
	cursor     *bbolt.Cursor
	start, end []byte
	key, value []byte
	began      bool
}

func (it *iterator) Next() bool {
	var k, v []byte
	if !it.began {
		it.began = true
		if it.start == nil {
			k, v = it.cursor.First()
		} else {
			k, v = it.cursor.Seek(it.start)
		}
	} else {
		k, v = it.cursor.Next()
	}

	if k == nil || (it.end != nil && string(k) >= string(it.end)) {
		it.key, it.value = nil, nil
		return false
	}
	it.key, it.value = k, v
	return true
}

func (it *iterator) Key() []byte   { return it.key }
func (it *iterator) Value() []byte { return it.value }
func (it *iterator) Error() error  { return nil }
func (it *iterator) Close() error  { return it.tx.Rollback() }

type snapshot struct {
	tx *bbolt.Tx
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	value := s.tx.Bucket(rootBucket).Get(key)
	if value == nil {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *snapshot) Iterator(start, end []byte) (kv.Iterator, error) {
	return &iterator{tx: s.tx, cursor: s.tx.Bucket(rootBucket).Cursor(), start: start, end: end}, nil
}

func (s *snapshot) Close() error {
	return s.tx.Rollback()
}

// Manager tracks one bbolt file per named namespace, grounded on the
// teacher's bbolt.Manager.
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
	db, err := Open(filepath.Join(m.root, name+".db"))
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
			firstErr = fmt.Errorf("boltkv: close %s: %w", name, err)
		}
		delete(m.dbs, name)
	}
	return firstErr
}
