package pebblekv

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossbank/ledgerd/internal/storage/kv"
)

func setupManager(t *testing.T) (*Manager, func()) {
	dir, err := os.MkdirTemp("", "pebblekv-test-*")
	require.NoError(t, err)
	m := NewManager(dir)
	return m, func() {
		m.Close()
		os.RemoveAll(dir)
	}
}

func TestLifecycleWriteRead(t *testing.T) {
	m, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	db, err := m.Open("ledger")
	require.NoError(t, err)

	require.NoError(t, db.PutBatch(ctx, []kv.Op{{Type: kv.OpPut, Key: []byte("k1"), Value: []byte("v1")}}))

	got, err := db.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	_, err = db.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestBatchIsAtomicAcrossPutAndDelete(t *testing.T) {
	m, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	db, err := m.Open("ledger")
	require.NoError(t, err)

	require.NoError(t, db.PutBatch(ctx, []kv.Op{
		{Type: kv.OpPut, Key: []byte("a"), Value: []byte("1")},
		{Type: kv.OpPut, Key: []byte("b"), Value: []byte("2")},
	}))
	require.NoError(t, db.PutBatch(ctx, []kv.Op{
		{Type: kv.OpDelete, Key: []byte("a")},
		{Type: kv.OpPut, Key: []byte("c"), Value: []byte("3")},
	}))

	_, err = db.Get(ctx, []byte("a"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
	v, err := db.Get(ctx, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))
}

func TestIteratorRespectsRange(t *testing.T) {
	m, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	db, err := m.Open("ledger")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		key := []byte(fmt.Sprintf("seq-%03d", i))
		require.NoError(t, db.PutBatch(ctx, []kv.Op{{Type: kv.OpPut, Key: key, Value: key}}))
	}

	it, err := db.Iterator(ctx, []byte("seq-001"), []byte("seq-003"))
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"seq-001", "seq-002"}, keys)
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	m, cleanup := setupManager(t)
	defer cleanup()
	ctx := context.Background()

	db, err := m.Open("ledger")
	require.NoError(t, err)
	require.NoError(t, db.PutBatch(ctx, []kv.Op{{Type: kv.OpPut, Key: []byte("k"), Value: []byte("before")}}))

	snap, err := db.Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, db.PutBatch(ctx, []kv.Op{{Type: kv.OpPut, Key: []byte("k"), Value: []byte("after")}}))

	v, err := snap.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "before", string(v))

	v2, err := db.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "after", string(v2))
}

func TestManagerReopenReturnsSameInstance(t *testing.T) {
	m, cleanup := setupManager(t)
	defer cleanup()

	a, err := m.Open("ledger")
	require.NoError(t, err)
	b, err := m.Open("ledger")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
