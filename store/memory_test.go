package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutAndSnapshot(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Put("eth0", Port{Name: "eth0", LACPMode: "active", Rate: "fast", Aggregate: "lag0"}))
	require.NoError(t, s.Put("eth1", Port{Name: "eth1", LACPMode: "passive", Rate: "slow", Aggregate: "lag0"}))

	snap := s.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "active", snap["eth0"].LACPMode)
	assert.Equal(t, "lag0", snap["eth1"].Aggregate)

	// Snapshot is a copy; mutating it must not affect the store.
	snap["eth0"] = Port{Name: "eth0", LACPMode: "off"}
	assert.Equal(t, "active", s.Snapshot()["eth0"].LACPMode)
}

func TestMemoryStore_ChangeFeed(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Put("eth0", Port{Name: "eth0", LACPMode: "active"}))

	select {
	case c := <-s.Changes():
		assert.Equal(t, "eth0", c.Key)
		assert.Equal(t, OpPut, c.Operation)
		require.NotNil(t, c.Port)
		assert.Equal(t, "active", c.Port.LACPMode)
		assert.Equal(t, uint64(1), c.Revision)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change")
	}

	require.NoError(t, s.Delete("eth0"))

	select {
	case c := <-s.Changes():
		assert.Equal(t, OpDelete, c.Operation)
		assert.Nil(t, c.Port)
		assert.Equal(t, uint64(2), c.Revision)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delete change")
	}
}

func TestMemoryStore_DeleteMissing(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	assert.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestMemoryStore_InvalidKey(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	assert.ErrorIs(t, s.Put("", Port{}), ErrInvalidKey)
	assert.ErrorIs(t, s.Put("bad key", Port{}), ErrInvalidKey)
}

func TestMemoryStore_Close(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	assert.ErrorIs(t, s.Run(), ErrClosed)
	assert.ErrorIs(t, s.Put("eth0", Port{Name: "eth0"}), ErrClosed)

	// Feed is closed after Close.
	_, open := <-s.Changes()
	assert.False(t, open)
}

func TestMemoryStore_RunIsNoOp(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	assert.NoError(t, s.Run())
}
