package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.bolt")
	s, err := NewBoltStore(BoltOptions{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreExistsFalseBeforeWrite(t *testing.T) {
	s := openTestBoltStore(t)
	require.False(t, s.Exists("client-1"))
}

func TestBoltStoreStartPersistencePersistsAndResolves(t *testing.T) {
	s := openTestBoltStore(t)

	fut := s.StartPersistence("client-1", true, 7200)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	present, err := fut.Wait(ctx)
	require.NoError(t, err)
	require.True(t, present)

	require.True(t, s.Exists("client-1"))
}

func TestBoltStoreStartPersistenceResolvesFalseWhenNoPriorSession(t *testing.T) {
	s := openTestBoltStore(t)

	fut := s.StartPersistence("fresh-client", false, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	present, err := fut.Wait(ctx)
	require.NoError(t, err)
	require.False(t, present)
}

func TestBoltStoreDefaultsPathAndBucket(t *testing.T) {
	s := openTestBoltStore(t)
	require.NotEmpty(t, s.opts.Bucket)
}

func TestBoltStoreCloseThenExistsReturnsFalse(t *testing.T) {
	s := openTestBoltStore(t)
	require.NoError(t, s.Close())
	require.False(t, s.Exists("anything"))
}
