package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heapkit/heapfiledb/config"
	"github.com/heapkit/heapfiledb/diskmgr"
)

func newTestPool(t *testing.T, capacity int, policy string) (*Pool, *diskmgr.Manager, *diskmgr.File) {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.PageSize = 64
	cfg.BufferPoolSize = capacity
	cfg.ReplacementPolicy = policy
	dm, err := diskmgr.NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, dm.CreateFile("t"))
	f, err := dm.OpenFile("t")
	require.NoError(t, err)
	return NewPool(cfg, dm), dm, f
}

func TestReadPageAllocPageRoundTrip(t *testing.T) {
	pool, dm, f := newTestPool(t, 4, "LRU")

	pageNo, frame, err := pool.AllocPage(f)
	require.NoError(t, err)
	require.Equal(t, int32(0), pageNo)
	copy(frame.Data, []byte("payload"))
	require.NoError(t, pool.UnpinPage(f, pageNo, true))

	require.NoError(t, pool.FlushFile(f))

	reread, err := pool.ReadPage(f, pageNo)
	require.NoError(t, err)
	require.Equal(t, byte('p'), reread.Data[0])
	require.NoError(t, pool.UnpinPage(f, pageNo, false))

	_ = dm
}

func TestUnpinUnknownPageErrors(t *testing.T) {
	pool, _, f := newTestPool(t, 2, "LRU")
	require.ErrorIs(t, pool.UnpinPage(f, 5, false), ErrNotPinned)
}

func TestLRUEvictsUnpinnedFrame(t *testing.T) {
	pool, dm, f := newTestPool(t, 2, "LRU")

	p1, _, err := pool.AllocPage(f)
	require.NoError(t, err)
	p2, _, err := pool.AllocPage(f)
	require.NoError(t, err)

	require.NoError(t, pool.UnpinPage(f, p1, false))
	_, err = pool.ReadPage(f, p2)
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(f, p2, false))

	p3, err := dm.AllocatePage(f)
	require.NoError(t, err)
	_, err = pool.ReadPage(f, p3)
	require.NoError(t, err, "pool should evict the unpinned frame to make room")
}

func TestPoolExhaustedWhenAllPinned(t *testing.T) {
	pool, dm, f := newTestPool(t, 1, "LRU")
	_, _, err := pool.AllocPage(f)
	require.NoError(t, err)

	// Re-pinning the same page succeeds even with capacity 1: it is
	// already resident.
	_, err = pool.ReadPage(f, 0)
	require.NoError(t, err)

	p1, err := dm.AllocatePage(f)
	require.NoError(t, err)
	_, err = pool.ReadPage(f, p1)
	require.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, pool.UnpinPage(f, 0, false))
	require.NoError(t, pool.UnpinPage(f, 0, false))
}
