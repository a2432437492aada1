package diskmgr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heapkit/heapfiledb/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.PageSize = 128
	m, err := NewManager(cfg)
	require.NoError(t, err)
	return m
}

func TestCreateOpenDestroy(t *testing.T) {
	m := newManager(t)

	require.NoError(t, m.CreateFile("t"))
	require.ErrorIs(t, m.CreateFile("t"), ErrFileExists)

	f, err := m.OpenFile("t")
	require.NoError(t, err)
	require.NoError(t, m.CloseFile(f))

	require.NoError(t, m.DestroyFile("t"))
	_, err = m.OpenFile("t")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestAllocateReadWritePage(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.CreateFile("t"))
	f, err := m.OpenFile("t")
	require.NoError(t, err)
	defer m.CloseFile(f)

	p0, err := m.AllocatePage(f)
	require.NoError(t, err)
	require.Equal(t, int32(0), p0)

	p1, err := m.AllocatePage(f)
	require.NoError(t, err)
	require.Equal(t, int32(1), p1)

	data := make([]byte, m.PageSize())
	copy(data, []byte("hello page 1"))
	require.NoError(t, m.WritePage(f, p1, data))

	got, err := m.ReadPage(f, p1)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = m.ReadPage(f, 99)
	require.ErrorIs(t, err, ErrInvalidPage)
}

func TestReopenPreservesPageCount(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.CreateFile("t"))
	f, err := m.OpenFile("t")
	require.NoError(t, err)
	_, err = m.AllocatePage(f)
	require.NoError(t, err)
	_, err = m.AllocatePage(f)
	require.NoError(t, err)
	require.NoError(t, m.CloseFile(f))

	f2, err := m.OpenFile("t")
	require.NoError(t, err)
	defer m.CloseFile(f2)

	p2, err := m.AllocatePage(f2)
	require.NoError(t, err)
	require.Equal(t, int32(2), p2)
}
