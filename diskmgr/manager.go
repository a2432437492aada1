// Package diskmgr implements the disk manager collaborator the heap file
// layer is built on: it creates, opens, closes, and destroys named heap
// files, and allocates fresh page numbers by growing a file one page at
// a time.
package diskmgr

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/heapkit/heapfiledb/config"
)

var (
	// ErrFileExists is returned by CreateFile when the named file is
	// already present on disk.
	ErrFileExists = errors.New("diskmgr: file already exists")

	// ErrFileNotFound is returned by OpenFile/DestroyFile when the named
	// file does not exist.
	ErrFileNotFound = errors.New("diskmgr: file not found")

	// ErrInvalidPage is returned by ReadPage/WritePage when pageNo is
	// outside the file's current page count.
	ErrInvalidPage = errors.New("diskmgr: invalid page number")
)

// File is a handle to one open heap file on disk.
type File struct {
	name string

	mu        sync.Mutex
	f         *os.File
	pageCount int32
}

// Name returns the heap file name this handle was opened under.
func (f *File) Name() string { return f.name }

// Manager creates, opens, closes, and destroys named heap files and
// allocates their pages.
type Manager struct {
	cfg *config.Config
}

// NewManager returns a Manager rooted at cfg.Dir, using cfg.PageSize for
// every page it allocates or transfers.
func NewManager(cfg *config.Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// PageSize returns the configured page size.
func (m *Manager) PageSize() int { return m.cfg.PageSize }

func (m *Manager) path(name string) string {
	return filepath.Join(m.cfg.Dir, name+".heap")
}

// CreateFile creates a new, empty heap file on disk. It fails with
// ErrFileExists if the file is already present.
func (m *Manager) CreateFile(name string) error {
	path := m.path(name)
	if _, err := os.Stat(path); err == nil {
		return ErrFileExists
	} else if !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// OpenFile opens an existing heap file and returns a handle to it.
func (m *Manager) OpenFile(name string) (*File, error) {
	path := m.path(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	pageCount := int32(stat.Size() / int64(m.cfg.PageSize))
	return &File{name: name, f: f, pageCount: pageCount}, nil
}

// CloseFile closes the underlying OS handle.
func (m *Manager) CloseFile(f *File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f.Close()
}

// DestroyFile removes the named heap file from disk.
func (m *Manager) DestroyFile(name string) error {
	path := m.path(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return err
	}
	return nil
}

// AllocatePage grows f by one zeroed page and returns its page number.
func (m *Manager) AllocatePage(f *File) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pageNo := f.pageCount
	zero := make([]byte, m.cfg.PageSize)
	if _, err := f.f.WriteAt(zero, int64(pageNo)*int64(m.cfg.PageSize)); err != nil {
		return 0, err
	}
	f.pageCount++
	return pageNo, nil
}

// ReadPage reads exactly one page worth of bytes from f at pageNo.
func (m *Manager) ReadPage(f *File, pageNo int32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pageNo < 0 || pageNo >= f.pageCount {
		return nil, ErrInvalidPage
	}
	buf := make([]byte, m.cfg.PageSize)
	off := int64(pageNo) * int64(m.cfg.PageSize)
	if _, err := f.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// WritePage writes exactly one page worth of bytes to f at pageNo,
// zero-padding data if it is shorter than the page size, and fsyncs the
// write.
func (m *Manager) WritePage(f *File, pageNo int32, data []byte) error {
	if len(data) > m.cfg.PageSize {
		return errors.New("diskmgr: data larger than page size")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if pageNo < 0 || pageNo >= f.pageCount {
		return ErrInvalidPage
	}
	buf := data
	if len(data) != m.cfg.PageSize {
		buf = make([]byte, m.cfg.PageSize)
		copy(buf, data)
	}
	off := int64(pageNo) * int64(m.cfg.PageSize)
	if _, err := f.f.WriteAt(buf, off); err != nil {
		return err
	}
	return f.f.Sync()
}
