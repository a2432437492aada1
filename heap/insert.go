package heap

import (
	"github.com/heapkit/heapfiledb/bufferpool"
	"github.com/heapkit/heapfiledb/diskmgr"
	"github.com/heapkit/heapfiledb/page"
)

// InsertFileScan is an append-oriented cursor over a heap file: it
// always operates on the chain's tail page, allocating and linking a
// fresh one when the current tail is full.
type InsertFileScan struct {
	HeapFile

	pageSize int
}

// NewInsertFileScan opens name for insertion. pageSize must match the
// page size the file was created with; it bounds the largest record
// InsertRecord will accept.
func NewInsertFileScan(dm *diskmgr.Manager, bm bufferpool.Manager, name string, pageSize int) (*InsertFileScan, error) {
	base, err := openBase(dm, bm, name)
	if err != nil {
		return nil, err
	}
	return &InsertFileScan{HeapFile: base, pageSize: pageSize}, nil
}

// InsertRecord places rec on the chain's tail page, allocating and
// linking a new tail if the current one has no room, and returns the
// assigned RID.
func (s *InsertFileScan) InsertRecord(rec []byte) (page.RID, error) {
	if len(rec) > page.MaxRecordSize(s.pageSize) {
		return page.RID{}, ErrInvalidRecLen
	}

	if err := s.pinTail(); err != nil {
		return page.RID{}, err
	}

	slot, err := page.New(s.curFrame.Data, s.curPageNo).InsertRecord(rec)
	if err == nil {
		s.curDirty = true
		hdr := s.header()
		hdr.SetRecCnt(hdr.RecCnt() + 1)
		s.headerDirty = true
		return page.RID{PageNo: s.curPageNo, SlotNo: slot}, nil
	}

	if err := s.growChain(); err != nil {
		return page.RID{}, err
	}

	// Records are size-limited to fit an empty page, so this retry
	// cannot fail with ErrNoSpace again.
	slot, err = page.New(s.curFrame.Data, s.curPageNo).InsertRecord(rec)
	if err != nil {
		return page.RID{}, err
	}
	s.curDirty = true
	hdr := s.header()
	hdr.SetRecCnt(hdr.RecCnt() + 1)
	s.headerDirty = true
	return page.RID{PageNo: s.curPageNo, SlotNo: slot}, nil
}

// pinTail ensures the currently pinned data page is the chain's tail.
func (s *InsertFileScan) pinTail() error {
	tail := s.header().LastPage()
	if s.curFrame != nil && s.curPageNo == tail {
		return nil
	}
	if s.curFrame != nil {
		if err := s.bm.UnpinPage(s.file, s.curPageNo, s.curDirty); err != nil {
			return err
		}
		s.curFrame = nil
	}
	frame, err := s.bm.ReadPage(s.file, tail)
	if err != nil {
		return err
	}
	s.curFrame = frame
	s.curPageNo = tail
	s.curDirty = false
	return nil
}

// growChain allocates a fresh empty page, links it after the current
// tail, makes it the new tail in the header, and adopts it as current.
func (s *InsertFileScan) growChain() error {
	newPageNo, newFrame, err := s.bm.AllocPage(s.file)
	if err != nil {
		return err
	}
	page.New(newFrame.Data, newPageNo).InitEmpty()

	page.New(s.curFrame.Data, s.curPageNo).SetNextPage(newPageNo)
	if err := s.bm.UnpinPage(s.file, s.curPageNo, true); err != nil {
		return err
	}

	hdr := s.header()
	hdr.SetLastPage(newPageNo)
	s.headerDirty = true

	s.curFrame = newFrame
	s.curPageNo = newPageNo
	s.curDirty = false
	return nil
}

// Close unpins the current page as dirty — inserts are assumed to have
// mutated it — before the embedded HeapFile releases the header pin and
// closes the file.
func (s *InsertFileScan) Close() error {
	if s.curFrame != nil {
		s.curDirty = true
	}
	return s.HeapFile.Close()
}
