// Package heap implements the heap file layer: an unordered collection
// of variable-length records persisted as a linked list of fixed-size
// pages, accessed through a buffered page cache.
//
// A HeapFile owns exactly one open file, its header page (always pinned
// while the file is open), and at most one pinned data page at a time —
// the "current" page. HeapFileScan and InsertFileScan embed HeapFile and
// add their own cursor behavior on top of that shared pin discipline.
package heap

import (
	"errors"
	"log"

	"github.com/heapkit/heapfiledb/bufferpool"
	"github.com/heapkit/heapfiledb/diskmgr"
	"github.com/heapkit/heapfiledb/page"
)

// headerPageNo is the page number of every heap file's header page. The
// disk manager numbers each file's pages independently starting at 0,
// so the header — the first page allocated when the file is created —
// always lands at page 0.
const headerPageNo int32 = 0

var (
	// ErrFileExists is returned by CreateHeapFile when name is already a
	// heap file on disk.
	ErrFileExists = errors.New("heap: file already exists")

	// ErrFileEOF is the terminal signal of a HeapFileScan: returned by
	// ScanNext once the page chain is exhausted.
	ErrFileEOF = errors.New("heap: end of file")

	// ErrInvalidRecLen is returned by InsertRecord when a record cannot
	// fit on even an empty page.
	ErrInvalidRecLen = errors.New("heap: record too large for an empty page")

	// ErrBadScanParm is returned by StartScan when the filter parameters
	// are inconsistent (see StartScan's predicate validation).
	ErrBadScanParm = errors.New("heap: invalid scan parameters")

	// ErrNoMark is returned by ResetScan when no MarkScan is outstanding.
	// EndScan clears any prior mark, so resetting after it also fails
	// with this error rather than reviving the ended scan.
	ErrNoMark = errors.New("heap: no mark to reset to")
)

// CreateHeapFile creates a new, empty heap file: a header page naming
// the file with an empty chain, followed by one empty data page that
// becomes both the head and tail of the chain. It fails with
// ErrFileExists if name is already a heap file.
func CreateHeapFile(dm *diskmgr.Manager, bm bufferpool.Manager, name string) error {
	if err := dm.CreateFile(name); err != nil {
		if errors.Is(err, diskmgr.ErrFileExists) {
			return ErrFileExists
		}
		return err
	}

	f, err := dm.OpenFile(name)
	if err != nil {
		return err
	}

	hdrNo, hdrFrame, err := bm.AllocPage(f)
	if err != nil {
		dm.CloseFile(f)
		return err
	}
	dataNo, dataFrame, err := bm.AllocPage(f)
	if err != nil {
		bm.UnpinPage(f, hdrNo, false)
		dm.CloseFile(f)
		return err
	}

	page.New(dataFrame.Data, dataNo).InitEmpty()

	hdr := page.NewHeaderPage(hdrFrame.Data)
	hdr.InitEmpty(name)
	hdr.SetFirstPage(dataNo)
	hdr.SetLastPage(dataNo)
	hdr.SetRecCnt(0)

	if err := bm.UnpinPage(f, dataNo, true); err != nil {
		bm.UnpinPage(f, hdrNo, false)
		dm.CloseFile(f)
		return err
	}
	if err := bm.UnpinPage(f, hdrNo, true); err != nil {
		dm.CloseFile(f)
		return err
	}
	if err := bm.FlushFile(f); err != nil {
		dm.CloseFile(f)
		return err
	}
	return dm.CloseFile(f)
}

// DestroyHeapFile removes name from disk.
func DestroyHeapFile(dm *diskmgr.Manager, name string) error {
	return dm.DestroyFile(name)
}

// HeapFile owns one open heap file, its pinned header page, and at most
// one pinned data page (the "current" page).
type HeapFile struct {
	name string
	dm   *diskmgr.Manager
	bm   bufferpool.Manager
	file *diskmgr.File

	headerFrame *bufferpool.Frame
	headerDirty bool

	curPageNo int32
	curFrame  *bufferpool.Frame
	curDirty  bool
	curRec    page.RID
}

// Open opens an existing heap file, pins its header page, and — if the
// chain is non-empty — pins the first data page with the cursor
// positioned before its first record.
func Open(dm *diskmgr.Manager, bm bufferpool.Manager, name string) (*HeapFile, error) {
	hf, err := openBase(dm, bm, name)
	if err != nil {
		return nil, err
	}
	return &hf, nil
}

// openBase runs the open sequence shared by HeapFile and both scan
// cursors: open the file, pin the header, and — if the chain is
// non-empty — pin the first data page with the cursor before its first
// record.
func openBase(dm *diskmgr.Manager, bm bufferpool.Manager, name string) (HeapFile, error) {
	f, err := dm.OpenFile(name)
	if err != nil {
		return HeapFile{}, err
	}

	hdrFrame, err := bm.ReadPage(f, headerPageNo)
	if err != nil {
		dm.CloseFile(f)
		return HeapFile{}, err
	}

	hf := HeapFile{
		name:        name,
		dm:          dm,
		bm:          bm,
		file:        f,
		headerFrame: hdrFrame,
		curPageNo:   -1,
		curRec:      page.RID{PageNo: -1, SlotNo: -1},
	}

	firstPage := page.NewHeaderPage(hdrFrame.Data).FirstPage()
	if firstPage != -1 {
		curFrame, err := bm.ReadPage(f, firstPage)
		if err != nil {
			bm.UnpinPage(f, headerPageNo, false)
			dm.CloseFile(f)
			return HeapFile{}, err
		}
		hf.curPageNo = firstPage
		hf.curFrame = curFrame
		hf.curRec = page.BeforeFirst(firstPage)
	}
	return hf, nil
}

// Close unpins the current data page (if any) and the header page, writes
// the file's dirty frames back to disk, then closes the underlying file.
// It is infallible from the caller's
// viewpoint: any error unpinning or closing is logged, not returned, and
// every remaining release is still attempted.
func (hf *HeapFile) Close() error {
	var errs []error

	if hf.curFrame != nil {
		if err := hf.bm.UnpinPage(hf.file, hf.curPageNo, hf.curDirty); err != nil {
			errs = append(errs, err)
		}
		hf.curFrame = nil
		hf.curPageNo = -1
	}
	if hf.headerFrame != nil {
		if err := hf.bm.UnpinPage(hf.file, headerPageNo, hf.headerDirty); err != nil {
			errs = append(errs, err)
		}
		hf.headerFrame = nil
	}
	if err := hf.bm.FlushFile(hf.file); err != nil {
		errs = append(errs, err)
	}
	if err := hf.dm.CloseFile(hf.file); err != nil {
		errs = append(errs, err)
	}

	for _, err := range errs {
		log.Printf("heap: close %q: %v", hf.name, err)
	}
	return nil
}

func (hf *HeapFile) header() *page.HeaderPage {
	return page.NewHeaderPage(hf.headerFrame.Data)
}

// GetRecCnt returns the total number of live records in the file.
func (hf *HeapFile) GetRecCnt() int32 {
	return hf.header().RecCnt()
}

// GetRecord returns a copy of the record at rid. If rid's page is not
// the currently pinned data page, the current page is swapped for it
// first (unpinning the prior one with its dirty flag).
func (hf *HeapFile) GetRecord(rid page.RID) ([]byte, error) {
	if err := hf.pinCurrentPage(rid.PageNo); err != nil {
		return nil, err
	}
	hf.curRec = rid
	return page.New(hf.curFrame.Data, rid.PageNo).GetRecord(rid)
}

// pinCurrentPage ensures pageNo is the pinned "current" data page,
// unpinning whatever was pinned before (with its dirty flag) if it
// differs.
func (hf *HeapFile) pinCurrentPage(pageNo int32) error {
	if hf.curFrame != nil && hf.curPageNo == pageNo {
		return nil
	}
	if hf.curFrame != nil {
		if err := hf.bm.UnpinPage(hf.file, hf.curPageNo, hf.curDirty); err != nil {
			return err
		}
		hf.curFrame = nil
	}
	frame, err := hf.bm.ReadPage(hf.file, pageNo)
	if err != nil {
		return err
	}
	hf.curFrame = frame
	hf.curPageNo = pageNo
	hf.curDirty = false
	return nil
}
