package heap

import (
	"encoding/binary"
	"math"

	"github.com/heapkit/heapfiledb/bufferpool"
	"github.com/heapkit/heapfiledb/diskmgr"
	"github.com/heapkit/heapfiledb/page"
)

// AttrType tags the interpretation of the bytes a filter predicate
// compares against.
type AttrType int

const (
	AttrString AttrType = iota
	AttrInteger
	AttrFloat
)

// FilterOp is a comparison operator a scan predicate applies between a
// record's attribute bytes and a constant.
type FilterOp int

const (
	LT FilterOp = iota
	LTE
	EQ
	GTE
	GT
	NE
)

// predicate is the tagged (type, op, filterBytes) triple a scan pushes
// down, rehomed from the comparison-operator dispatch of a SQL WHERE
// clause onto raw record bytes.
type predicate struct {
	offset int
	length int
	typ    AttrType
	op     FilterOp
	filter []byte
}

// HeapFileScan walks a heap file's page chain in slot-directory order,
// optionally skipping records that fail a pushed-down filter. curRec
// starts at the before-first sentinel HeapFile.Open leaves it in, so
// ScanNext can always advance by calling Page.NextRecord uniformly —
// NextRecord(beforeFirst) lands on the first live slot the same way
// Page.FirstRecord would.
type HeapFileScan struct {
	HeapFile

	pred *predicate

	marked       bool
	markedPageNo int32
	markedRec    page.RID
}

// NewHeapFileScan opens name and returns a scan cursor positioned before
// its first record. Call StartScan before the first ScanNext to install
// a filter, or to scan unfiltered.
func NewHeapFileScan(dm *diskmgr.Manager, bm bufferpool.Manager, name string) (*HeapFileScan, error) {
	base, err := openBase(dm, bm, name)
	if err != nil {
		return nil, err
	}
	return &HeapFileScan{HeapFile: base}, nil
}

// StartScan installs a filter predicate. Passing a nil filter makes the
// scan match every record. A non-nil filter is validated against
// ErrBadScanParm before being stored.
func (s *HeapFileScan) StartScan(offset, length int, typ AttrType, op FilterOp, filter []byte) error {
	if filter == nil {
		s.pred = nil
		return nil
	}
	if offset < 0 || length < 1 || len(filter) != length {
		return ErrBadScanParm
	}
	switch typ {
	case AttrInteger, AttrFloat:
		if length != 4 {
			return ErrBadScanParm
		}
	case AttrString:
	default:
		return ErrBadScanParm
	}
	switch op {
	case LT, LTE, EQ, GTE, GT, NE:
	default:
		return ErrBadScanParm
	}
	s.pred = &predicate{offset: offset, length: length, typ: typ, op: op, filter: filter}
	return nil
}

// ScanNext advances the cursor to the next record matching the
// predicate (or every record, if none was installed) and returns its
// RID. It returns ErrFileEOF once the chain is exhausted.
func (s *HeapFileScan) ScanNext() (page.RID, error) {
	for {
		if s.curFrame == nil {
			return page.RID{}, ErrFileEOF
		}

		rid, err := page.New(s.curFrame.Data, s.curPageNo).NextRecord(s.curRec)
		if err != nil {
			if err := s.crossPage(); err != nil {
				return page.RID{}, err
			}
			continue
		}
		s.curRec = rid

		rec, err := page.New(s.curFrame.Data, s.curPageNo).GetRecord(rid)
		if err != nil {
			continue
		}
		if s.pred == nil || matchRec(rec, s.pred) {
			return rid, nil
		}
	}
}

// crossPage unpins the exhausted current page, follows its next-page
// link, and pins the next page with the cursor before its first record.
// It returns ErrFileEOF once the chain's tail is reached.
func (s *HeapFileScan) crossPage() error {
	nextPageNo := page.New(s.curFrame.Data, s.curPageNo).GetNextPage()
	if err := s.bm.UnpinPage(s.file, s.curPageNo, s.curDirty); err != nil {
		return err
	}
	s.curFrame = nil
	s.curDirty = false

	if nextPageNo == -1 {
		s.curPageNo = -1
		return ErrFileEOF
	}

	frame, err := s.bm.ReadPage(s.file, nextPageNo)
	if err != nil {
		return err
	}
	s.curFrame = frame
	s.curPageNo = nextPageNo
	s.curRec = page.BeforeFirst(nextPageNo)
	return nil
}

// GetRecord returns the bytes at the cursor's current position.
func (s *HeapFileScan) GetRecord() ([]byte, error) {
	return page.New(s.curFrame.Data, s.curPageNo).GetRecord(s.curRec)
}

// MarkScan snapshots the cursor position for a later ResetScan. Marks do
// not survive EndScan.
func (s *HeapFileScan) MarkScan() {
	s.marked = true
	s.markedPageNo = s.curPageNo
	s.markedRec = s.curRec
}

// ResetScan restores the cursor to the last MarkScan position, pinning
// the marked page if it differs from the current one. It fails with
// ErrNoMark if no mark is outstanding, including after EndScan, which
// clears any prior mark.
func (s *HeapFileScan) ResetScan() error {
	if !s.marked {
		return ErrNoMark
	}
	if s.markedPageNo != s.curPageNo {
		if s.curFrame != nil {
			if err := s.bm.UnpinPage(s.file, s.curPageNo, s.curDirty); err != nil {
				return err
			}
		}
		frame, err := s.bm.ReadPage(s.file, s.markedPageNo)
		if err != nil {
			return err
		}
		s.curFrame = frame
		s.curPageNo = s.markedPageNo
		s.curDirty = false
	}
	s.curRec = s.markedRec
	return nil
}

// DeleteRecord deletes the record at the cursor's current position. The
// cursor itself is not advanced: the next ScanNext resumes the
// directory walk from the just-deleted slot's successor.
func (s *HeapFileScan) DeleteRecord() error {
	if err := page.New(s.curFrame.Data, s.curPageNo).DeleteRecord(s.curRec); err != nil {
		return err
	}
	s.curDirty = true
	hdr := s.header()
	hdr.SetRecCnt(hdr.RecCnt() - 1)
	s.headerDirty = true
	return nil
}

// MarkDirty flags the currently pinned data page as mutated by code
// outside the scan API (e.g. an in-place edit of the returned bytes).
func (s *HeapFileScan) MarkDirty() {
	s.curDirty = true
}

// EndScan unpins the current data page, if any, and clears any
// outstanding mark — marks do not survive EndScan. It is idempotent.
func (s *HeapFileScan) EndScan() error {
	s.marked = false
	if s.curFrame == nil {
		return nil
	}
	err := s.bm.UnpinPage(s.file, s.curPageNo, s.curDirty)
	s.curFrame = nil
	s.curPageNo = -1
	return err
}

// matchRec reports whether rec satisfies pred, rehomed from the
// comparison-operator dispatch of a WHERE clause onto raw attribute
// bytes instead of typed SQL values.
func matchRec(rec []byte, pred *predicate) bool {
	if pred.offset+pred.length > len(rec) {
		return false
	}
	attr := rec[pred.offset : pred.offset+pred.length]

	switch pred.typ {
	case AttrInteger:
		a := int32(binary.LittleEndian.Uint32(attr))
		b := int32(binary.LittleEndian.Uint32(pred.filter))
		return applyOp(pred.op, int64(a)-int64(b))
	case AttrFloat:
		a := math.Float32frombits(binary.LittleEndian.Uint32(attr))
		b := math.Float32frombits(binary.LittleEndian.Uint32(pred.filter))
		if pred.op == NE {
			return a != b
		}
		if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
			return false
		}
		var diff int64
		switch {
		case a < b:
			diff = -1
		case a > b:
			diff = 1
		}
		return applyOp(pred.op, diff)
	default: // AttrString
		return applyOp(pred.op, int64(compareBytes(attr, pred.filter)))
	}
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func applyOp(op FilterOp, diff int64) bool {
	switch op {
	case LT:
		return diff < 0
	case LTE:
		return diff <= 0
	case EQ:
		return diff == 0
	case GTE:
		return diff >= 0
	case GT:
		return diff > 0
	case NE:
		return diff != 0
	default:
		return false
	}
}
