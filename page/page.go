// Package page implements the on-disk page layout shared by every data
// page in a heap file: a small fixed header, a slot directory growing
// forward from that header, and record bodies growing backward from the
// end of the page toward the directory.
package page

import (
	"encoding/binary"
	"errors"
)

const (
	// DPFIXED is the size, in bytes, of the fixed header at the start of
	// every data page: nextPage(4) + slotCount(4) + freeSpacePtr(4) +
	// reserved(4).
	DPFIXED = 16

	// slotEntrySize is the width of one slot directory entry:
	// offset(4) + length(4). A length of -1 marks a deleted slot.
	slotEntrySize = 8

	noPage      = int32(-1)
	deletedSlot = int32(-1)
)

var (
	// ErrNoSpace is returned by InsertRecord when the page does not have
	// enough free space for the record (plus a new slot entry, if one is
	// needed).
	ErrNoSpace = errors.New("page: not enough free space")

	// ErrInvalidSlot is returned by GetRecord/DeleteRecord when the slot
	// number is out of range or already deleted.
	ErrInvalidSlot = errors.New("page: invalid slot number")

	// ErrNoRecords is returned by FirstRecord/NextRecord when there is no
	// live slot left to visit on the page.
	ErrNoRecords = errors.New("page: no more records on page")
)

// RID identifies a record by the page it lives on and its slot number
// within that page's directory. SlotNo == -1 denotes "before the first
// record on PageNo"; PageNo == -1 denotes "no page".
type RID struct {
	PageNo int32
	SlotNo int32
}

// BeforeFirst returns the sentinel RID meaning "before the first record
// on pageNo".
func BeforeFirst(pageNo int32) RID { return RID{PageNo: pageNo, SlotNo: -1} }

// Page is a fixed-size byte buffer interpreted as a data page: a
// DPFIXED-byte header, a slot directory, and record bodies.
type Page struct {
	buf    []byte
	pageNo int32
}

// New wraps buf (which must be exactly pageSize bytes, typically a
// buffer pool frame's Data) as a Page. It does not touch the bytes; use
// InitEmpty to format a freshly allocated page.
func New(buf []byte, pageNo int32) *Page {
	return &Page{buf: buf, pageNo: pageNo}
}

// PageNo returns the page number this Page was loaded under.
func (p *Page) PageNo() int32 { return p.pageNo }

// InitEmpty formats the page as empty: no next page, no slots, and all
// of the payload past DPFIXED available as free space.
func (p *Page) InitEmpty() {
	p.setNextPageRaw(noPage)
	p.setSlotCount(0)
	p.setFreeSpacePtr(int32(len(p.buf)))
	binary.LittleEndian.PutUint32(p.buf[12:16], 0)
}

func (p *Page) slotCount() int32 {
	return int32(binary.LittleEndian.Uint32(p.buf[4:8]))
}

func (p *Page) setSlotCount(n int32) {
	binary.LittleEndian.PutUint32(p.buf[4:8], uint32(n))
}

func (p *Page) freeSpacePtr() int32 {
	return int32(binary.LittleEndian.Uint32(p.buf[8:12]))
}

func (p *Page) setFreeSpacePtr(off int32) {
	binary.LittleEndian.PutUint32(p.buf[8:12], uint32(off))
}

func (p *Page) slotOffset(i int32) int {
	return DPFIXED + int(i)*slotEntrySize
}

func (p *Page) slotAt(i int32) (offset, length int32) {
	pos := p.slotOffset(i)
	offset = int32(binary.LittleEndian.Uint32(p.buf[pos : pos+4]))
	length = int32(binary.LittleEndian.Uint32(p.buf[pos+4 : pos+8]))
	return
}

func (p *Page) setSlotAt(i, offset, length int32) {
	pos := p.slotOffset(i)
	binary.LittleEndian.PutUint32(p.buf[pos:pos+4], uint32(offset))
	binary.LittleEndian.PutUint32(p.buf[pos+4:pos+8], uint32(length))
}

// FreeSpace returns the number of bytes available to a new record body;
// it does not account for the extra slot-directory entry a record
// without a reusable deleted slot would need.
func (p *Page) FreeSpace() int {
	n := p.freeSpacePtr() - int32(DPFIXED) - p.slotCount()*slotEntrySize
	if n < 0 {
		return 0
	}
	return int(n)
}

// InsertRecord places data on the page, reusing the smallest deleted
// slot if one exists, and returns the assigned slot number. It fails
// with ErrNoSpace if the page cannot hold the record.
func (p *Page) InsertRecord(data []byte) (int32, error) {
	need := int32(len(data))
	slots := p.slotCount()

	reuse := int32(-1)
	for i := int32(0); i < slots; i++ {
		if _, length := p.slotAt(i); length == deletedSlot {
			reuse = i
			break
		}
	}

	extra := int32(0)
	if reuse < 0 {
		extra = slotEntrySize
	}
	if p.freeSpacePtr()-int32(DPFIXED)-slots*slotEntrySize-extra < need {
		return 0, ErrNoSpace
	}

	newOff := p.freeSpacePtr() - need
	copy(p.buf[newOff:newOff+need], data)
	p.setFreeSpacePtr(newOff)

	var slotNo int32
	if reuse >= 0 {
		slotNo = reuse
	} else {
		slotNo = slots
		p.setSlotCount(slots + 1)
	}
	p.setSlotAt(slotNo, newOff, need)
	return slotNo, nil
}

// GetRecord returns a copy of the bytes stored at rid.SlotNo. The slot
// number must be live and within the directory.
func (p *Page) GetRecord(rid RID) ([]byte, error) {
	slots := p.slotCount()
	if rid.SlotNo < 0 || rid.SlotNo >= slots {
		return nil, ErrInvalidSlot
	}
	off, length := p.slotAt(rid.SlotNo)
	if length == deletedSlot {
		return nil, ErrInvalidSlot
	}
	out := make([]byte, length)
	copy(out, p.buf[off:off+length])
	return out, nil
}

// DeleteRecord marks rid.SlotNo deleted. Per the slot-directory
// invariants, the slot's index stays reserved (so other RIDs keep
// pointing at their slots) unless the deleted slot happens to be the
// last one in the directory, in which case the directory shrinks by one.
func (p *Page) DeleteRecord(rid RID) error {
	slots := p.slotCount()
	if rid.SlotNo < 0 || rid.SlotNo >= slots {
		return ErrInvalidSlot
	}
	off, length := p.slotAt(rid.SlotNo)
	if length == deletedSlot {
		return ErrInvalidSlot
	}
	p.setSlotAt(rid.SlotNo, off, deletedSlot)
	if rid.SlotNo == slots-1 {
		p.setSlotCount(slots - 1)
	}
	return nil
}

// FirstRecord returns the RID of the lowest live slot on the page, or
// ErrNoRecords if the page has none.
func (p *Page) FirstRecord() (RID, error) {
	slots := p.slotCount()
	for i := int32(0); i < slots; i++ {
		if _, length := p.slotAt(i); length != deletedSlot {
			return RID{PageNo: p.pageNo, SlotNo: i}, nil
		}
	}
	return RID{}, ErrNoRecords
}

// NextRecord returns the RID of the next live slot strictly after
// cur.SlotNo, or ErrNoRecords if there is none. cur does not need to refer to a live slot itself — it is
// only used as the starting index for the directory walk, which lets a
// scan resume immediately after deleting the record it was positioned
// on.
func (p *Page) NextRecord(cur RID) (RID, error) {
	slots := p.slotCount()
	for i := cur.SlotNo + 1; i < slots; i++ {
		if _, length := p.slotAt(i); length != deletedSlot {
			return RID{PageNo: p.pageNo, SlotNo: i}, nil
		}
	}
	return RID{}, ErrNoRecords
}

// GetNextPage returns the page number of the next page in the chain, or
// -1 if this is the tail.
func (p *Page) GetNextPage() int32 {
	return int32(binary.LittleEndian.Uint32(p.buf[0:4]))
}

// SetNextPage sets the chain link to pageNo (-1 to mark this the tail).
func (p *Page) SetNextPage(pageNo int32) {
	p.setNextPageRaw(pageNo)
}

func (p *Page) setNextPageRaw(pageNo int32) {
	binary.LittleEndian.PutUint32(p.buf[0:4], uint32(pageNo))
}

// MaxRecordSize is the largest record a single, otherwise-empty page of
// size pageSize can hold: the whole payload minus the fixed header and
// the one slot entry the record itself needs.
func MaxRecordSize(pageSize int) int {
	return pageSize - DPFIXED - slotEntrySize
}
