package page

import "encoding/binary"

// HeaderNameSize is the width, in bytes, of the fixed filename field
// stored on a heap file's header page. Names longer than this are
// truncated.
const HeaderNameSize = 32

// header page layout (within its own pageSize-byte buffer):
//
//	[0:HeaderNameSize]                    zero-padded file name
//	[HeaderNameSize:HeaderNameSize+4]      firstPage int32
//	[HeaderNameSize+4:HeaderNameSize+8]    lastPage int32
//	[HeaderNameSize+8:HeaderNameSize+12]   recCnt int32
const (
	hdrFirstPageOff = HeaderNameSize
	hdrLastPageOff  = HeaderNameSize + 4
	hdrRecCntOff    = HeaderNameSize + 8
)

// HeaderPage is the first page of every heap file: it names the file and
// tracks the head/tail of the data-page chain plus the live record
// count.
type HeaderPage struct {
	buf []byte
}

// NewHeaderPage wraps buf (a pageSize-byte buffer, typically a buffer
// pool frame's Data) as a HeaderPage.
func NewHeaderPage(buf []byte) *HeaderPage {
	return &HeaderPage{buf: buf}
}

// InitEmpty formats the header page for a brand new, empty heap file.
func (h *HeaderPage) InitEmpty(name string) {
	for i := range h.buf {
		h.buf[i] = 0
	}
	h.SetFileName(name)
	h.SetFirstPage(noPage)
	h.SetLastPage(noPage)
	h.SetRecCnt(0)
}

// FileName returns the stored, zero-trimmed file name.
func (h *HeaderPage) FileName() string {
	end := 0
	for end < HeaderNameSize && h.buf[end] != 0 {
		end++
	}
	return string(h.buf[:end])
}

// SetFileName stores name, truncated to HeaderNameSize-1 bytes and
// zero-padded.
func (h *HeaderPage) SetFileName(name string) {
	b := []byte(name)
	if len(b) > HeaderNameSize-1 {
		b = b[:HeaderNameSize-1]
	}
	for i := 0; i < HeaderNameSize; i++ {
		h.buf[i] = 0
	}
	copy(h.buf[:HeaderNameSize], b)
}

// FirstPage returns the page number of the head of the data-page chain,
// or -1 if the chain is empty.
func (h *HeaderPage) FirstPage() int32 {
	return int32(binary.LittleEndian.Uint32(h.buf[hdrFirstPageOff : hdrFirstPageOff+4]))
}

// SetFirstPage sets the head of the data-page chain.
func (h *HeaderPage) SetFirstPage(pageNo int32) {
	binary.LittleEndian.PutUint32(h.buf[hdrFirstPageOff:hdrFirstPageOff+4], uint32(pageNo))
}

// LastPage returns the page number of the tail of the data-page chain,
// or -1 if the chain is empty.
func (h *HeaderPage) LastPage() int32 {
	return int32(binary.LittleEndian.Uint32(h.buf[hdrLastPageOff : hdrLastPageOff+4]))
}

// SetLastPage sets the tail of the data-page chain.
func (h *HeaderPage) SetLastPage(pageNo int32) {
	binary.LittleEndian.PutUint32(h.buf[hdrLastPageOff:hdrLastPageOff+4], uint32(pageNo))
}

// RecCnt returns the total number of live records across the file.
func (h *HeaderPage) RecCnt() int32 {
	return int32(binary.LittleEndian.Uint32(h.buf[hdrRecCntOff : hdrRecCntOff+4]))
}

// SetRecCnt sets the total number of live records across the file.
func (h *HeaderPage) SetRecCnt(n int32) {
	binary.LittleEndian.PutUint32(h.buf[hdrRecCntOff:hdrRecCntOff+4], uint32(n))
}
