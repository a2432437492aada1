// Package bufferpool implements the buffer pool collaborator the heap
// file layer pins and unpins pages against: a fixed frame table with LRU
// or MRU replacement, keyed by (file, page number).
package bufferpool

import (
	"container/list"
	"errors"
	"sync"

	"github.com/heapkit/heapfiledb/config"
	"github.com/heapkit/heapfiledb/diskmgr"
)

// ErrNotPinned is returned by UnpinPage when the given (file, pageNo) is
// not currently resident in the pool.
var ErrNotPinned = errors.New("bufferpool: page not pinned")

// ErrPoolExhausted is returned when every frame is pinned and none can
// be evicted to satisfy a new request.
var ErrPoolExhausted = errors.New("bufferpool: all frames pinned")

// Frame is one slot of the buffer pool: the bytes of a page, its pin
// count, and whether it has been mutated since it was last loaded.
type Frame struct {
	File     *diskmgr.File
	PageNo   int32
	Data     []byte
	PinCount int
	Dirty    bool
}

// Manager is the buffer pool contract the heap file layer depends on.
type Manager interface {
	ReadPage(file *diskmgr.File, pageNo int32) (*Frame, error)
	AllocPage(file *diskmgr.File) (pageNo int32, frame *Frame, err error)
	UnpinPage(file *diskmgr.File, pageNo int32, dirty bool) error
	FlushFile(file *diskmgr.File) error
}

type frameKey struct {
	file   *diskmgr.File
	pageNo int32
}

// Pool is the reference Manager implementation: a fixed-size frame
// table replaced under LRU or MRU policy.
type Pool struct {
	cfg    *config.Config
	dm     *diskmgr.Manager
	policy string

	mu     sync.Mutex
	frames []*Frame
	repl   *list.List
	lookup map[frameKey]*list.Element
}

var _ Manager = (*Pool)(nil)

// NewPool builds a pool of cfg.BufferPoolSize frames, backed by dm for
// the page I/O it performs on cache misses and evictions.
func NewPool(cfg *config.Config, dm *diskmgr.Manager) *Pool {
	p := &Pool{
		cfg:    cfg,
		dm:     dm,
		policy: cfg.ReplacementPolicy,
		frames: make([]*Frame, cfg.BufferPoolSize),
		repl:   list.New(),
		lookup: make(map[frameKey]*list.Element),
	}
	for i := range p.frames {
		p.frames[i] = &Frame{Data: make([]byte, cfg.PageSize)}
	}
	return p
}

// ReadPage pins and returns the frame holding (file, pageNo), loading it
// from disk if it is not already resident.
func (p *Pool) ReadPage(file *diskmgr.File, pageNo int32) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pin(file, pageNo)
}

// AllocPage asks the disk manager for a fresh page number on file, then
// pins and returns the (zeroed) frame for it.
func (p *Pool) AllocPage(file *diskmgr.File) (int32, *Frame, error) {
	pageNo, err := p.dm.AllocatePage(file)
	if err != nil {
		return 0, nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	frame, err := p.pin(file, pageNo)
	if err != nil {
		return 0, nil, err
	}
	return pageNo, frame, nil
}

// pin must be called with p.mu held.
func (p *Pool) pin(file *diskmgr.File, pageNo int32) (*Frame, error) {
	key := frameKey{file: file, pageNo: pageNo}
	if el, ok := p.lookup[key]; ok {
		p.touch(el)
		fr := el.Value.(*Frame)
		fr.PinCount++
		return fr, nil
	}

	for _, fr := range p.frames {
		if fr.PinCount == 0 && fr.File == nil {
			return p.load(fr, key)
		}
	}

	victimEl := p.victim()
	if victimEl == nil {
		return nil, ErrPoolExhausted
	}
	victim := victimEl.Value.(*Frame)
	if victim.Dirty {
		if err := p.dm.WritePage(victim.File, victim.PageNo, victim.Data); err != nil {
			return nil, err
		}
	}
	delete(p.lookup, frameKey{file: victim.File, pageNo: victim.PageNo})
	p.repl.Remove(victimEl)
	return p.load(victim, key)
}

func (p *Pool) load(fr *Frame, key frameKey) (*Frame, error) {
	data, err := p.dm.ReadPage(key.file, key.pageNo)
	if err != nil {
		return nil, err
	}
	copy(fr.Data, data)
	fr.File = key.file
	fr.PageNo = key.pageNo
	fr.PinCount = 1
	fr.Dirty = false
	el := p.repl.PushBack(fr)
	p.lookup[key] = el
	return fr, nil
}

func (p *Pool) touch(el *list.Element) {
	p.repl.MoveToBack(el)
}

func (p *Pool) victim() *list.Element {
	var el *list.Element
	if p.policy == "MRU" {
		el = p.repl.Back()
	} else {
		el = p.repl.Front()
	}
	for el != nil {
		if el.Value.(*Frame).PinCount == 0 {
			return el
		}
		if p.policy == "MRU" {
			el = el.Prev()
		} else {
			el = el.Next()
		}
	}
	return nil
}

// UnpinPage decreases the pin count on (file, pageNo) and, if dirty is
// true, marks the frame dirty so it is written back on eviction or
// FlushFile.
func (p *Pool) UnpinPage(file *diskmgr.File, pageNo int32, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.lookup[frameKey{file: file, pageNo: pageNo}]
	if !ok {
		return ErrNotPinned
	}
	fr := el.Value.(*Frame)
	if fr.PinCount > 0 {
		fr.PinCount--
	}
	if dirty {
		fr.Dirty = true
	}
	return nil
}

// FlushFile writes every dirty frame belonging to file back to disk. It
// does not evict the frames or clear their pin counts.
func (p *Pool) FlushFile(file *diskmgr.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fr := range p.frames {
		if fr.File == file && fr.Dirty {
			if err := p.dm.WritePage(fr.File, fr.PageNo, fr.Data); err != nil {
				return err
			}
			fr.Dirty = false
		}
	}
	return nil
}
