// Package filebytes implements the paged, LRU-cached random-access read
// view over a cask file that spec.md §4.8 calls FileBytes. Caskade.ReadBytes
// fetches from sealed casks go through here, so hot pages of closed casks stay
// resident without re-reading them from disk. Replay does not use it: Open
// and Recover read each cask file whole with os.ReadFile.
//
// It keeps a container/list LRU of fixed-size byte pages, filled with
// ReadAt (pread), which never moves the descriptor's seek offset, so a
// strictly sequential reader (the dominant access pattern during replay)
// never re-seeks between contiguous requests without needing any position
// bookkeeping of its own.
package filebytes

import (
	"container/list"
	"fmt"
	"os"
	"sync"
)

// DefaultPageSize matches spec.md §4.8's suggested page size.
const DefaultPageSize = 16 * 1024

// DefaultMaxPages bounds how many pages Cache retains across all files.
const DefaultMaxPages = 1024

type pageKey struct {
	path  string
	index uint64
}

type page struct {
	key  pageKey
	data []byte
}

// Cache is a paged LRU view over one or more files, safe for concurrent use.
type Cache struct {
	pageSize uint32
	maxPages int

	mu      sync.Mutex
	pages   map[pageKey]*list.Element
	order   *list.List
	handles map[string]*os.File
}

// New returns a Cache holding up to maxPages pages of pageSize bytes each.
func New(pageSize uint32, maxPages int) *Cache {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Cache{
		pageSize: pageSize,
		maxPages: maxPages,
		pages:    make(map[pageKey]*list.Element),
		order:    list.New(),
		handles:  make(map[string]*os.File),
	}
}

// Read returns size bytes at offset within the file at path, filling from
// cached pages and reading through to disk only for pages not yet resident.
// Slices spanning multiple pages are concatenated in order, per spec.md
// §4.8.
func (c *Cache) Read(path string, offset, size uint32) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	out := make([]byte, 0, size)
	first := uint64(offset) / uint64(c.pageSize)
	last := uint64(offset+size-1) / uint64(c.pageSize)

	for idx := first; idx <= last; idx++ {
		p, err := c.page(path, idx)
		if err != nil {
			return nil, err
		}
		pageStart := idx * uint64(c.pageSize)
		var from, to uint64
		if idx == first {
			from = uint64(offset) - pageStart
		}
		to = uint64(len(p.data))
		if idx == last {
			end := uint64(offset+size) - pageStart
			if end < to {
				to = end
			}
		}
		if from > uint64(len(p.data)) {
			return nil, fmt.Errorf("filebytes: offset %d beyond %s's length", offset, path)
		}
		out = append(out, p.data[from:to]...)
	}
	if uint32(len(out)) != size {
		return nil, fmt.Errorf("filebytes: short read of %s at offset %d: want %d bytes, got %d", path, offset, size, len(out))
	}
	return out, nil
}

// page returns the cached page at idx, reading it from disk on a miss.
func (c *Cache) page(path string, idx uint64) (*page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pageKey{path: path, index: idx}
	if elem, ok := c.pages[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*page), nil
	}

	fh, err := c.handle(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, c.pageSize)
	n, err := fh.ReadAt(buf, int64(idx)*int64(c.pageSize))
	if err != nil && n == 0 {
		return nil, err
	}
	p := &page{key: key, data: buf[:n]}
	elem := c.order.PushFront(p)
	c.pages[key] = elem
	if c.order.Len() > c.maxPages {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.pages, oldest.Value.(*page).key)
		}
	}
	return p, nil
}

// handle returns (opening if necessary) the read-only descriptor for path.
// Descriptors are kept open for the Cache's lifetime: a caskade's file count
// is bounded by its rollover history, not by traffic, so this layer does
// not also evict descriptors.
func (c *Cache) handle(path string) (*os.File, error) {
	if fh, ok := c.handles[path]; ok {
		return fh, nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	c.handles[path] = fh
	return fh, nil
}

// Forget drops every cached page and closes the descriptor for path, so the
// next Read of path reopens the file and reads it from disk again.
func (c *Cache) Forget(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.pages {
		if key.path != path {
			continue
		}
		c.order.Remove(elem)
		delete(c.pages, key)
	}
	if fh, ok := c.handles[path]; ok {
		delete(c.handles, path)
		return fh.Close()
	}
	return nil
}

// Close releases every open file descriptor the cache holds.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for path, fh := range c.handles {
		if err := fh.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.handles, path)
	}
	c.pages = make(map[pageKey]*list.Element)
	c.order = list.New()
	return firstErr
}
