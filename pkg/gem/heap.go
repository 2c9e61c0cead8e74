package gem

import (
	"sync"
)

// HeapBackend keeps buffer contents in process memory.
type HeapBackend struct {
	mu       sync.RWMutex
	data     []byte
	released bool
}

// NewHeapBackend allocates size zeroed bytes.
func NewHeapBackend(size int) *HeapBackend {
	return &HeapBackend{data: make([]byte, size)}
}

// ReadAt implements Backend.
func (h *HeapBackend) ReadAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.released {
		return 0, ErrReleased
	}
	if off < 0 || off > int64(len(h.data)) {
		return 0, ErrOutOfRange
	}
	return copy(p, h.data[off:]), nil
}

// WriteAt implements Backend.
func (h *HeapBackend) WriteAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return 0, ErrReleased
	}
	if off < 0 || off > int64(len(h.data)) {
		return 0, ErrOutOfRange
	}
	return copy(h.data[off:], p), nil
}

// Release drops the storage. It is safe to call more than once.
func (h *HeapBackend) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.released = true
	h.data = nil
	return nil
}

var _ Backend = (*HeapBackend)(nil)
