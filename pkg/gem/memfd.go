//go:build linux

package gem

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// MemfdBackend stores buffer contents in an anonymous memory file, which a
// client can map.
type MemfdBackend struct {
	mu       sync.RWMutex
	fd       int
	size     int64
	released bool
}

// NewMemfdBackend creates a memfd named "/gem:<name>" sized to size bytes.
func NewMemfdBackend(name string, size int64) (*MemfdBackend, error) {
	fd, err := unix.MemfdCreate("/gem:"+name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("gem: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("gem: ftruncate memfd to %d: %w", size, err)
	}
	return &MemfdBackend{fd: fd, size: size}, nil
}

// Fd implements Mappable.
func (m *MemfdBackend) Fd() int {
	return m.fd
}

// Map implements Mappable.
func (m *MemfdBackend) Map() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.released {
		return nil, ErrReleased
	}
	b, err := unix.Mmap(m.fd, 0, int(m.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("gem: mmap memfd: %w", err)
	}
	return b, nil
}

// Unmap implements Mappable.
func (m *MemfdBackend) Unmap(b []byte) error {
	return unix.Munmap(b)
}

// ReadAt implements Backend.
func (m *MemfdBackend) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.released {
		return 0, ErrReleased
	}
	if off < 0 || off > m.size {
		return 0, ErrOutOfRange
	}
	if rem := m.size - off; int64(len(p)) > rem {
		p = p[:rem]
	}
	return unix.Pread(m.fd, p, off)
}

// WriteAt implements Backend.
func (m *MemfdBackend) WriteAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.released {
		return 0, ErrReleased
	}
	if off < 0 || off > m.size {
		return 0, ErrOutOfRange
	}
	if rem := m.size - off; int64(len(p)) > rem {
		p = p[:rem]
	}
	return unix.Pwrite(m.fd, p, off)
}

// Release truncates the file to zero and closes it. It is safe to call more
// than once.
func (m *MemfdBackend) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil
	}
	m.released = true
	if err := unix.Ftruncate(m.fd, 0); err != nil {
		unix.Close(m.fd)
		return fmt.Errorf("gem: truncate memfd: %w", err)
	}
	return unix.Close(m.fd)
}

var (
	_ Backend  = (*MemfdBackend)(nil)
	_ Mappable = (*MemfdBackend)(nil)
)
