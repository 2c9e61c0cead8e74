//go:build !linux

package gem

import "errors"

// ErrNoMemfd is returned where memfd_create does not exist.
var ErrNoMemfd = errors.New("gem: memfd is only available on linux")

// MemfdBackend is unavailable on this platform.
type MemfdBackend struct{}

// NewMemfdBackend always fails on this platform.
func NewMemfdBackend(name string, size int64) (*MemfdBackend, error) {
	return nil, ErrNoMemfd
}

func (m *MemfdBackend) Fd() int                                  { return -1 }
func (m *MemfdBackend) Map() ([]byte, error)                     { return nil, ErrNoMemfd }
func (m *MemfdBackend) Unmap(b []byte) error                     { return ErrNoMemfd }
func (m *MemfdBackend) ReadAt(p []byte, off int64) (int, error)  { return 0, ErrNoMemfd }
func (m *MemfdBackend) WriteAt(p []byte, off int64) (int, error) { return 0, ErrNoMemfd }
func (m *MemfdBackend) Release() error                           { return nil }
