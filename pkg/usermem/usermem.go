// Package usermem models the client address space the core copies ioctl
// arguments and result arrays through.
//
// The core never dereferences client pointers directly. Every access goes
// through an AddressSpace, which reports an invalid target as an address
// fault. Flat is a self-contained implementation backed by anonymous Go
// memory, used by the bundled tools and by tests.
package usermem

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/kms-core/kms-go/pkg/wire"
)

// AddressSpace copies bytes to and from a client's memory.
// Implementations must be safe for concurrent use and must not call back into
// the core.
type AddressSpace interface {
	// ReadAt fills p from addr. The whole range must be accessible.
	ReadAt(p []byte, addr uint64) error

	// WriteAt copies p to addr. The whole range must be accessible.
	WriteAt(p []byte, addr uint64) error
}

// FaultError reports an access outside any mapped region.
type FaultError struct {
	Addr uint64
	Len  int
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("usermem: fault at 0x%x (len %d)", e.Addr, e.Len)
}

// Unwrap lets errors.Is match wire.ErrAddressFault.
func (e *FaultError) Unwrap() error {
	return wire.ErrAddressFault
}

const (
	// PageSize is the mapping granularity of Flat.
	PageSize = 4096

	// BaseAddr is the first address Flat hands out. Address zero is never
	// mapped so that a zero pointer always faults.
	BaseAddr = 0x10000
)

type region struct {
	start uint64
	data  []byte
}

func (r region) end() uint64 {
	return r.start + uint64(len(r.data))
}

func regionLess(a, b region) bool {
	return a.start < b.start
}

// Flat is an in-process address space made of independent mapped regions
// separated by unmapped guard pages.
type Flat struct {
	mu      sync.RWMutex
	regions *btree.BTreeG[region]
	next    uint64
}

// NewFlat creates an empty address space.
func NewFlat() *Flat {
	return &Flat{
		regions: btree.NewG(8, regionLess),
		next:    BaseAddr,
	}
}

// Map allocates a zeroed region of size bytes and returns its address.
func (f *Flat) Map(size int) uint64 {
	if size <= 0 {
		size = 1
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.next
	f.regions.ReplaceOrInsert(region{start: addr, data: make([]byte, size)})
	// One unmapped guard page after every region.
	f.next = addr + pageAlign(uint64(size)) + PageSize
	return addr
}

// Unmap removes the region starting at addr.
func (f *Flat) Unmap(addr uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.regions.Delete(region{start: addr}); !ok {
		return &FaultError{Addr: addr}
	}
	return nil
}

// Bytes returns a copy of n bytes at addr.
func (f *Flat) Bytes(addr uint64, n int) ([]byte, error) {
	out := make([]byte, n)
	if err := f.ReadAt(out, addr); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadAt implements AddressSpace.
func (f *Flat) ReadAt(p []byte, addr uint64) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf, err := f.slice(addr, len(p))
	if err != nil {
		return err
	}
	copy(p, buf)
	return nil
}

// WriteAt implements AddressSpace.
func (f *Flat) WriteAt(p []byte, addr uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf, err := f.slice(addr, len(p))
	if err != nil {
		return err
	}
	copy(buf, p)
	return nil
}

// slice returns the backing bytes of [addr, addr+n). Callers hold f.mu.
func (f *Flat) slice(addr uint64, n int) ([]byte, error) {
	var found region
	var ok bool
	f.regions.DescendLessOrEqual(region{start: addr}, func(r region) bool {
		found, ok = r, true
		return false
	})
	if !ok || addr+uint64(n) > found.end() || addr+uint64(n) < addr {
		return nil, &FaultError{Addr: addr, Len: n}
	}
	off := addr - found.start
	return found.data[off : off+uint64(n)], nil
}

func pageAlign(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

var _ AddressSpace = (*Flat)(nil)
