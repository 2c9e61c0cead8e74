package protocol

import (
	"fmt"
	"io"

	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// scanoutChunk bounds the staging buffer used when presenting a framebuffer.
const scanoutChunk = 64 << 10

// Scanout is the firmware framebuffer legacy mode sets copy into.
type Scanout interface {
	// Size is the surface size in bytes.
	Size() int

	// WriteAt writes p at byte offset off.
	WriteAt(p []byte, off int64) (int, error)
}

// MemoryScanout is a scanout surface backed by a region of an address space.
type MemoryScanout struct {
	mem  usermem.AddressSpace
	addr uint64
	size int
}

// NewMemoryScanout returns a scanout of size bytes at addr in mem.
func NewMemoryScanout(mem usermem.AddressSpace, addr uint64, size int) *MemoryScanout {
	return &MemoryScanout{mem: mem, addr: addr, size: size}
}

// Addr returns the start of the surface in its address space.
func (s *MemoryScanout) Addr() uint64 {
	return s.addr
}

// Size implements Scanout.
func (s *MemoryScanout) Size() int {
	return s.size
}

// WriteAt implements Scanout. Writes past the end of the surface are
// truncated and report io.ErrShortWrite.
func (s *MemoryScanout) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(s.size) {
		return 0, fmt.Errorf("scanout offset %d: %w", off, wire.ErrInvalidArgument)
	}
	n := min(len(p), s.size-int(off))
	if err := s.mem.WriteAt(p[:n], s.addr+uint64(off)); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var _ Scanout = (*MemoryScanout)(nil)

// present copies min(buffer size, scanout size) bytes of fb to the scanout.
// Returns wire.ErrNotFound when no scanout is configured.
func (e *Engine) present(fb *model.Framebuffer) error {
	if e.scanout == nil {
		return fmt.Errorf("scanout: %w", wire.ErrNotFound)
	}

	total := min(int64(fb.Buffer().Size()), int64(e.scanout.Size()))
	buf := make([]byte, min(total, scanoutChunk))
	for off := int64(0); off < total; {
		chunk := buf[:min(int64(len(buf)), total-off)]
		if _, err := fb.Buffer().Read(off, chunk); err != nil {
			return fmt.Errorf("read framebuffer at %d: %w", off, err)
		}
		if _, err := e.scanout.WriteAt(chunk, off); err != nil {
			return fmt.Errorf("write scanout at %d: %w", off, err)
		}
		off += int64(len(chunk))
	}
	return nil
}
