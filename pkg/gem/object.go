// Package gem implements GEM-style buffer objects.
//
// An Object carries buffer metadata (size and pitch) and delegates storage to
// a Backend. Objects are shared by pointer wherever they are attached:
// framebuffers alias them, session handle tables index them, and the device
// offset table resolves memory-map requests to them.
package gem

import (
	"errors"
	"fmt"
)

// Buffer errors.
var (
	ErrReleased    = errors.New("gem: buffer released")
	ErrOutOfRange  = errors.New("gem: offset out of range")
	ErrNotMappable = errors.New("gem: backend is not mappable")
	ErrBadGeometry = errors.New("gem: invalid buffer geometry")
)

// Backend stores the bytes of a buffer object.
type Backend interface {
	// ReadAt copies buffer bytes starting at off into p.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt copies p into the buffer starting at off.
	WriteAt(p []byte, off int64) (int, error)

	// Release frees the storage. After Release, ReadAt and WriteAt fail.
	// Calling Release more than once is a backend concern.
	Release() error
}

// Mappable is the capability of a backend whose storage can be memory
// mapped by a client.
type Mappable interface {
	// Fd returns the file descriptor backing the storage.
	Fd() int

	// Map maps the whole buffer read/write.
	Map() ([]byte, error)

	// Unmap removes a mapping returned by Map.
	Unmap(b []byte) error
}

// Object is a buffer object. It is immutable after construction; only the
// backend changes state, through Release.
type Object struct {
	size    uint64
	pitch   uint32
	backend Backend
}

// NewObject wraps backend with buffer metadata.
func NewObject(size uint64, pitch uint32, backend Backend) *Object {
	return &Object{
		size:    size,
		pitch:   pitch,
		backend: backend,
	}
}

// Size returns the buffer size in bytes.
func (o *Object) Size() uint64 {
	return o.size
}

// Pitch returns the row stride in bytes.
func (o *Object) Pitch() uint32 {
	return o.pitch
}

// Backend returns the storage backend.
func (o *Object) Backend() Backend {
	return o.backend
}

// Read copies buffer bytes at off into p.
func (o *Object) Read(off int64, p []byte) (int, error) {
	return o.backend.ReadAt(p, off)
}

// Write copies p into the buffer at off.
func (o *Object) Write(off int64, p []byte) (int, error) {
	return o.backend.WriteAt(p, off)
}

// Release releases the backend storage.
func (o *Object) Release() error {
	return o.backend.Release()
}

// Mappable returns the mapping capability of the backend, if it has one.
// The set of mappable backends is closed: only MemfdBackend qualifies.
func (o *Object) Mappable() (Mappable, bool) {
	switch b := o.backend.(type) {
	case *MemfdBackend:
		return b, true
	default:
		return nil, false
	}
}

// MaxDumbSize bounds the size of a single dumb buffer.
const MaxDumbSize = 1 << 30

// DumbGeometry returns the pitch and size of a dumb buffer.
// Pitch is width times bytes per pixel, rounding bpp up to whole bytes.
// Buffers larger than MaxDumbSize are rejected with ErrBadGeometry.
func DumbGeometry(width, height, bpp uint32) (pitch uint32, size uint64, err error) {
	if width == 0 || height == 0 || bpp == 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d@%d", ErrBadGeometry, width, height, bpp)
	}
	cpp := (uint64(bpp) + 7) / 8
	p := uint64(width) * cpp
	if p > 1<<32-1 {
		return 0, 0, fmt.Errorf("%w: pitch overflow", ErrBadGeometry)
	}
	size = p * uint64(height)
	if size > MaxDumbSize {
		return 0, 0, fmt.Errorf("%w: %d bytes exceeds %d", ErrBadGeometry, size, MaxDumbSize)
	}
	return uint32(p), size, nil
}

// CreateHeapDumb allocates a heap-backed dumb buffer.
func CreateHeapDumb(width, height, bpp uint32) (*Object, error) {
	pitch, size, err := DumbGeometry(width, height, bpp)
	if err != nil {
		return nil, err
	}
	return NewObject(size, pitch, NewHeapBackend(int(size))), nil
}

// CreateMemfdDumb allocates a memfd-backed dumb buffer.
func CreateMemfdDumb(width, height, bpp uint32) (*Object, error) {
	pitch, size, err := DumbGeometry(width, height, bpp)
	if err != nil {
		return nil, err
	}
	backend, err := NewMemfdBackend(fmt.Sprintf("dumb-%dx%d", width, height), int64(size))
	if err != nil {
		return nil, err
	}
	return NewObject(size, pitch, backend), nil
}
