package drm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// Session errors.
var (
	ErrSessionClosed = errors.New("drm: session closed")
	ErrUnknownOffset = fmt.Errorf("drm: unknown mmap offset: %w", wire.ErrNotFound)
	ErrNotMappable   = fmt.Errorf("%w: %w", gem.ErrNotMappable, wire.ErrNoDevice)
)

// ClientCap identifies a capability a client can opt into.
type ClientCap uint64

const (
	ClientCapStereo3D            ClientCap = 1
	ClientCapUniversalPlanes     ClientCap = 2
	ClientCapAtomic              ClientCap = 3
	ClientCapAspectRatio         ClientCap = 4
	ClientCapWritebackConnectors ClientCap = 5
	ClientCapCursorPlaneHotspot  ClientCap = 6
)

// String returns the capability name.
func (c ClientCap) String() string {
	switch c {
	case ClientCapStereo3D:
		return "STEREO_3D"
	case ClientCapUniversalPlanes:
		return "UNIVERSAL_PLANES"
	case ClientCapAtomic:
		return "ATOMIC"
	case ClientCapAspectRatio:
		return "ASPECT_RATIO"
	case ClientCapWritebackConnectors:
		return "WRITEBACK_CONNECTORS"
	case ClientCapCursorPlaneHotspot:
		return "CURSOR_PLANE_HOTSPOT"
	default:
		return fmt.Sprintf("ClientCap(%d)", uint64(c))
	}
}

// ClientCaps is the set of capabilities a session has opted into.
type ClientCaps struct {
	Stereo3D            bool
	UniversalPlanes     bool
	Atomic              bool
	AspectRatio         bool
	WritebackConnectors bool
	CursorPlaneHotspot  bool
}

// Session is the state of one open minor: a private buffer handle namespace
// and the negotiated client capabilities.
type Session struct {
	id    uuid.UUID
	minor *Minor

	mu         sync.Mutex
	nextHandle uint32
	handles    map[uint32]*gem.Object
	caps       ClientCaps
	closed     bool
}

func newSession(m *Minor) *Session {
	return &Session{
		id:         uuid.New(),
		minor:      m,
		nextHandle: 1,
		handles:    make(map[uint32]*gem.Object),
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Minor returns the minor the session was opened on.
func (s *Session) Minor() *Minor {
	return s.minor
}

// Device returns the device behind the session's minor.
func (s *Session) Device() *Device {
	return s.minor.Device()
}

// NextHandle allocates a handle. Handles start at 1 and are never reused
// within a session.
func (s *Session) NextHandle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocHandle()
}

func (s *Session) allocHandle() uint32 {
	h := s.nextHandle
	s.nextHandle++
	return h
}

// Insert stores obj under handle h, replacing any previous entry.
func (s *Session) Insert(h uint32, obj *gem.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h] = obj
}

// CreateHandle allocates a handle and stores obj under it.
// Returns ErrSessionClosed after Close.
func (s *Session) CreateHandle(obj *gem.Object) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	h := s.allocHandle()
	s.handles[h] = obj
	return h, nil
}

// Lookup returns the buffer stored under h.
func (s *Session) Lookup(h uint32) (*gem.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.handles[h]
	return obj, ok
}

// Remove deletes h and returns the buffer it referred to.
func (s *Session) Remove(h uint32) (*gem.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.handles[h]
	if ok {
		delete(s.handles, h)
	}
	return obj, ok
}

// MapOffset returns the memory-map offset of the buffer stored under h,
// allocating one on first use. The handle lookup and the offset insert
// happen under the session lock, so a concurrent DestroyHandle or Close
// cannot leave an offset behind for a released buffer.
func (s *Session) MapOffset(h uint32) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.handles[h]
	if !ok {
		return 0, false
	}
	return s.Device().CreateOffset(obj), true
}

// DestroyHandle removes h, releases its buffer and drops the buffer's
// memory-map offset. It reports false if h is unknown.
func (s *Session) DestroyHandle(h uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.handles[h]
	if !ok {
		return false, nil
	}
	delete(s.handles, h)
	err := obj.Release()
	s.Device().RemoveOffset(obj)
	return true, err
}

// HandleCount returns the number of live handles.
func (s *Session) HandleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Caps returns a copy of the client capabilities.
func (s *Session) Caps() ClientCaps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// SetClientCap opts the session into a capability. On error the capability
// state is unchanged.
func (s *Session) SetClientCap(c ClientCap, value uint64) error {
	features := s.Device().Features()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch c {
	case ClientCapStereo3D:
		if value > 1 {
			return wire.ErrInvalidArgument
		}
		s.caps.Stereo3D = value == 1
	case ClientCapUniversalPlanes:
		if value > 1 {
			return wire.ErrInvalidArgument
		}
		s.caps.UniversalPlanes = value == 1
	case ClientCapAtomic:
		if !features.Has(FeatureAtomic) {
			return wire.ErrUnsupported
		}
		if value > 2 {
			return wire.ErrInvalidArgument
		}
		s.caps.Atomic = value >= 1
		s.caps.UniversalPlanes = value >= 1
		s.caps.AspectRatio = value == 2
	case ClientCapAspectRatio:
		if value > 1 {
			return wire.ErrInvalidArgument
		}
		s.caps.AspectRatio = value == 1
	case ClientCapWritebackConnectors:
		if !s.caps.Atomic || value > 1 {
			return wire.ErrInvalidArgument
		}
		s.caps.WritebackConnectors = value == 1
	case ClientCapCursorPlaneHotspot:
		if !s.caps.Atomic || value > 1 {
			return wire.ErrInvalidArgument
		}
		if !features.Has(FeatureCursorHotspot) {
			return wire.ErrUnsupported
		}
		s.caps.CursorPlaneHotspot = value == 1
	default:
		return wire.ErrInvalidArgument
	}
	return nil
}

// Mmap resolves a memory-map offset to the buffer's mappable storage.
func (s *Session) Mmap(offset uint64) (gem.Mappable, error) {
	obj, ok := s.Device().LookupOffset(offset)
	if !ok {
		return nil, fmt.Errorf("offset %#x: %w", offset, ErrUnknownOffset)
	}
	m, ok := obj.Mappable()
	if !ok {
		return nil, ErrNotMappable
	}
	return m, nil
}

// Close releases every buffer the session still holds a handle to and drops
// their memory-map offsets. It returns the number of handles released.
// Close is idempotent.
func (s *Session) Close() (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil
	}
	s.closed = true
	handles := s.handles
	s.handles = make(map[uint32]*gem.Object)
	s.mu.Unlock()

	dev := s.Device()
	var errs []error
	for h, obj := range handles {
		if err := obj.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release handle %d: %w", h, err))
		}
		dev.RemoveOffset(obj)
	}
	return len(handles), errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
