package model

import (
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// maxIndex is the highest CRTC or encoder index; indices are bits in a u32.
const maxIndex = 31

// ModeConfigFuncs is the device-wide driver behavior.
type ModeConfigFuncs interface {
	// CheckFramebuffer validates a framebuffer before it is registered.
	CheckFramebuffer(width, height, pitch, bpp uint32, buffer *gem.Object) error
}

// ModeConfig holds the device-wide mode-setting limits and flags.
type ModeConfig struct {
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
	PreferredDepth uint32
	PreferShadow   bool
	CursorWidth    uint32
	CursorHeight   uint32

	FBModifiersNotSupported bool
	AsyncPageFlip           bool

	Funcs ModeConfigFuncs
}

// DefaultModeConfig returns the limits used when a driver sets none.
func DefaultModeConfig() ModeConfig {
	return ModeConfig{
		MinWidth:                1,
		MaxWidth:                8192,
		MinHeight:               1,
		MaxHeight:               8192,
		PreferredDepth:          16,
		CursorWidth:             32,
		CursorHeight:            32,
		FBModifiersNotSupported: true,
	}
}

// Registry is the mode-setting object graph of one device.
type Registry struct {
	config ModeConfig

	nextObject   atomic.Uint32
	nextProperty atomic.Uint32
	crtcIndex    uint8
	encoderIndex uint8
	stdProps     atomic.Bool

	connectors   map[uint32]*Connector
	encoders     map[uint32]*Encoder
	crtcs        map[uint32]*Crtc
	planes       map[uint32]*Plane
	framebuffers map[uint32]*Framebuffer
	objects      map[uint32]Object
	properties   map[uint32]*Property
	typeIDs      map[ConnectorType]uint32
}

// NewRegistry creates an empty registry.
func NewRegistry(config ModeConfig) *Registry {
	return &Registry{
		config:       config,
		connectors:   make(map[uint32]*Connector),
		encoders:     make(map[uint32]*Encoder),
		crtcs:        make(map[uint32]*Crtc),
		planes:       make(map[uint32]*Plane),
		framebuffers: make(map[uint32]*Framebuffer),
		objects:      make(map[uint32]Object),
		properties:   make(map[uint32]*Property),
		typeIDs:      make(map[ConnectorType]uint32),
	}
}

// Config returns the mode configuration.
func (r *Registry) Config() ModeConfig {
	return r.config
}

// NextObjectID allocates an object id. It is safe for concurrent use.
func (r *Registry) NextObjectID() uint32 {
	return r.nextObject.Add(1)
}

// NextPropertyID allocates a property id. It is safe for concurrent use.
func (r *Registry) NextPropertyID() uint32 {
	return r.nextProperty.Add(1)
}

// InitStandardProperties registers the device-independent standard
// properties. It must be called once, before any object is created.
func (r *Registry) InitStandardProperties() error {
	if !r.stdProps.CompareAndSwap(false, true) {
		return ErrStandardPropertiesInitialized
	}
	return nil
}

func (r *Registry) checkReady() error {
	if !r.stdProps.Load() {
		return ErrStandardPropertiesPending
	}
	return nil
}

// AddPlane creates a plane.
func (r *Registry) AddPlane(t PlaneType) (*Plane, error) {
	if err := r.checkReady(); err != nil {
		return nil, err
	}
	p := &Plane{
		modeObject: newModeObject(r.NextObjectID()),
		planeType:  t,
	}
	r.planes[p.id] = p
	r.objects[p.id] = p
	return p, nil
}

// AddCrtc creates a CRTC bound to a primary plane and an optional cursor
// plane (cursorID 0). An empty name becomes "crtc-<id>".
func (r *Registry) AddCrtc(name string, primaryID, cursorID uint32) (*Crtc, error) {
	if err := r.checkReady(); err != nil {
		return nil, err
	}
	if r.crtcIndex > maxIndex {
		return nil, fmt.Errorf("crtc: %w", ErrIndexExhausted)
	}
	primary, ok := r.planes[primaryID]
	if !ok {
		return nil, fmt.Errorf("primary plane %d: %w", primaryID, ErrNotFound)
	}
	var cursor *Plane
	if cursorID != 0 {
		if cursor, ok = r.planes[cursorID]; !ok {
			return nil, fmt.Errorf("cursor plane %d: %w", cursorID, ErrNotFound)
		}
	}

	id := r.NextObjectID()
	if name == "" {
		name = fmt.Sprintf("crtc-%d", id)
	}
	c := &Crtc{
		modeObject: newModeObject(id),
		name:       name,
		index:      r.crtcIndex,
		primary:    primary,
		cursor:     cursor,
	}
	r.crtcIndex++

	primary.addCrtc(c.index)
	if cursor != nil {
		cursor.addCrtc(c.index)
	}
	r.crtcs[id] = c
	r.objects[id] = c
	return c, nil
}

// AddEncoder creates an encoder able to drive the given CRTCs.
func (r *Registry) AddEncoder(t EncoderType, crtcIDs []uint32) (*Encoder, error) {
	if err := r.checkReady(); err != nil {
		return nil, err
	}
	if r.encoderIndex > maxIndex {
		return nil, fmt.Errorf("encoder: %w", ErrIndexExhausted)
	}
	var mask uint32
	for _, cid := range crtcIDs {
		c, ok := r.crtcs[cid]
		if !ok {
			return nil, fmt.Errorf("crtc %d: %w", cid, ErrNotFound)
		}
		mask |= 1 << c.index
	}

	e := &Encoder{
		modeObject:    newModeObject(r.NextObjectID()),
		encoderType:   t,
		index:         r.encoderIndex,
		possibleCrtcs: mask,
	}
	r.encoderIndex++
	r.encoders[e.id] = e
	r.objects[e.id] = e
	return e, nil
}

// AddConnector creates a connector with the given modes and candidate
// encoders. Duplicate modes are dropped. funcs may be nil.
func (r *Registry) AddConnector(t ConnectorType, status ConnectorStatus, modes []wire.ModeInfo, encoderIDs []uint32, funcs ConnectorFuncs) (*Connector, error) {
	if err := r.checkReady(); err != nil {
		return nil, err
	}
	encs := make([]*Encoder, 0, len(encoderIDs))
	for _, eid := range encoderIDs {
		e, ok := r.encoders[eid]
		if !ok {
			return nil, fmt.Errorf("encoder %d: %w", eid, ErrNotFound)
		}
		encs = append(encs, e)
	}

	r.typeIDs[t]++
	c := &Connector{
		modeObject:    newModeObject(r.NextObjectID()),
		connectorType: t,
		typeID:        r.typeIDs[t],
		status:        status,
		mmWidth:       DefaultMmWidth,
		mmHeight:      DefaultMmHeight,
		funcs:         funcs,
	}
	for _, m := range modes {
		c.AddMode(m)
	}
	for _, e := range encs {
		c.addEncoder(e)
	}
	r.connectors[c.id] = c
	r.objects[c.id] = c
	return c, nil
}

// BindEncoder records that connector connID is driven by encoder encID.
func (r *Registry) BindEncoder(connID, encID uint32) error {
	c, ok := r.connectors[connID]
	if !ok {
		return fmt.Errorf("connector %d: %w", connID, ErrNotFound)
	}
	if _, ok := r.encoders[encID]; !ok {
		return fmt.Errorf("encoder %d: %w", encID, ErrNotFound)
	}
	c.setEncoder(encID)
	return nil
}

// BindCrtc records that encoder encID is fed by CRTC crtcID.
func (r *Registry) BindCrtc(encID, crtcID uint32) error {
	e, ok := r.encoders[encID]
	if !ok {
		return fmt.Errorf("encoder %d: %w", encID, ErrNotFound)
	}
	if _, ok := r.crtcs[crtcID]; !ok {
		return fmt.Errorf("crtc %d: %w", crtcID, ErrNotFound)
	}
	e.setCrtc(crtcID)
	return nil
}

// CreateFramebuffer registers a framebuffer over buffer and returns its id.
func (r *Registry) CreateFramebuffer(width, height, pitch, bpp uint32, buffer *gem.Object) (uint32, error) {
	if buffer == nil {
		return 0, ErrNilBuffer
	}
	if r.config.Funcs != nil {
		if err := r.config.Funcs.CheckFramebuffer(width, height, pitch, bpp, buffer); err != nil {
			return 0, fmt.Errorf("check framebuffer: %w", err)
		}
	}
	fb := &Framebuffer{
		modeObject: newModeObject(r.NextObjectID()),
		width:      width,
		height:     height,
		pitch:      pitch,
		bpp:        bpp,
		buffer:     buffer,
	}
	r.framebuffers[fb.id] = fb
	r.objects[fb.id] = fb
	return fb.id, nil
}

// LookupFramebuffer returns a framebuffer by id.
func (r *Registry) LookupFramebuffer(id uint32) (*Framebuffer, bool) {
	fb, ok := r.framebuffers[id]
	return fb, ok
}

// RemoveFramebuffer unregisters a framebuffer. Its buffer is not released.
func (r *Registry) RemoveFramebuffer(id uint32) (*Framebuffer, bool) {
	fb, ok := r.framebuffers[id]
	if !ok {
		return nil, false
	}
	delete(r.framebuffers, id)
	delete(r.objects, id)
	return fb, true
}

// Connector returns a connector by id.
func (r *Registry) Connector(id uint32) (*Connector, bool) {
	c, ok := r.connectors[id]
	return c, ok
}

// Encoder returns an encoder by id.
func (r *Registry) Encoder(id uint32) (*Encoder, bool) {
	e, ok := r.encoders[id]
	return e, ok
}

// Crtc returns a CRTC by id.
func (r *Registry) Crtc(id uint32) (*Crtc, bool) {
	c, ok := r.crtcs[id]
	return c, ok
}

// Plane returns a plane by id.
func (r *Registry) Plane(id uint32) (*Plane, bool) {
	p, ok := r.planes[id]
	return p, ok
}

// Object returns any object by id.
func (r *Registry) Object(id uint32) (Object, bool) {
	o, ok := r.objects[id]
	return o, ok
}

func (r *Registry) CountConnectors() uint32   { return uint32(len(r.connectors)) }
func (r *Registry) CountEncoders() uint32     { return uint32(len(r.encoders)) }
func (r *Registry) CountCrtcs() uint32        { return uint32(len(r.crtcs)) }
func (r *Registry) CountPlanes() uint32       { return uint32(len(r.planes)) }
func (r *Registry) CountFramebuffers() uint32 { return uint32(len(r.framebuffers)) }

// ConnectorIDs returns connector ids in ascending order.
func (r *Registry) ConnectorIDs() []uint32 { return slices.Sorted(maps.Keys(r.connectors)) }

// EncoderIDs returns encoder ids in ascending order.
func (r *Registry) EncoderIDs() []uint32 { return slices.Sorted(maps.Keys(r.encoders)) }

// CrtcIDs returns CRTC ids in ascending order.
func (r *Registry) CrtcIDs() []uint32 { return slices.Sorted(maps.Keys(r.crtcs)) }

// PlaneIDs returns plane ids in ascending order.
func (r *Registry) PlaneIDs() []uint32 { return slices.Sorted(maps.Keys(r.planes)) }

// FramebufferIDs returns framebuffer ids in ascending order.
func (r *Registry) FramebufferIDs() []uint32 { return slices.Sorted(maps.Keys(r.framebuffers)) }

// CreateProperty assigns p an id and registers it.
func (r *Registry) CreateProperty(p *Property) uint32 {
	p.id = r.NextPropertyID()
	r.properties[p.id] = p
	return p.id
}

// Property returns a property definition by id.
func (r *Registry) Property(id uint32) (*Property, bool) {
	p, ok := r.properties[id]
	return p, ok
}

// PropertyIDs returns property ids in ascending order.
func (r *Registry) PropertyIDs() []uint32 { return slices.Sorted(maps.Keys(r.properties)) }

// AttachProperty stores value for property propID on object objID.
func (r *Registry) AttachProperty(objID, propID uint32, value uint64) error {
	o, ok := r.objects[objID]
	if !ok {
		return fmt.Errorf("object %d: %w", objID, ErrNotFound)
	}
	if _, ok := r.properties[propID]; !ok {
		return fmt.Errorf("property %d: %w", propID, ErrPropertyNotFound)
	}
	o.setPropertyValue(propID, value)
	return nil
}
