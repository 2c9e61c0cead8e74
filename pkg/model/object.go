package model

import (
	"maps"
	"slices"
	"sync"
)

// ObjectType is the DRM object-type tag of a mode object.
type ObjectType uint32

const (
	ObjectAny       ObjectType = 0
	ObjectCrtc      ObjectType = 0xcccccccc
	ObjectConnector ObjectType = 0xc0c0c0c0
	ObjectEncoder   ObjectType = 0xe0e0e0e0
	ObjectMode      ObjectType = 0xdededede
	ObjectProperty  ObjectType = 0xb0b0b0b0
	ObjectFB        ObjectType = 0xfbfbfbfb
	ObjectBlob      ObjectType = 0xbbbbbbbb
	ObjectPlane     ObjectType = 0xeeeeeeee
)

// String returns the object type name.
func (t ObjectType) String() string {
	switch t {
	case ObjectAny:
		return "ANY"
	case ObjectCrtc:
		return "CRTC"
	case ObjectConnector:
		return "CONNECTOR"
	case ObjectEncoder:
		return "ENCODER"
	case ObjectMode:
		return "MODE"
	case ObjectProperty:
		return "PROPERTY"
	case ObjectFB:
		return "FB"
	case ObjectBlob:
		return "BLOB"
	case ObjectPlane:
		return "PLANE"
	default:
		return "UNKNOWN"
	}
}

// Object is the capability shared by every mode-setting object.
type Object interface {
	// ID returns the registry-wide object id.
	ID() uint32

	// Type returns the object-type tag.
	Type() ObjectType

	// PropertyIDs returns the ids of attached properties in ascending order.
	PropertyIDs() []uint32

	// PropertyValue returns the value stored for a property id.
	PropertyValue(propID uint32) (uint64, bool)

	// Properties returns a copy of the property values.
	Properties() map[uint32]uint64

	// CountProps returns the number of attached properties.
	CountProps() uint32

	setPropertyValue(propID uint32, value uint64)
}

// modeObject carries the id and property values common to all objects.
type modeObject struct {
	mu    sync.RWMutex
	id    uint32
	props map[uint32]uint64
}

func newModeObject(id uint32) modeObject {
	return modeObject{id: id, props: make(map[uint32]uint64)}
}

// ID returns the object id.
func (o *modeObject) ID() uint32 {
	return o.id
}

// PropertyIDs returns the attached property ids in ascending order.
func (o *modeObject) PropertyIDs() []uint32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Sorted(maps.Keys(o.props))
}

// PropertyValue returns the stored value of a property.
func (o *modeObject) PropertyValue(propID uint32) (uint64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[propID]
	return v, ok
}

// Properties returns a copy of the property values.
func (o *modeObject) Properties() map[uint32]uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.props)
}

// CountProps returns the number of attached properties.
func (o *modeObject) CountProps() uint32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return uint32(len(o.props))
}

func (o *modeObject) setPropertyValue(propID uint32, value uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.props[propID] = value
}
