package model

import (
	"github.com/kms-core/kms-go/pkg/wire"
)

// PropertyFlags are the DRM_MODE_PROP_* flag bits.
type PropertyFlags uint32

const (
	PropPending   PropertyFlags = 1 << 0
	PropRange     PropertyFlags = 1 << 1
	PropImmutable PropertyFlags = 1 << 2
	PropEnum      PropertyFlags = 1 << 3
	PropBlob      PropertyFlags = 1 << 4
	PropBitmask   PropertyFlags = 1 << 5
	PropAtomic    PropertyFlags = 0x80000000
)

// PropertyKind selects how a property value is interpreted.
type PropertyKind uint8

const (
	KindRange PropertyKind = iota
	KindSignedRange
	KindEnum
	KindBitmask
	KindBlob
	KindObject
)

// String returns the kind name.
func (k PropertyKind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindSignedRange:
		return "signed-range"
	case KindEnum:
		return "enum"
	case KindBitmask:
		return "bitmask"
	case KindBlob:
		return "blob"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// EnumEntry is one named value of an enum or bitmask property.
type EnumEntry struct {
	Value uint64 `cbor:"1,keyasint" json:"value"`
	Name  string `cbor:"2,keyasint" json:"name"`
}

// Property is a property definition. It is immutable once created; the id is
// assigned when the definition is registered.
type Property struct {
	id    uint32
	name  [wire.NameLen]byte
	flags PropertyFlags
	kind  PropertyKind

	min, max   uint64
	smin, smax int64
	entries    []EnumEntry
	blobID     uint32
	objectType ObjectType
}

// NewProperty creates a blob-kind property referring to blob 1.
func NewProperty(name string, flags PropertyFlags) *Property {
	return &Property{
		name:   wire.FixedName(name),
		flags:  flags,
		kind:   KindBlob,
		blobID: 1,
	}
}

// NewBoolProperty creates a 0..1 range property.
func NewBoolProperty(name string, flags PropertyFlags) *Property {
	return NewRangeProperty(name, flags, 0, 1)
}

// NewRangeProperty creates an unsigned inclusive range property.
func NewRangeProperty(name string, flags PropertyFlags, lo, hi uint64) *Property {
	return &Property{
		name:  wire.FixedName(name),
		flags: flags | PropRange,
		kind:  KindRange,
		min:   lo,
		max:   hi,
	}
}

// NewSignedRangeProperty creates a signed inclusive range property.
func NewSignedRangeProperty(name string, flags PropertyFlags, lo, hi int64) *Property {
	return &Property{
		name:  wire.FixedName(name),
		flags: flags | PropRange,
		kind:  KindSignedRange,
		smin:  lo,
		smax:  hi,
	}
}

// NewEnumProperty creates an enum property over entries, kept in order.
func NewEnumProperty(name string, flags PropertyFlags, entries []EnumEntry) *Property {
	return &Property{
		name:    wire.FixedName(name),
		flags:   flags | PropEnum,
		kind:    KindEnum,
		entries: append([]EnumEntry(nil), entries...),
	}
}

// NewBitmaskProperty creates a bitmask property over entries, kept in order.
func NewBitmaskProperty(name string, flags PropertyFlags, entries []EnumEntry) *Property {
	return &Property{
		name:    wire.FixedName(name),
		flags:   flags | PropBitmask,
		kind:    KindBitmask,
		entries: append([]EnumEntry(nil), entries...),
	}
}

// NewObjectProperty creates a property referencing an object of type t.
func NewObjectProperty(name string, flags PropertyFlags, t ObjectType) *Property {
	return &Property{
		name:       wire.FixedName(name),
		flags:      flags | PropAtomic,
		kind:       KindObject,
		objectType: t,
	}
}

// ID returns the property id, or 0 before registration.
func (p *Property) ID() uint32 {
	return p.id
}

// Name returns the property name.
func (p *Property) Name() string {
	return wire.CString(p.name[:])
}

// RawName returns the fixed-length NUL-padded name.
func (p *Property) RawName() [wire.NameLen]byte {
	return p.name
}

// Flags returns the flag bits.
func (p *Property) Flags() PropertyFlags {
	return p.flags
}

// Kind returns the value kind.
func (p *Property) Kind() PropertyKind {
	return p.kind
}

// Range returns the bounds of a range property.
func (p *Property) Range() (lo, hi uint64) {
	return p.min, p.max
}

// SignedRange returns the bounds of a signed range property.
func (p *Property) SignedRange() (lo, hi int64) {
	return p.smin, p.smax
}

// Entries returns the entries of an enum or bitmask property.
func (p *Property) Entries() []EnumEntry {
	return append([]EnumEntry(nil), p.entries...)
}

// BlobID returns the blob id of a blob property.
func (p *Property) BlobID() uint32 {
	return p.blobID
}

// ObjectType returns the referenced type of an object property.
func (p *Property) ObjectType() ObjectType {
	return p.objectType
}

// CountValues returns the number of u64 elements Values produces.
func (p *Property) CountValues() uint32 {
	switch p.kind {
	case KindRange, KindSignedRange:
		return 2
	case KindEnum, KindBitmask:
		return uint32(len(p.entries))
	default:
		return 1
	}
}

// CountEnumBlobs returns the number of enum records EnumRecords produces.
// Blob properties report one, unlike every other non-enum kind.
func (p *Property) CountEnumBlobs() uint32 {
	switch p.kind {
	case KindEnum, KindBitmask:
		return uint32(len(p.entries))
	case KindBlob:
		return 1
	default:
		return 0
	}
}

// Values returns the value array a client receives for this definition.
// Signed bounds are returned in two's complement.
func (p *Property) Values() []uint64 {
	switch p.kind {
	case KindRange:
		return []uint64{p.min, p.max}
	case KindSignedRange:
		return []uint64{uint64(p.smin), uint64(p.smax)}
	case KindEnum, KindBitmask:
		out := make([]uint64, len(p.entries))
		for i, e := range p.entries {
			out[i] = e.Value
		}
		return out
	case KindBlob:
		return []uint64{uint64(p.blobID)}
	case KindObject:
		return []uint64{uint64(p.objectType)}
	default:
		return nil
	}
}

// EnumRecords returns the (value, name) records of an enum or bitmask
// property, and nil for every other kind.
func (p *Property) EnumRecords() []wire.PropertyEnum {
	if p.kind != KindEnum && p.kind != KindBitmask {
		return nil
	}
	out := make([]wire.PropertyEnum, len(p.entries))
	for i, e := range p.entries {
		out[i] = wire.NewPropertyEnum(e.Value, e.Name)
	}
	return out
}
