package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ByteOrder is the byte order of every ABI struct.
var ByteOrder = binary.LittleEndian

// NameLen is the fixed length of mode and property names.
const NameLen = 32

// ModeInfo is one display timing record (struct drm_mode_modeinfo).
// Two modes are the same mode only if every field matches.
type ModeInfo struct {
	Clock      uint32
	HDisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	HTotal     uint16
	HSkew      uint16
	VDisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	VTotal     uint16
	VScan      uint16
	VRefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [NameLen]byte
}

// Mode flag and type bits used by the bundled drivers.
const (
	ModeFlagPHSync = 1 << 0
	ModeFlagNHSync = 1 << 1
	ModeFlagPVSync = 1 << 2
	ModeFlagNVSync = 1 << 3

	ModeTypePreferred = 1 << 3
	ModeTypeDriver    = 1 << 6
)

// ModeName returns the mode name as a Go string.
func (m ModeInfo) ModeName() string {
	return CString(m.Name[:])
}

// PropertyEnum is one (value, name) entry of an enum or bitmask property
// (struct drm_mode_property_enum).
type PropertyEnum struct {
	Value uint64
	Name  [NameLen]byte
}

// NewPropertyEnum builds an entry, truncating name to NameLen bytes.
func NewPropertyEnum(value uint64, name string) PropertyEnum {
	return PropertyEnum{Value: value, Name: FixedName(name)}
}

// Version is struct drm_version.
type Version struct {
	Major      int32
	Minor      int32
	Patchlevel int32
	_          uint32
	NameLen    uint64
	Name       uint64
	DateLen    uint64
	Date       uint64
	DescLen    uint64
	Desc       uint64
}

// IsProbe reports whether no string buffer was supplied.
func (v *Version) IsProbe() bool {
	return v.Name == 0 && v.Date == 0 && v.Desc == 0
}

// GetCap is struct drm_get_cap.
type GetCap struct {
	Capability uint64
	Value      uint64
}

// SetClientCap is struct drm_set_client_cap.
type SetClientCap struct {
	Capability uint64
	Value      uint64
}

// CardRes is struct drm_mode_card_res.
type CardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

// IsProbe reports whether every array pointer is zero.
func (r *CardRes) IsProbe() bool {
	return r.FbIDPtr == 0 && r.CrtcIDPtr == 0 && r.ConnectorIDPtr == 0 && r.EncoderIDPtr == 0
}

// Crtc is struct drm_mode_crtc.
type Crtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

// Cursor is struct drm_mode_cursor.
type Cursor struct {
	Flags  uint32
	CrtcID uint32
	X      int32
	Y      int32
	Width  uint32
	Height uint32
	Handle uint32
}

// Cursor2 is struct drm_mode_cursor2.
type Cursor2 struct {
	Cursor
	HotX int32
	HotY int32
}

// CrtcLut is struct drm_mode_crtc_lut.
type CrtcLut struct {
	CrtcID    uint32
	GammaSize uint32
	Red       uint64
	Green     uint64
	Blue      uint64
}

// GetEncoder is struct drm_mode_get_encoder.
type GetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

// GetConnector is struct drm_mode_get_connector.
type GetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

// IsProbe reports whether every array pointer is zero.
func (c *GetConnector) IsProbe() bool {
	return c.EncodersPtr == 0 && c.ModesPtr == 0 && c.PropsPtr == 0 && c.PropValuesPtr == 0
}

// GetProperty is struct drm_mode_get_property.
type GetProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [NameLen]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

// IsProbe reports whether both array pointers are zero.
func (p *GetProperty) IsProbe() bool {
	return p.ValuesPtr == 0 && p.EnumBlobPtr == 0
}

// ConnectorSetProperty is struct drm_mode_connector_set_property.
type ConnectorSetProperty struct {
	Value       uint64
	PropID      uint32
	ConnectorID uint32
}

// GetBlob is struct drm_mode_get_blob.
type GetBlob struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

// FBCmd is struct drm_mode_fb_cmd.
type FBCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

// FBDirtyCmd is struct drm_mode_fb_dirty_cmd.
type FBDirtyCmd struct {
	FbID     uint32
	Flags    uint32
	Color    uint32
	NumClips uint32
	ClipsPtr uint64
}

// CreateDumb is struct drm_mode_create_dumb.
type CreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// MapDumb is struct drm_mode_map_dumb.
type MapDumb struct {
	Handle uint32
	_      uint32
	Offset uint64
}

// DestroyDumb is struct drm_mode_destroy_dumb.
type DestroyDumb struct {
	Handle uint32
}

// GetPlaneRes is struct drm_mode_get_plane_res.
type GetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	_           uint32
}

// GetPlane is struct drm_mode_get_plane.
type GetPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FbID             uint32
	PossibleCrtcs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

// ObjGetProperties is struct drm_mode_obj_get_properties.
type ObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
	_             uint32
}

// IsProbe reports whether both array pointers are zero.
func (o *ObjGetProperties) IsProbe() bool {
	return o.PropsPtr == 0 && o.PropValuesPtr == 0
}

// Sizes of the ABI structs, as encoded.
var (
	SizeModeInfo         = binary.Size(ModeInfo{})
	SizePropertyEnum     = binary.Size(PropertyEnum{})
	SizeVersion          = binary.Size(Version{})
	SizeGetCap           = binary.Size(GetCap{})
	SizeSetClientCap     = binary.Size(SetClientCap{})
	SizeCardRes          = binary.Size(CardRes{})
	SizeCrtc             = binary.Size(Crtc{})
	SizeCursor           = binary.Size(Cursor{})
	SizeCursor2          = binary.Size(Cursor2{})
	SizeCrtcLut          = binary.Size(CrtcLut{})
	SizeGetEncoder       = binary.Size(GetEncoder{})
	SizeGetConnector     = binary.Size(GetConnector{})
	SizeGetProperty      = binary.Size(GetProperty{})
	SizeConnectorSetProp = binary.Size(ConnectorSetProperty{})
	SizeGetBlob          = binary.Size(GetBlob{})
	SizeFBCmd            = binary.Size(FBCmd{})
	SizeFBDirtyCmd       = binary.Size(FBDirtyCmd{})
	SizeCreateDumb       = binary.Size(CreateDumb{})
	SizeMapDumb          = binary.Size(MapDumb{})
	SizeDestroyDumb      = binary.Size(DestroyDumb{})
	SizeGetPlaneRes      = binary.Size(GetPlaneRes{})
	SizeGetPlane         = binary.Size(GetPlane{})
	SizeObjGetProperties = binary.Size(ObjGetProperties{})
)

// Encode returns the little-endian encoding of v, which must be a fixed-size
// value or pointer to one.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, ByteOrder, v); err != nil {
		return nil, fmt.Errorf("wire: encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Decode fills v, a pointer to a fixed-size value, from data.
// data must be exactly binary.Size(v) bytes long.
func Decode(data []byte, v any) error {
	if want := binary.Size(v); want != len(data) {
		return fmt.Errorf("wire: decode %T: got %d bytes, want %d: %w", v, len(data), want, ErrInvalidArgument)
	}
	if err := binary.Read(bytes.NewReader(data), ByteOrder, v); err != nil {
		return fmt.Errorf("wire: decode %T: %w", v, err)
	}
	return nil
}

// FixedName copies s into a NUL-padded name field, truncating to NameLen.
func FixedName(s string) [NameLen]byte {
	var out [NameLen]byte
	copy(out[:], s)
	return out
}

// CString returns b up to its first NUL byte.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
