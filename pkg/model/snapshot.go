package model

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/kms-core/kms-go/pkg/wire"
)

// Snapshot is a point-in-time copy of a registry, ordered by id.
type Snapshot struct {
	Config       ConfigInfo        `cbor:"1,keyasint" json:"config"`
	Connectors   []ConnectorInfo   `cbor:"2,keyasint" json:"connectors"`
	Encoders     []EncoderInfo     `cbor:"3,keyasint" json:"encoders"`
	Crtcs        []CrtcInfo        `cbor:"4,keyasint" json:"crtcs"`
	Planes       []PlaneInfo       `cbor:"5,keyasint" json:"planes"`
	Framebuffers []FramebufferInfo `cbor:"6,keyasint" json:"framebuffers"`
	Properties   []PropertyInfo    `cbor:"7,keyasint" json:"properties"`
}

// ConfigInfo is the mode configuration part of a snapshot.
type ConfigInfo struct {
	MinWidth       uint32 `cbor:"1,keyasint" json:"minWidth"`
	MaxWidth       uint32 `cbor:"2,keyasint" json:"maxWidth"`
	MinHeight      uint32 `cbor:"3,keyasint" json:"minHeight"`
	MaxHeight      uint32 `cbor:"4,keyasint" json:"maxHeight"`
	PreferredDepth uint32 `cbor:"5,keyasint" json:"preferredDepth"`
	PreferShadow   bool   `cbor:"6,keyasint" json:"preferShadow"`
}

// ModeSummary is a mode reduced to what a reader needs.
type ModeSummary struct {
	Name    string `cbor:"1,keyasint" json:"name"`
	Width   uint16 `cbor:"2,keyasint" json:"width"`
	Height  uint16 `cbor:"3,keyasint" json:"height"`
	Refresh uint32 `cbor:"4,keyasint" json:"refresh"`
	Clock   uint32 `cbor:"5,keyasint" json:"clock"`
	Flags   uint32 `cbor:"6,keyasint" json:"flags"`
	Type    uint32 `cbor:"7,keyasint" json:"type"`
}

// ConnectorInfo is a connector in a snapshot.
type ConnectorInfo struct {
	ID         uint32            `cbor:"1,keyasint" json:"id"`
	Name       string            `cbor:"2,keyasint" json:"name"`
	Type       ConnectorType     `cbor:"3,keyasint" json:"type"`
	Status     ConnectorStatus   `cbor:"4,keyasint" json:"status"`
	EncoderID  uint32            `cbor:"5,keyasint,omitempty" json:"encoderId,omitempty"`
	Encoders   []uint32          `cbor:"6,keyasint" json:"encoders"`
	Modes      []ModeSummary     `cbor:"7,keyasint" json:"modes"`
	MmWidth    uint32            `cbor:"8,keyasint" json:"mmWidth"`
	MmHeight   uint32            `cbor:"9,keyasint" json:"mmHeight"`
	Properties map[uint32]uint64 `cbor:"10,keyasint,omitempty" json:"properties,omitempty"`
}

// EncoderInfo is an encoder in a snapshot.
type EncoderInfo struct {
	ID            uint32      `cbor:"1,keyasint" json:"id"`
	Type          EncoderType `cbor:"2,keyasint" json:"type"`
	Index         uint8       `cbor:"3,keyasint" json:"index"`
	CrtcID        uint32      `cbor:"4,keyasint,omitempty" json:"crtcId,omitempty"`
	PossibleCrtcs uint32      `cbor:"5,keyasint" json:"possibleCrtcs"`
}

// CrtcInfo is a CRTC in a snapshot.
type CrtcInfo struct {
	ID        uint32 `cbor:"1,keyasint" json:"id"`
	Name      string `cbor:"2,keyasint" json:"name"`
	Index     uint8  `cbor:"3,keyasint" json:"index"`
	PrimaryID uint32 `cbor:"4,keyasint" json:"primaryId"`
	CursorID  uint32 `cbor:"5,keyasint,omitempty" json:"cursorId,omitempty"`
	FbID      uint32 `cbor:"6,keyasint,omitempty" json:"fbId,omitempty"`
	Enabled   bool   `cbor:"7,keyasint" json:"enabled"`
	X         uint32 `cbor:"8,keyasint" json:"x"`
	Y         uint32 `cbor:"9,keyasint" json:"y"`
}

// PlaneInfo is a plane in a snapshot.
type PlaneInfo struct {
	ID            uint32    `cbor:"1,keyasint" json:"id"`
	Type          PlaneType `cbor:"2,keyasint" json:"type"`
	FbID          uint32    `cbor:"3,keyasint,omitempty" json:"fbId,omitempty"`
	PossibleCrtcs uint32    `cbor:"4,keyasint" json:"possibleCrtcs"`
}

// FramebufferInfo is a framebuffer in a snapshot.
type FramebufferInfo struct {
	ID     uint32 `cbor:"1,keyasint" json:"id"`
	Width  uint32 `cbor:"2,keyasint" json:"width"`
	Height uint32 `cbor:"3,keyasint" json:"height"`
	Pitch  uint32 `cbor:"4,keyasint" json:"pitch"`
	Bpp    uint32 `cbor:"5,keyasint" json:"bpp"`
	Size   uint64 `cbor:"6,keyasint" json:"size"`
}

// PropertyInfo is a property definition in a snapshot.
type PropertyInfo struct {
	ID      uint32        `cbor:"1,keyasint" json:"id"`
	Name    string        `cbor:"2,keyasint" json:"name"`
	Flags   PropertyFlags `cbor:"3,keyasint" json:"flags"`
	Kind    PropertyKind  `cbor:"4,keyasint" json:"kind"`
	Values  []uint64      `cbor:"5,keyasint" json:"values"`
	Entries []EnumEntry   `cbor:"6,keyasint,omitempty" json:"entries,omitempty"`
}

// Snapshot copies the registry state. The caller must hold the registry lock.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Config: ConfigInfo{
			MinWidth:       r.config.MinWidth,
			MaxWidth:       r.config.MaxWidth,
			MinHeight:      r.config.MinHeight,
			MaxHeight:      r.config.MaxHeight,
			PreferredDepth: r.config.PreferredDepth,
			PreferShadow:   r.config.PreferShadow,
		},
	}

	for _, id := range r.ConnectorIDs() {
		c := r.connectors[id]
		mmW, mmH := c.PhysicalSize()
		info := ConnectorInfo{
			ID:        id,
			Name:      c.Name(),
			Type:      c.ConnectorType(),
			Status:    c.Status(),
			EncoderID: c.EncoderID(),
			Encoders:  c.PossibleEncoders(),
			MmWidth:   mmW,
			MmHeight:  mmH,
		}
		for _, m := range c.Modes() {
			info.Modes = append(info.Modes, summarizeMode(m))
		}
		if c.CountProps() > 0 {
			info.Properties = c.Properties()
		}
		s.Connectors = append(s.Connectors, info)
	}

	for _, id := range r.EncoderIDs() {
		e := r.encoders[id]
		s.Encoders = append(s.Encoders, EncoderInfo{
			ID:            id,
			Type:          e.EncoderType(),
			Index:         e.Index(),
			CrtcID:        e.CrtcID(),
			PossibleCrtcs: e.PossibleCrtcs(),
		})
	}

	for _, id := range r.CrtcIDs() {
		c := r.crtcs[id]
		x, y := c.Position()
		info := CrtcInfo{
			ID:        id,
			Name:      c.Name(),
			Index:     c.Index(),
			PrimaryID: c.PrimaryPlane().ID(),
			FbID:      c.FbID(),
			Enabled:   c.Enabled(),
			X:         x,
			Y:         y,
		}
		if cur := c.CursorPlane(); cur != nil {
			info.CursorID = cur.ID()
		}
		s.Crtcs = append(s.Crtcs, info)
	}

	for _, id := range r.PlaneIDs() {
		p := r.planes[id]
		s.Planes = append(s.Planes, PlaneInfo{
			ID:            id,
			Type:          p.PlaneType(),
			FbID:          p.FbID(),
			PossibleCrtcs: p.PossibleCrtcs(),
		})
	}

	for _, id := range r.FramebufferIDs() {
		fb := r.framebuffers[id]
		s.Framebuffers = append(s.Framebuffers, FramebufferInfo{
			ID:     id,
			Width:  fb.Width(),
			Height: fb.Height(),
			Pitch:  fb.Pitch(),
			Bpp:    fb.Bpp(),
			Size:   fb.Buffer().Size(),
		})
	}

	for _, id := range r.PropertyIDs() {
		p := r.properties[id]
		s.Properties = append(s.Properties, PropertyInfo{
			ID:      id,
			Name:    p.Name(),
			Flags:   p.Flags(),
			Kind:    p.Kind(),
			Values:  p.Values(),
			Entries: p.Entries(),
		})
	}
	return s
}

func summarizeMode(m wire.ModeInfo) ModeSummary {
	return ModeSummary{
		Name:    m.ModeName(),
		Width:   m.HDisplay,
		Height:  m.VDisplay,
		Refresh: m.VRefresh,
		Clock:   m.Clock,
		Flags:   m.Flags,
		Type:    m.Type,
	}
}

// snapshotEncMode is the CBOR encoder mode for snapshots.
var snapshotEncMode cbor.EncMode

// snapshotDecMode is the CBOR decoder mode for snapshots.
var snapshotDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	snapshotEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	snapshotDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// EncodeSnapshot encodes a snapshot to CBOR with integer keys.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(s)
}

// DecodeSnapshot decodes a CBOR snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := snapshotDecMode.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
