package inspect

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/protocol"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// fillRetries bounds how often a query is repeated when the object graph
// grows between the probe and the fill.
const fillRetries = 3

// ErrTopologyChanged is returned when a fill keeps failing capacity checks.
var ErrTopologyChanged = errors.New("topology changed during query")

// Caller issues one command against an argument in client memory.
// This is implemented by SessionCaller.
type Caller interface {
	Call(ctx context.Context, cmd uint32, arg uint64) error
}

// Memory is client memory the remote inspector allocates arguments in.
// usermem.Flat satisfies it.
type Memory interface {
	usermem.AddressSpace
	Map(size int) uint64
	Unmap(addr uint64) error
}

// SessionCaller routes calls through an engine on behalf of one session.
type SessionCaller struct {
	Engine  *protocol.Engine
	Session *drm.Session
}

// Call implements Caller.
func (c SessionCaller) Call(ctx context.Context, cmd uint32, arg uint64) error {
	return c.Engine.Ioctl(ctx, c.Session, cmd, arg)
}

// RemoteInspector reads the topology the way a client does, through
// two-phase queries on the command interface.
type RemoteInspector struct {
	caller Caller
	mem    Memory
}

// NewRemoteInspector creates a new remote inspector.
func NewRemoteInspector(caller Caller, mem Memory) *RemoteInspector {
	return &RemoteInspector{caller: caller, mem: mem}
}

// VersionInfo is the decoded VERSION reply.
type VersionInfo struct {
	Major      int32
	Minor      int32
	Patchlevel int32
	Name       string
	Date       string
	Desc       string
}

// Resources is the decoded GETRESOURCES reply.
type Resources struct {
	FbIDs        []uint32
	CrtcIDs      []uint32
	ConnectorIDs []uint32
	EncoderIDs   []uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// call places v in client memory, runs cmd and decodes the reply into v.
func (r *RemoteInspector) call(ctx context.Context, cmd uint32, v any) error {
	data, err := wire.Encode(v)
	if err != nil {
		return err
	}
	arg := r.mem.Map(len(data))
	defer r.mem.Unmap(arg)

	if err := r.mem.WriteAt(data, arg); err != nil {
		return err
	}
	if err := r.caller.Call(ctx, cmd, arg); err != nil {
		return fmt.Errorf("%s: %w", wire.CommandName(cmd), err)
	}
	if err := r.mem.ReadAt(data, arg); err != nil {
		return err
	}
	return wire.Decode(data, v)
}

// alloc maps n elements of size bytes, or returns 0 for an empty array.
func (r *RemoteInspector) alloc(n uint32, size int) uint64 {
	if n == 0 {
		return 0
	}
	return r.mem.Map(int(n) * size)
}

func (r *RemoteInspector) free(addrs ...uint64) {
	for _, a := range addrs {
		if a != 0 {
			r.mem.Unmap(a)
		}
	}
}

func (r *RemoteInspector) readUint32s(addr uint64, n uint32) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := usermem.ReadUint32(r.mem, addr+uint64(4*i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *RemoteInspector) readUint64s(addr uint64, n uint32) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := usermem.ReadUint64(r.mem, addr+uint64(8*i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *RemoteInspector) readString(addr uint64, n uint64) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := r.mem.ReadAt(buf, addr); err != nil {
		return "", err
	}
	return wire.CString(buf), nil
}

// retry repeats fill while it fails with EINVAL, which is how a capacity
// shortfall from a concurrent change surfaces.
func retry(fill func() error) error {
	var err error
	for range fillRetries {
		if err = fill(); !errors.Is(err, wire.ErrInvalidArgument) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTopologyChanged, err)
}

// Version queries the driver identity.
func (r *RemoteInspector) Version(ctx context.Context) (VersionInfo, error) {
	var probe wire.Version
	if err := r.call(ctx, wire.CmdVersion, &probe); err != nil {
		return VersionInfo{}, err
	}

	req := wire.Version{NameLen: probe.NameLen, DateLen: probe.DateLen, DescLen: probe.DescLen}
	req.Name = r.alloc(uint32(probe.NameLen), 1)
	req.Date = r.alloc(uint32(probe.DateLen), 1)
	req.Desc = r.alloc(uint32(probe.DescLen), 1)
	defer r.free(req.Name, req.Date, req.Desc)

	if err := r.call(ctx, wire.CmdVersion, &req); err != nil {
		return VersionInfo{}, err
	}
	info := VersionInfo{Major: req.Major, Minor: req.Minor, Patchlevel: req.Patchlevel}
	var err error
	if info.Name, err = r.readString(req.Name, req.NameLen); err != nil {
		return VersionInfo{}, err
	}
	if info.Date, err = r.readString(req.Date, req.DateLen); err != nil {
		return VersionInfo{}, err
	}
	if info.Desc, err = r.readString(req.Desc, req.DescLen); err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}

// Cap queries one device capability.
func (r *RemoteInspector) Cap(ctx context.Context, c protocol.Cap) (uint64, error) {
	req := wire.GetCap{Capability: uint64(c)}
	if err := r.call(ctx, wire.CmdGetCap, &req); err != nil {
		return 0, err
	}
	return req.Value, nil
}

// Resources lists the top-level object ids.
func (r *RemoteInspector) Resources(ctx context.Context) (*Resources, error) {
	var res *Resources
	err := retry(func() error {
		var probe wire.CardRes
		if err := r.call(ctx, wire.CmdModeGetResources, &probe); err != nil {
			return err
		}

		req := probe
		req.FbIDPtr = r.alloc(probe.CountFbs, 4)
		req.CrtcIDPtr = r.alloc(probe.CountCrtcs, 4)
		req.ConnectorIDPtr = r.alloc(probe.CountConnectors, 4)
		req.EncoderIDPtr = r.alloc(probe.CountEncoders, 4)
		defer r.free(req.FbIDPtr, req.CrtcIDPtr, req.ConnectorIDPtr, req.EncoderIDPtr)

		if req.IsProbe() {
			res = &Resources{
				MinWidth: probe.MinWidth, MaxWidth: probe.MaxWidth,
				MinHeight: probe.MinHeight, MaxHeight: probe.MaxHeight,
			}
			return nil
		}
		if err := r.call(ctx, wire.CmdModeGetResources, &req); err != nil {
			return err
		}

		res = &Resources{
			MinWidth: req.MinWidth, MaxWidth: req.MaxWidth,
			MinHeight: req.MinHeight, MaxHeight: req.MaxHeight,
		}
		var err error
		if res.FbIDs, err = r.readUint32s(req.FbIDPtr, req.CountFbs); err != nil {
			return err
		}
		if res.CrtcIDs, err = r.readUint32s(req.CrtcIDPtr, req.CountCrtcs); err != nil {
			return err
		}
		if res.ConnectorIDs, err = r.readUint32s(req.ConnectorIDPtr, req.CountConnectors); err != nil {
			return err
		}
		res.EncoderIDs, err = r.readUint32s(req.EncoderIDPtr, req.CountEncoders)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Connector queries a connector, forcing a detection probe.
func (r *RemoteInspector) Connector(ctx context.Context, id uint32) (model.ConnectorInfo, error) {
	var info model.ConnectorInfo
	err := retry(func() error {
		probe := wire.GetConnector{ConnectorID: id}
		if err := r.call(ctx, wire.CmdModeGetConnector, &probe); err != nil {
			return err
		}

		req := wire.GetConnector{
			ConnectorID:   id,
			CountModes:    probe.CountModes,
			CountProps:    probe.CountProps,
			CountEncoders: probe.CountEncoders,
		}
		req.ModesPtr = r.alloc(probe.CountModes, wire.SizeModeInfo)
		req.EncodersPtr = r.alloc(probe.CountEncoders, 4)
		req.PropsPtr = r.alloc(probe.CountProps, 4)
		req.PropValuesPtr = r.alloc(probe.CountProps, 8)
		defer r.free(req.ModesPtr, req.EncodersPtr, req.PropsPtr, req.PropValuesPtr)

		if err := r.call(ctx, wire.CmdModeGetConnector, &req); err != nil {
			return err
		}

		info = model.ConnectorInfo{
			ID:        id,
			Type:      model.ConnectorType(req.ConnectorType),
			Status:    model.ConnectorStatus(req.Connection),
			EncoderID: req.EncoderID,
			MmWidth:   req.MmWidth,
			MmHeight:  req.MmHeight,
		}
		info.Name = fmt.Sprintf("%s-%d", info.Type, req.ConnectorTypeID)

		raw := make([]byte, int(req.CountModes)*wire.SizeModeInfo)
		if len(raw) > 0 {
			if err := r.mem.ReadAt(raw, req.ModesPtr); err != nil {
				return err
			}
		}
		for i := range int(req.CountModes) {
			var m wire.ModeInfo
			if err := wire.Decode(raw[i*wire.SizeModeInfo:(i+1)*wire.SizeModeInfo], &m); err != nil {
				return err
			}
			info.Modes = append(info.Modes, model.ModeSummary{
				Name: m.ModeName(), Width: m.HDisplay, Height: m.VDisplay,
				Refresh: m.VRefresh, Clock: m.Clock, Flags: m.Flags, Type: m.Type,
			})
		}

		var err error
		if info.Encoders, err = r.readUint32s(req.EncodersPtr, req.CountEncoders); err != nil {
			return err
		}
		props, err := r.readUint32s(req.PropsPtr, req.CountProps)
		if err != nil {
			return err
		}
		values, err := r.readUint64s(req.PropValuesPtr, req.CountProps)
		if err != nil {
			return err
		}
		if len(props) > 0 {
			info.Properties = make(map[uint32]uint64, len(props))
			for i, p := range props {
				info.Properties[p] = values[i]
			}
		}
		return nil
	})
	return info, err
}

// Encoder queries an encoder.
func (r *RemoteInspector) Encoder(ctx context.Context, id uint32) (model.EncoderInfo, error) {
	req := wire.GetEncoder{EncoderID: id}
	if err := r.call(ctx, wire.CmdModeGetEncoder, &req); err != nil {
		return model.EncoderInfo{}, err
	}
	return model.EncoderInfo{
		ID:            id,
		Type:          model.EncoderType(req.EncoderType),
		CrtcID:        req.CrtcID,
		PossibleCrtcs: req.PossibleCrtcs,
	}, nil
}

// Crtc queries a CRTC.
func (r *RemoteInspector) Crtc(ctx context.Context, id uint32) (model.CrtcInfo, error) {
	req := wire.Crtc{CrtcID: id}
	if err := r.call(ctx, wire.CmdModeGetCrtc, &req); err != nil {
		return model.CrtcInfo{}, err
	}
	return model.CrtcInfo{
		ID:      id,
		FbID:    req.FbID,
		Enabled: req.FbID != 0,
		X:       req.X,
		Y:       req.Y,
	}, nil
}

// PlaneIDs lists the plane ids.
func (r *RemoteInspector) PlaneIDs(ctx context.Context) ([]uint32, error) {
	var ids []uint32
	err := retry(func() error {
		var probe wire.GetPlaneRes
		if err := r.call(ctx, wire.CmdModeGetPlaneResources, &probe); err != nil {
			return err
		}
		if probe.CountPlanes == 0 {
			ids = nil
			return nil
		}
		req := wire.GetPlaneRes{CountPlanes: probe.CountPlanes, PlaneIDPtr: r.alloc(probe.CountPlanes, 4)}
		defer r.free(req.PlaneIDPtr)
		if err := r.call(ctx, wire.CmdModeGetPlaneResources, &req); err != nil {
			return err
		}
		var err error
		ids, err = r.readUint32s(req.PlaneIDPtr, req.CountPlanes)
		return err
	})
	return ids, err
}

// Plane queries a plane.
func (r *RemoteInspector) Plane(ctx context.Context, id uint32) (model.PlaneInfo, error) {
	req := wire.GetPlane{PlaneID: id}
	if err := r.call(ctx, wire.CmdModeGetPlane, &req); err != nil {
		return model.PlaneInfo{}, err
	}
	return model.PlaneInfo{ID: id, FbID: req.FbID, PossibleCrtcs: req.PossibleCrtcs}, nil
}

// Property queries a property definition. Signed ranges are reported as
// ranges, since the flags do not distinguish them.
func (r *RemoteInspector) Property(ctx context.Context, id uint32) (model.PropertyInfo, error) {
	var info model.PropertyInfo
	err := retry(func() error {
		probe := wire.GetProperty{PropID: id}
		if err := r.call(ctx, wire.CmdModeGetProperty, &probe); err != nil {
			return err
		}
		req := wire.GetProperty{PropID: id, CountValues: probe.CountValues, CountEnumBlobs: probe.CountEnumBlobs}
		req.ValuesPtr = r.alloc(probe.CountValues, 8)
		req.EnumBlobPtr = r.alloc(probe.CountEnumBlobs, wire.SizePropertyEnum)
		defer r.free(req.ValuesPtr, req.EnumBlobPtr)

		if err := r.call(ctx, wire.CmdModeGetProperty, &req); err != nil {
			return err
		}
		flags := model.PropertyFlags(req.Flags)
		info = model.PropertyInfo{
			ID:    id,
			Name:  wire.CString(req.Name[:]),
			Flags: flags,
			Kind:  kindOf(flags),
		}
		var err error
		if info.Values, err = r.readUint64s(req.ValuesPtr, req.CountValues); err != nil {
			return err
		}
		if info.Kind != model.KindEnum && info.Kind != model.KindBitmask {
			return nil
		}
		raw := make([]byte, int(req.CountEnumBlobs)*wire.SizePropertyEnum)
		if len(raw) > 0 {
			if err := r.mem.ReadAt(raw, req.EnumBlobPtr); err != nil {
				return err
			}
		}
		for i := range int(req.CountEnumBlobs) {
			var e wire.PropertyEnum
			if err := wire.Decode(raw[i*wire.SizePropertyEnum:(i+1)*wire.SizePropertyEnum], &e); err != nil {
				return err
			}
			info.Entries = append(info.Entries, model.EnumEntry{Value: e.Value, Name: wire.CString(e.Name[:])})
		}
		return nil
	})
	return info, err
}

func kindOf(flags model.PropertyFlags) model.PropertyKind {
	switch {
	case flags&model.PropEnum != 0:
		return model.KindEnum
	case flags&model.PropBitmask != 0:
		return model.KindBitmask
	case flags&model.PropBlob != 0:
		return model.KindBlob
	case flags&model.PropRange != 0:
		return model.KindRange
	case flags&model.PropAtomic != 0:
		return model.KindObject
	default:
		return model.KindBlob
	}
}

// Snapshot assembles a snapshot from queries. Framebuffers carry ids only,
// and CRTC names and indices are not visible through the interface.
func (r *RemoteInspector) Snapshot(ctx context.Context) (model.Snapshot, error) {
	res, err := r.Resources(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap := model.Snapshot{
		Config: model.ConfigInfo{
			MinWidth: res.MinWidth, MaxWidth: res.MaxWidth,
			MinHeight: res.MinHeight, MaxHeight: res.MaxHeight,
		},
	}
	if depth, err := r.Cap(ctx, protocol.CapDumbPreferredDepth); err == nil {
		snap.Config.PreferredDepth = uint32(depth)
	}
	if shadow, err := r.Cap(ctx, protocol.CapDumbPreferShadow); err == nil {
		snap.Config.PreferShadow = shadow != 0
	}

	props := make(map[uint32]bool)
	for _, id := range res.ConnectorIDs {
		c, err := r.Connector(ctx, id)
		if err != nil {
			return model.Snapshot{}, err
		}
		for p := range c.Properties {
			props[p] = true
		}
		snap.Connectors = append(snap.Connectors, c)
	}
	for _, id := range res.EncoderIDs {
		e, err := r.Encoder(ctx, id)
		if err != nil {
			return model.Snapshot{}, err
		}
		snap.Encoders = append(snap.Encoders, e)
	}
	for _, id := range res.CrtcIDs {
		c, err := r.Crtc(ctx, id)
		if err != nil {
			return model.Snapshot{}, err
		}
		snap.Crtcs = append(snap.Crtcs, c)
	}
	planeIDs, err := r.PlaneIDs(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	for _, id := range planeIDs {
		p, err := r.Plane(ctx, id)
		if err != nil {
			return model.Snapshot{}, err
		}
		snap.Planes = append(snap.Planes, p)
	}
	for _, id := range res.FbIDs {
		snap.Framebuffers = append(snap.Framebuffers, model.FramebufferInfo{ID: id})
	}
	for _, id := range slices.Sorted(maps.Keys(props)) {
		p, err := r.Property(ctx, id)
		if err != nil {
			return model.Snapshot{}, err
		}
		snap.Properties = append(snap.Properties, p)
	}
	return snap, nil
}
