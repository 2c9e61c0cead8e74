package protocol

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/wire"
)

// handleGetResources answers the two-phase resource query. All capacities are
// checked before the first array is written, but the arrays are copied out one
// after another: if a later pointer faults, the arrays before it have already
// been written. The counts are only written back once every array succeeded.
func (e *Engine) handleGetResources(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.CardRes
	if err := e.copyIn(arg, &req, wire.SizeCardRes); err != nil {
		return result{}, err
	}

	reg, unlock := dev.Lock()
	defer unlock()

	fbs, crtcs := reg.FramebufferIDs(), reg.CrtcIDs()
	conns, encs := reg.ConnectorIDs(), reg.EncoderIDs()

	res := result{phase: phaseOf(req.IsProbe())}
	if !req.IsProbe() {
		err := checkCapacity(
			array{"framebuffers", req.FbIDPtr, req.CountFbs, uint32(len(fbs))},
			array{"crtcs", req.CrtcIDPtr, req.CountCrtcs, uint32(len(crtcs))},
			array{"connectors", req.ConnectorIDPtr, req.CountConnectors, uint32(len(conns))},
			array{"encoders", req.EncoderIDPtr, req.CountEncoders, uint32(len(encs))},
		)
		if err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.FbIDPtr, fbs); err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.CrtcIDPtr, crtcs); err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.ConnectorIDPtr, conns); err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.EncoderIDPtr, encs); err != nil {
			return res, err
		}
	}

	cfg := reg.Config()
	req.CountFbs = uint32(len(fbs))
	req.CountCrtcs = uint32(len(crtcs))
	req.CountConnectors = uint32(len(conns))
	req.CountEncoders = uint32(len(encs))
	req.MinWidth, req.MaxWidth = cfg.MinWidth, cfg.MaxWidth
	req.MinHeight, req.MaxHeight = cfg.MinHeight, cfg.MaxHeight
	return res, e.copyOut(arg, &req)
}

func (e *Engine) handleGetCrtc(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.Crtc
	if err := e.copyIn(arg, &req, wire.SizeCrtc); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.CrtcID}

	reg, unlock := dev.Lock()
	crtc, ok := reg.Crtc(req.CrtcID)
	unlock()
	if !ok {
		return res, fmt.Errorf("crtc %d: %w", req.CrtcID, model.ErrNotFound)
	}

	req.GammaSize = crtc.GammaSize()
	req.FbID = crtc.FbID()
	req.X, req.Y = crtc.Position()
	return res, e.copyOut(arg, &req)
}

// handleSetCrtc performs a legacy mode set. With a framebuffer the buffer is
// copied to the scanout surface; fb_id 0 disables the CRTC. Without a scanout
// surface every mode set is NotFound, including fb_id 0.
func (e *Engine) handleSetCrtc(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.Crtc
	if err := e.copyIn(arg, &req, wire.SizeCrtc); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.CrtcID}
	if e.scanout == nil {
		return res, fmt.Errorf("set crtc %d: scanout: %w", req.CrtcID, wire.ErrNotFound)
	}

	reg, unlock := dev.Lock()
	defer unlock()

	crtc, ok := reg.Crtc(req.CrtcID)
	if !ok {
		return res, fmt.Errorf("crtc %d: %w", req.CrtcID, model.ErrNotFound)
	}
	if req.FbID == 0 {
		crtc.Set(0, 0, 0)
		return res, nil
	}

	fb, ok := reg.LookupFramebuffer(req.FbID)
	if !ok {
		return res, fmt.Errorf("framebuffer %d: %w", req.FbID, model.ErrNotFound)
	}
	if err := e.present(fb); err != nil {
		return res, err
	}
	crtc.Set(req.FbID, req.X, req.Y)
	return res, nil
}

// handleCursor rejects hardware cursor updates; there is no cursor hardware.
func (e *Engine) handleCursor(arg uint64, size int) (result, error) {
	buf := make([]byte, size)
	if err := e.mem.ReadAt(buf, arg); err != nil {
		return result{}, err
	}
	return result{}, fmt.Errorf("hardware cursor: %w", wire.ErrNoHardware)
}

func (e *Engine) handleSetGamma(arg uint64) (result, error) {
	var req wire.CrtcLut
	if err := e.copyIn(arg, &req, wire.SizeCrtcLut); err != nil {
		return result{}, err
	}
	return result{object: req.CrtcID}, nil
}

func (e *Engine) handleGetEncoder(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.GetEncoder
	if err := e.copyIn(arg, &req, wire.SizeGetEncoder); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.EncoderID}

	reg, unlock := dev.Lock()
	enc, ok := reg.Encoder(req.EncoderID)
	unlock()
	if !ok {
		return res, fmt.Errorf("encoder %d: %w", req.EncoderID, model.ErrNotFound)
	}

	req.EncoderType = uint32(enc.EncoderType())
	req.CrtcID = enc.CrtcID()
	req.PossibleCrtcs = enc.PossibleCrtcs()
	req.PossibleClones = enc.PossibleClones()
	return res, e.copyOut(arg, &req)
}

// handleGetConnector reports a connector. A probe re-runs detection.
func (e *Engine) handleGetConnector(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.GetConnector
	if err := e.copyIn(arg, &req, wire.SizeGetConnector); err != nil {
		return result{}, err
	}
	res := result{phase: phaseOf(req.IsProbe()), object: req.ConnectorID}

	reg, unlock := dev.Lock()
	defer unlock()

	conn, ok := reg.Connector(req.ConnectorID)
	if !ok {
		return res, fmt.Errorf("connector %d: %w", req.ConnectorID, model.ErrNotFound)
	}

	status := conn.Status()
	if req.IsProbe() {
		status = conn.Detect()
	}
	modes := conn.Modes()
	encs := conn.PossibleEncoders()
	propIDs, propValues := objectProperties(conn)

	if !req.IsProbe() {
		err := checkCapacity(
			array{"modes", req.ModesPtr, req.CountModes, uint32(len(modes))},
			array{"encoders", req.EncodersPtr, req.CountEncoders, uint32(len(encs))},
			array{"properties", req.PropsPtr, req.CountProps, uint32(len(propIDs))},
			array{"property values", req.PropValuesPtr, req.CountProps, uint32(len(propIDs))},
		)
		if err != nil {
			return res, err
		}
		if err := writeStructs(e, req.ModesPtr, modes); err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.EncodersPtr, encs); err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.PropsPtr, propIDs); err != nil {
			return res, err
		}
		if err := e.writeUint64s(req.PropValuesPtr, propValues); err != nil {
			return res, err
		}
	}

	mmWidth, mmHeight := conn.PhysicalSize()
	req.CountModes = uint32(len(modes))
	req.CountEncoders = uint32(len(encs))
	req.CountProps = uint32(len(propIDs))
	req.EncoderID = conn.EncoderID()
	req.ConnectorType = uint32(conn.ConnectorType())
	req.ConnectorTypeID = conn.TypeID()
	req.Connection = uint32(status)
	req.MmWidth, req.MmHeight = mmWidth, mmHeight
	req.Subpixel = conn.Subpixel()
	req.Pad = 0
	return res, e.copyOut(arg, &req)
}

// handleGetProperty reports a property definition. Fill writes the value
// array and, for enum and bitmask kinds, the (value, name) records.
func (e *Engine) handleGetProperty(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.GetProperty
	if err := e.copyIn(arg, &req, wire.SizeGetProperty); err != nil {
		return result{}, err
	}
	res := result{phase: phaseOf(req.IsProbe()), object: req.PropID}

	reg, unlock := dev.Lock()
	defer unlock()

	prop, ok := reg.Property(req.PropID)
	if !ok {
		return res, fmt.Errorf("property %d: %w", req.PropID, model.ErrPropertyNotFound)
	}

	if !req.IsProbe() {
		err := checkCapacity(
			array{"values", req.ValuesPtr, req.CountValues, prop.CountValues()},
			array{"enum blobs", req.EnumBlobPtr, req.CountEnumBlobs, prop.CountEnumBlobs()},
		)
		if err != nil {
			return res, err
		}
		if err := e.writeUint64s(req.ValuesPtr, prop.Values()); err != nil {
			return res, err
		}
		if err := writeStructs(e, req.EnumBlobPtr, prop.EnumRecords()); err != nil {
			return res, err
		}
	}

	req.Name = prop.RawName()
	req.Flags = uint32(prop.Flags())
	req.CountValues = prop.CountValues()
	req.CountEnumBlobs = prop.CountEnumBlobs()
	return res, e.copyOut(arg, &req)
}

func (e *Engine) handleSetProperty(sess *drm.Session, arg uint64) (result, error) {
	if err := requireModeset(sess.Device()); err != nil {
		return result{}, err
	}
	var req wire.ConnectorSetProperty
	if err := e.copyIn(arg, &req, wire.SizeConnectorSetProp); err != nil {
		return result{}, err
	}
	return result{object: req.ConnectorID}, nil
}

func (e *Engine) handleGetPropBlob(arg uint64) (result, error) {
	var req wire.GetBlob
	if err := e.copyIn(arg, &req, wire.SizeGetBlob); err != nil {
		return result{}, err
	}
	return result{object: req.BlobID}, nil
}

func (e *Engine) handleGetPlaneResources(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.GetPlaneRes
	if err := e.copyIn(arg, &req, wire.SizeGetPlaneRes); err != nil {
		return result{}, err
	}
	probe := req.PlaneIDPtr == 0
	res := result{phase: phaseOf(probe)}

	reg, unlock := dev.Lock()
	defer unlock()

	planes := reg.PlaneIDs()
	if !probe {
		if err := checkCapacity(array{"planes", req.PlaneIDPtr, req.CountPlanes, uint32(len(planes))}); err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.PlaneIDPtr, planes); err != nil {
			return res, err
		}
	}
	req.CountPlanes = uint32(len(planes))
	return res, e.copyOut(arg, &req)
}

// handleGetPlane reports a plane's possible CRTCs. Plane state and formats
// are reported as zero.
func (e *Engine) handleGetPlane(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.GetPlane
	if err := e.copyIn(arg, &req, wire.SizeGetPlane); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.PlaneID}

	reg, unlock := dev.Lock()
	plane, ok := reg.Plane(req.PlaneID)
	unlock()
	if !ok {
		return res, fmt.Errorf("plane %d: %w", req.PlaneID, model.ErrNotFound)
	}

	req.CrtcID = 0
	req.FbID = 0
	req.PossibleCrtcs = plane.PossibleCrtcs()
	req.GammaSize = 0
	req.CountFormatTypes = 0
	return res, e.copyOut(arg, &req)
}

func (e *Engine) handleObjGetProperties(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.ObjGetProperties
	if err := e.copyIn(arg, &req, wire.SizeObjGetProperties); err != nil {
		return result{}, err
	}
	res := result{phase: phaseOf(req.IsProbe()), object: req.ObjID}

	reg, unlock := dev.Lock()
	defer unlock()

	obj, ok := reg.Object(req.ObjID)
	if !ok {
		return res, fmt.Errorf("object %d: %w", req.ObjID, model.ErrNotFound)
	}
	ids, values := objectProperties(obj)

	if !req.IsProbe() {
		err := checkCapacity(
			array{"properties", req.PropsPtr, req.CountProps, uint32(len(ids))},
			array{"property values", req.PropValuesPtr, req.CountProps, uint32(len(ids))},
		)
		if err != nil {
			return res, err
		}
		if err := e.writeUint32s(req.PropsPtr, ids); err != nil {
			return res, err
		}
		if err := e.writeUint64s(req.PropValuesPtr, values); err != nil {
			return res, err
		}
	}
	req.CountProps = uint32(len(ids))
	return res, e.copyOut(arg, &req)
}

// objectProperties returns the attached property ids in ascending order with
// their values at the same positions.
func objectProperties(obj model.Object) ([]uint32, []uint64) {
	props := obj.Properties()
	ids := slices.Sorted(maps.Keys(props))
	values := make([]uint64, len(ids))
	for i, id := range ids {
		values[i] = props[id]
	}
	return ids, values
}
