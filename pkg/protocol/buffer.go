package protocol

import (
	"fmt"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// handleAddFB wraps a session buffer in a framebuffer. The handle is resolved
// before the registry lock is taken.
func (e *Engine) handleAddFB(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.FBCmd
	if err := e.copyIn(arg, &req, wire.SizeFBCmd); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle}

	obj, ok := sess.Lookup(req.Handle)
	if !ok {
		return res, fmt.Errorf("handle %d: %w", req.Handle, wire.ErrInvalidArgument)
	}

	reg, unlock := dev.Lock()
	fbID, err := reg.CreateFramebuffer(req.Width, req.Height, req.Pitch, req.Bpp, obj)
	unlock()
	if err != nil {
		return res, err
	}
	res.object = fbID

	req.FbID = fbID
	if err := e.copyOut(arg, &req); err != nil {
		dev.WithRegistry(func(r *model.Registry) error {
			r.RemoveFramebuffer(fbID)
			return nil
		})
		return res, err
	}
	return res, nil
}

// handleRmFB removes a framebuffer. The backing buffer stays with its handle,
// and any CRTC scanning out the framebuffer is disabled. Unknown ids are
// ignored.
func (e *Engine) handleRmFB(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	fbID, err := usermem.ReadUint32(e.mem, arg)
	if err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: fbID}

	reg, unlock := dev.Lock()
	defer unlock()

	if _, ok := reg.RemoveFramebuffer(fbID); !ok {
		return res, nil
	}
	for _, id := range reg.CrtcIDs() {
		crtc, _ := reg.Crtc(id)
		if crtc.FbID() == fbID {
			crtc.Set(0, 0, 0)
		}
	}
	return res, nil
}

func (e *Engine) handleDirtyFB(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.FBDirtyCmd
	if err := e.copyIn(arg, &req, wire.SizeFBDirtyCmd); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.FbID}

	reg, unlock := dev.Lock()
	defer unlock()

	fb, ok := reg.LookupFramebuffer(req.FbID)
	if !ok {
		return res, fmt.Errorf("framebuffer %d: %w", req.FbID, model.ErrNotFound)
	}
	return res, e.present(fb)
}

func (e *Engine) handleCreateDumb(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.CreateDumb
	if err := e.copyIn(arg, &req, wire.SizeCreateDumb); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle}

	create := dev.Driver().Ops().DumbCreate
	if create == nil {
		return res, fmt.Errorf("dumb create: %w", wire.ErrUnimplemented)
	}
	obj, err := create(req.Width, req.Height, req.Bpp)
	if err != nil {
		return res, fmt.Errorf("dumb create %dx%d@%d: %w", req.Width, req.Height, req.Bpp, err)
	}
	h, err := sess.CreateHandle(obj)
	if err != nil {
		obj.Release()
		return res, err
	}
	res.object = h

	req.Handle = h
	req.Pitch = obj.Pitch()
	req.Size = obj.Size()
	if err := e.copyOut(arg, &req); err != nil {
		if obj, ok := sess.Remove(h); ok {
			obj.Release()
		}
		return res, err
	}
	return res, nil
}

func (e *Engine) handleMapDumb(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	var req wire.MapDumb
	if err := e.copyIn(arg, &req, wire.SizeMapDumb); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.Handle}

	if dev.Driver().Ops().DumbCreate == nil {
		return res, fmt.Errorf("dumb map: %w", wire.ErrUnimplemented)
	}
	off, ok := sess.MapOffset(req.Handle)
	if !ok {
		return res, fmt.Errorf("handle %d: %w", req.Handle, wire.ErrNotFound)
	}
	req.Offset = off
	return res, e.copyOut(arg, &req)
}

// handleDestroyDumb drops a handle, releases its backend and forgets its
// memory-map offset. Framebuffers created from the buffer keep aliasing it.
func (e *Engine) handleDestroyDumb(sess *drm.Session, arg uint64) (result, error) {
	dev := sess.Device()
	if err := requireModeset(dev); err != nil {
		return result{}, err
	}
	if dev.Driver().Ops().DumbCreate == nil {
		return result{}, fmt.Errorf("dumb destroy: %w", wire.ErrUnimplemented)
	}
	var req wire.DestroyDumb
	if err := e.copyIn(arg, &req, wire.SizeDestroyDumb); err != nil {
		return result{}, err
	}
	res := result{phase: log.PhaseSingle, object: req.Handle}

	ok, err := sess.DestroyHandle(req.Handle)
	if !ok {
		return res, fmt.Errorf("handle %d: %w", req.Handle, wire.ErrNotFound)
	}
	if err != nil {
		return res, fmt.Errorf("release handle %d: %w", req.Handle, err)
	}
	return res, nil
}
