package protocol

import (
	"fmt"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// handleVersion reports the driver identity. The strings are written without
// a terminating NUL.
func (e *Engine) handleVersion(sess *drm.Session, arg uint64) (result, error) {
	var req wire.Version
	if err := e.copyIn(arg, &req, wire.SizeVersion); err != nil {
		return result{}, err
	}

	drv := sess.Device().Driver()
	ver := drv.Version()
	name, date, desc := drv.Name(), drv.Date(), drv.Desc()

	res := result{phase: phaseOf(req.IsProbe())}
	if !req.IsProbe() {
		fields := []struct {
			ptr, capacity uint64
			s             string
		}{
			{req.Name, req.NameLen, name},
			{req.Date, req.DateLen, date},
			{req.Desc, req.DescLen, desc},
		}
		for _, f := range fields {
			if f.ptr != 0 && f.capacity < uint64(len(f.s)) {
				return res, fmt.Errorf("version string %q: capacity %d: %w", f.s, f.capacity, wire.ErrInvalidArgument)
			}
		}
		for _, f := range fields {
			if f.ptr == 0 {
				continue
			}
			if err := usermem.WriteString(e.mem, f.ptr, f.s); err != nil {
				return res, err
			}
		}
	}

	req.Major, req.Minor, req.Patchlevel = ver.Major, ver.Minor, ver.Patchlevel
	req.NameLen = uint64(len(name))
	req.DateLen = uint64(len(date))
	req.DescLen = uint64(len(desc))
	return res, e.copyOut(arg, &req)
}

func (e *Engine) handleGetCap(sess *drm.Session, arg uint64) (result, error) {
	var req wire.GetCap
	if err := e.copyIn(arg, &req, wire.SizeGetCap); err != nil {
		return result{}, err
	}
	value, err := CapValue(sess.Device(), Cap(req.Capability))
	if err != nil {
		return result{}, err
	}
	req.Value = value
	return result{}, e.copyOut(arg, &req)
}

func (e *Engine) handleSetClientCap(sess *drm.Session, arg uint64) (result, error) {
	var req wire.SetClientCap
	if err := e.copyIn(arg, &req, wire.SizeSetClientCap); err != nil {
		return result{}, err
	}
	c := drm.ClientCap(req.Capability)
	if err := sess.SetClientCap(c, req.Value); err != nil {
		return result{}, fmt.Errorf("client cap %s=%d: %w", c, req.Value, err)
	}
	return result{}, nil
}

// handleDriverCommand passes a driver-private command to the driver. The
// argument buffer is read when the caller writes it and copied back when the
// caller reads it.
func (e *Engine) handleDriverCommand(sess *drm.Session, cmd uint32, arg uint64) (result, error) {
	size := int(wire.CodeSize(cmd))
	dir := wire.CodeDir(cmd)

	var data []byte
	if size > 0 {
		data = make([]byte, size)
		if dir&wire.DirWrite != 0 {
			if err := e.mem.ReadAt(data, arg); err != nil {
				return result{}, err
			}
		}
	}

	drv := sess.Device().Driver()
	if err := drv.HandleCommand(cmd, data); err != nil {
		return result{}, fmt.Errorf("driver %s: %s: %w", drv.Name(), wire.CommandName(cmd), err)
	}

	if size > 0 && dir&wire.DirRead != 0 {
		if err := e.mem.WriteAt(data, arg); err != nil {
			return result{}, err
		}
	}
	return result{phase: log.PhaseSingle}, nil
}
