package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// Engine executes commands for sessions against one client address space.
// It holds no per-session state and is safe for concurrent use.
type Engine struct {
	mem     usermem.AddressSpace
	logger  *slog.Logger
	tracer  log.Logger
	scanout Scanout
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTraceLogger sets the destination of per-command trace events.
func WithTraceLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.tracer = log.OrNoop(l)
	}
}

// WithScanout sets the legacy scanout surface SETCRTC and DIRTYFB copy to.
func WithScanout(s Scanout) Option {
	return func(e *Engine) {
		e.scanout = s
	}
}

// WithClock overrides the time source used for trace timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine that reads and writes command arguments in mem.
func NewEngine(mem usermem.AddressSpace, opts ...Option) *Engine {
	e := &Engine{
		mem:    mem,
		logger: slog.Default(),
		tracer: log.NoopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// result describes a completed command for tracing.
type result struct {
	phase  log.Phase
	object uint32
}

// Ioctl executes cmd with the argument struct at arg on behalf of sess.
// The returned error is nil or a wire.Errno.
func (e *Engine) Ioctl(ctx context.Context, sess *drm.Session, cmd uint32, arg uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := e.now()
	var (
		res result
		err error
	)
	if sess.Closed() {
		err = fmt.Errorf("session %s: %w: %w", sess.ID(), drm.ErrSessionClosed, wire.ErrNoDevice)
	} else {
		res, err = e.dispatch(sess, cmd, arg)
	}
	elapsed := e.now().Sub(start)

	errno := wire.ErrnoOf(err)
	if err != nil {
		e.logger.Debug("ioctl failed",
			"cmd", wire.CommandName(cmd),
			"session", sess.ID().String(),
			"errno", errno.String(),
			"error", err)
	}
	e.traceIoctl(sess, cmd, res, errno, elapsed)

	if err != nil {
		return errno
	}
	return nil
}

func (e *Engine) dispatch(sess *drm.Session, cmd uint32, arg uint64) (result, error) {
	switch cmd {
	case wire.CmdVersion:
		return e.handleVersion(sess, arg)
	case wire.CmdGetCap:
		return e.handleGetCap(sess, arg)
	case wire.CmdSetClientCap:
		return e.handleSetClientCap(sess, arg)
	case wire.CmdSetMaster, wire.CmdDropMaster:
		return result{}, nil
	case wire.CmdModeGetResources:
		return e.handleGetResources(sess, arg)
	case wire.CmdModeGetCrtc:
		return e.handleGetCrtc(sess, arg)
	case wire.CmdModeSetCrtc:
		return e.handleSetCrtc(sess, arg)
	case wire.CmdModeCursor:
		return e.handleCursor(arg, wire.SizeCursor)
	case wire.CmdModeCursor2:
		return e.handleCursor(arg, wire.SizeCursor2)
	case wire.CmdModeSetGamma:
		return e.handleSetGamma(arg)
	case wire.CmdModeGetEncoder:
		return e.handleGetEncoder(sess, arg)
	case wire.CmdModeGetConnector:
		return e.handleGetConnector(sess, arg)
	case wire.CmdModeGetProperty:
		return e.handleGetProperty(sess, arg)
	case wire.CmdModeSetProperty:
		return e.handleSetProperty(sess, arg)
	case wire.CmdModeGetPropBlob:
		return e.handleGetPropBlob(arg)
	case wire.CmdModeAddFB:
		return e.handleAddFB(sess, arg)
	case wire.CmdModeRmFB:
		return e.handleRmFB(sess, arg)
	case wire.CmdModeDirtyFB:
		return e.handleDirtyFB(sess, arg)
	case wire.CmdModeCreateDumb:
		return e.handleCreateDumb(sess, arg)
	case wire.CmdModeMapDumb:
		return e.handleMapDumb(sess, arg)
	case wire.CmdModeDestroyDumb:
		return e.handleDestroyDumb(sess, arg)
	case wire.CmdModeGetPlaneResources:
		return e.handleGetPlaneResources(sess, arg)
	case wire.CmdModeGetPlane:
		return e.handleGetPlane(sess, arg)
	case wire.CmdModeObjGetProperties:
		return e.handleObjGetProperties(sess, arg)
	}

	if wire.IsDriverCommand(cmd) {
		return e.handleDriverCommand(sess, cmd, arg)
	}
	return result{}, fmt.Errorf("command %#x: %w", cmd, wire.ErrUnknownCommand)
}

// CloseSession closes sess, releasing every buffer it holds, and records the
// transition in the trace.
func (e *Engine) CloseSession(sess *drm.Session) error {
	wasClosed := sess.Closed()
	n, err := sess.Close()
	if wasClosed {
		return err
	}

	e.logger.Info("session closed",
		"session", sess.ID().String(),
		"minor", sess.Minor().DevicePath(),
		"handles", n)
	e.tracer.Log(log.Event{
		Timestamp: e.now(),
		SessionID: sess.ID().String(),
		Device:    sess.Device().Index(),
		Minor:     sess.Minor().DevicePath(),
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: "OPEN",
			NewState: "CLOSED",
			Reason:   fmt.Sprintf("released %d handles", n),
		},
	})
	if err != nil {
		e.traceError(sess, err, "session close")
	}
	return err
}

// TraceSnapshot records the current state of dev's registry in the trace.
func (e *Engine) TraceSnapshot(dev *drm.Device, reason string) error {
	var snap model.Snapshot
	dev.WithRegistry(func(r *model.Registry) error {
		snap = r.Snapshot()
		return nil
	})
	data, err := model.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	e.tracer.Log(log.Event{
		Timestamp: e.now(),
		Device:    dev.Index(),
		Category:  log.CategorySnapshot,
		Snapshot:  &log.SnapshotEvent{Reason: reason, Data: data},
	})
	return nil
}

func (e *Engine) traceIoctl(sess *drm.Session, cmd uint32, res result, errno wire.Errno, elapsed time.Duration) {
	e.tracer.Log(log.Event{
		Timestamp: e.now(),
		SessionID: sess.ID().String(),
		Device:    sess.Device().Index(),
		Minor:     sess.Minor().DevicePath(),
		Category:  log.CategoryIoctl,
		Ioctl: &log.IoctlEvent{
			Command:  cmd,
			Name:     wire.CommandName(cmd),
			Phase:    res.phase,
			Errno:    uint32(errno),
			Duration: elapsed,
			Object:   res.object,
		},
	})
}

func (e *Engine) traceError(sess *drm.Session, err error, where string) {
	code := int(wire.ErrnoOf(err))
	e.tracer.Log(log.Event{
		Timestamp: e.now(),
		SessionID: sess.ID().String(),
		Device:    sess.Device().Index(),
		Minor:     sess.Minor().DevicePath(),
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Code:    &code,
			Context: where,
		},
	})
}

func (e *Engine) copyIn(arg uint64, v any, size int) error {
	return usermem.CopyIn(e.mem, arg, v, size)
}

func (e *Engine) copyOut(arg uint64, v any) error {
	return usermem.CopyOut(e.mem, arg, v)
}

func requireModeset(dev *drm.Device) error {
	if !dev.CheckFeature(drm.FeatureModeset) {
		return fmt.Errorf("driver %s: modesetting: %w", dev.Driver().Name(), wire.ErrUnsupported)
	}
	return nil
}

func phaseOf(probe bool) log.Phase {
	if probe {
		return log.PhaseProbe
	}
	return log.PhaseFill
}
