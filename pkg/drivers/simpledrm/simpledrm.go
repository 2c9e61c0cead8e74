// Package simpledrm is a mode-setting driver for a firmware-provided
// framebuffer. It exposes one primary plane, one CRTC, a virtual encoder and
// an always-connected virtual connector carrying a single fixed mode.
package simpledrm

import (
	"context"
	"fmt"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/version"
	"github.com/kms-core/kms-go/pkg/wire"
)

// Driver identity reported by the VERSION command.
const (
	Name = "simpledrm"
	Desc = "DRM driver for simple-framebuffer platform devices"
	Date = "2025-01-02"
)

// Features is the capability set of every simpledrm device.
const Features = drm.FeatureGEM | drm.FeatureModeset

// FakeMode is the single mode the connector reports.
func FakeMode() wire.ModeInfo {
	return wire.ModeInfo{
		Clock:      65000,
		HDisplay:   1280,
		HSyncStart: 1048,
		HSyncEnd:   1184,
		HTotal:     1344,
		VDisplay:   800,
		VSyncStart: 771,
		VSyncEnd:   777,
		VTotal:     806,
		VRefresh:   60,
		Flags:      wire.ModeFlagPHSync | wire.ModeFlagPVSync,
		Type:       wire.ModeTypeDriver,
		Name:       wire.FixedName("1280x800"),
	}
}

// Driver creates simpledrm devices.
type Driver struct {
	drm.BaseDriver
	ops drm.DriverOps
}

// New returns a simpledrm driver using the platform's dumb buffer backend.
func New() *Driver {
	return &Driver{ops: platformOps()}
}

// NewWithOps returns a simpledrm driver with explicit driver operations.
func NewWithOps(ops drm.DriverOps) *Driver {
	return &Driver{ops: ops}
}

func (d *Driver) Name() string { return Name }
func (d *Driver) Desc() string { return Desc }
func (d *Driver) Date() string { return Date }

func (d *Driver) Version() version.Driver {
	return version.Driver{Major: 1}
}

func (d *Driver) Features() drm.Feature { return Features }
func (d *Driver) Ops() drm.DriverOps    { return d.ops }

// CreateDevice builds the fixed display pipeline for gpu.
func (d *Driver) CreateDevice(ctx context.Context, index uint32, gpu drm.GPU) (*drm.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if gpu.Name() != Name {
		return nil, fmt.Errorf("simpledrm: gpu %q: %w", gpu.Name(), drm.ErrNoDriver)
	}

	reg, err := NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("simpledrm: device %d: %w", index, err)
	}
	return drm.NewDevice(index, d, reg), nil
}

// NewRegistry builds the simpledrm object graph: a primary plane feeding one
// CRTC, routed through a virtual encoder to a connected virtual connector.
func NewRegistry() (*model.Registry, error) {
	cfg := model.DefaultModeConfig()
	cfg.PreferredDepth = 16
	cfg.Funcs = modeConfigFuncs{}

	reg := model.NewRegistry(cfg)
	if err := reg.InitStandardProperties(); err != nil {
		return nil, err
	}

	plane, err := reg.AddPlane(model.PlanePrimary)
	if err != nil {
		return nil, fmt.Errorf("primary plane: %w", err)
	}
	crtc, err := reg.AddCrtc("", plane.ID(), 0)
	if err != nil {
		return nil, fmt.Errorf("crtc: %w", err)
	}
	enc, err := reg.AddEncoder(model.EncoderVirtual, []uint32{crtc.ID()})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	conn, err := reg.AddConnector(model.ConnectorVirtual, model.StatusConnected,
		[]wire.ModeInfo{FakeMode()}, []uint32{enc.ID()}, connectorFuncs{})
	if err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}

	if err := reg.BindEncoder(conn.ID(), enc.ID()); err != nil {
		return nil, err
	}
	if err := reg.BindCrtc(enc.ID(), crtc.ID()); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds the driver to c and queues a simpledrm GPU at index.
func Register(c *drm.Context, index uint32) error {
	if err := c.RegisterDriver(New()); err != nil {
		return err
	}
	c.AddGPU(drm.NewGPU(Name, index))
	return nil
}

// connectorFuncs reports the firmware output as always connected.
type connectorFuncs struct{}

func (connectorFuncs) Detect(*model.Connector) model.ConnectorStatus {
	return model.StatusConnected
}

// modeConfigFuncs rejects framebuffers the backing buffer cannot hold.
type modeConfigFuncs struct{}

func (modeConfigFuncs) CheckFramebuffer(width, height, pitch, bpp uint32, buffer *gem.Object) error {
	minPitch := (uint64(width)*uint64(bpp) + 7) / 8
	if uint64(pitch) < minPitch {
		return fmt.Errorf("pitch %d below %d: %w", pitch, minPitch, wire.ErrInvalidArgument)
	}
	if need := uint64(pitch) * uint64(height); need > buffer.Size() {
		return fmt.Errorf("framebuffer needs %d bytes, buffer has %d: %w", need, buffer.Size(), wire.ErrInvalidArgument)
	}
	return nil
}

var (
	_ drm.Driver            = (*Driver)(nil)
	_ model.ConnectorFuncs  = connectorFuncs{}
	_ model.ModeConfigFuncs = modeConfigFuncs{}
)
