package simpledrm

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/protocol"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func probe(t *testing.T) (*drm.Context, *drm.Device) {
	t.Helper()
	c := drm.NewContext(quietLogger())
	require.NoError(t, Register(c, 0))
	devs, err := c.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, devs, 1)
	return c, devs[0]
}

func TestDriverIdentity(t *testing.T) {
	d := New()
	assert.Equal(t, "simpledrm", d.Name())
	assert.Equal(t, Desc, d.Desc())
	assert.Equal(t, "2025-01-02", d.Date())
	assert.Equal(t, int32(1), d.Version().Major)
	assert.True(t, d.Features().Has(drm.FeatureGEM|drm.FeatureModeset))
	assert.False(t, d.Features().Has(drm.FeatureRender))
	assert.NotNil(t, d.Ops().DumbCreate)
}

func TestCreateDeviceRejectsForeignGPU(t *testing.T) {
	_, err := New().CreateDevice(context.Background(), 0, drm.NewGPU("virtio", 0))
	assert.ErrorIs(t, err, drm.ErrNoDriver)
}

func TestCreateDeviceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().CreateDevice(ctx, 0, drm.NewGPU(Name, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryTopology(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	cfg := reg.Config()
	assert.Equal(t, uint32(1), cfg.MinWidth)
	assert.Equal(t, uint32(8192), cfg.MaxWidth)
	assert.Equal(t, uint32(16), cfg.PreferredDepth)

	require.Len(t, reg.PlaneIDs(), 1)
	require.Len(t, reg.CrtcIDs(), 1)
	require.Len(t, reg.EncoderIDs(), 1)
	require.Len(t, reg.ConnectorIDs(), 1)
	assert.Empty(t, reg.FramebufferIDs())

	plane, _ := reg.Plane(reg.PlaneIDs()[0])
	crtc, _ := reg.Crtc(reg.CrtcIDs()[0])
	enc, _ := reg.Encoder(reg.EncoderIDs()[0])
	conn, _ := reg.Connector(reg.ConnectorIDs()[0])

	assert.Equal(t, model.PlanePrimary, plane.PlaneType())
	assert.Equal(t, plane, crtc.PrimaryPlane())
	assert.Nil(t, crtc.CursorPlane())
	assert.Equal(t, uint32(1), plane.PossibleCrtcs())

	assert.Equal(t, model.EncoderVirtual, enc.EncoderType())
	assert.Equal(t, crtc.ID(), enc.CrtcID())
	assert.Equal(t, uint32(1), enc.PossibleCrtcs())

	assert.Equal(t, model.ConnectorVirtual, conn.ConnectorType())
	assert.Equal(t, "Virtual-1", conn.Name())
	assert.Equal(t, model.StatusConnected, conn.Detect())
	assert.Equal(t, enc.ID(), conn.EncoderID())
	assert.Equal(t, []wire.ModeInfo{FakeMode()}, conn.Modes())
}

func TestFakeMode(t *testing.T) {
	m := FakeMode()
	assert.Equal(t, "1280x800", m.ModeName())
	assert.Equal(t, uint32(65000), m.Clock)
	assert.Equal(t, uint16(1344), m.HTotal)
	assert.Equal(t, uint16(806), m.VTotal)
	assert.Equal(t, uint32(0x5), m.Flags)
	assert.Equal(t, uint32(0x40), m.Type)
}

func TestCheckFramebuffer(t *testing.T) {
	buf, err := gem.CreateHeapDumb(64, 64, 32)
	require.NoError(t, err)

	tests := []struct {
		name    string
		w, h    uint32
		pitch   uint32
		bpp     uint32
		wantErr bool
	}{
		{"exact", 64, 64, 256, 32, false},
		{"smaller view", 32, 32, 256, 32, false},
		{"pitch too small", 64, 64, 128, 32, true},
		{"too tall", 64, 65, 256, 32, true},
		{"16bpp", 128, 64, 256, 16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := modeConfigFuncs{}.CheckFramebuffer(tt.w, tt.h, tt.pitch, tt.bpp, buf)
			if tt.wantErr {
				assert.ErrorIs(t, err, wire.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProbeRegistersMinors(t *testing.T) {
	c, dev := probe(t)
	assert.Equal(t, uint32(0), dev.Index())

	_, ok := c.Minor("dri/card0")
	assert.True(t, ok)
	_, ok = c.Minor("dri/render128")
	assert.False(t, ok, "simpledrm has no render node")
}

func TestEndToEnd(t *testing.T) {
	c, _ := probe(t)
	minor, ok := c.Minor("dri/card0")
	require.True(t, ok)
	sess := minor.Open()

	mem := usermem.NewFlat()
	engine := protocol.NewEngine(mem, protocol.WithLogger(quietLogger()))
	ctx := context.Background()

	call := func(cmd uint32, v any) error {
		t.Helper()
		data, err := wire.Encode(v)
		require.NoError(t, err)
		arg := mem.Map(len(data))
		require.NoError(t, mem.WriteAt(data, arg))
		callErr := engine.Ioctl(ctx, sess, cmd, arg)
		out, err := mem.Bytes(arg, len(data))
		require.NoError(t, err)
		require.NoError(t, wire.Decode(out, v))
		return callErr
	}

	t.Run("resources", func(t *testing.T) {
		var res wire.CardRes
		require.NoError(t, call(wire.CmdModeGetResources, &res))
		assert.Equal(t, uint32(1), res.CountCrtcs)
		assert.Equal(t, uint32(1), res.CountConnectors)
		assert.Equal(t, uint32(1), res.CountEncoders)
		assert.Equal(t, uint32(0), res.CountFbs)
		assert.Equal(t, uint32(8192), res.MaxHeight)
	})

	t.Run("connector", func(t *testing.T) {
		res := wire.CardRes{}
		require.NoError(t, call(wire.CmdModeGetResources, &res))
		res.ConnectorIDPtr = mem.Map(4)
		require.NoError(t, call(wire.CmdModeGetResources, &res))
		connID, err := usermem.ReadUint32(mem, res.ConnectorIDPtr)
		require.NoError(t, err)

		probeReq := wire.GetConnector{ConnectorID: connID}
		require.NoError(t, call(wire.CmdModeGetConnector, &probeReq))
		assert.Equal(t, uint32(1), probeReq.CountModes)
		assert.Equal(t, uint32(model.StatusConnected), probeReq.Connection)
		assert.Equal(t, uint32(model.ConnectorVirtual), probeReq.ConnectorType)

		fill := probeReq
		fill.ModesPtr = mem.Map(wire.SizeModeInfo)
		require.NoError(t, call(wire.CmdModeGetConnector, &fill))
		raw, err := mem.Bytes(fill.ModesPtr, wire.SizeModeInfo)
		require.NoError(t, err)
		var mode wire.ModeInfo
		require.NoError(t, wire.Decode(raw, &mode))
		assert.Equal(t, FakeMode(), mode)
	})

	t.Run("dumb buffer scanout", func(t *testing.T) {
		dumb := wire.CreateDumb{Width: 1280, Height: 800, Bpp: 32}
		require.NoError(t, call(wire.CmdModeCreateDumb, &dumb))
		assert.Equal(t, uint32(5120), dumb.Pitch)

		fb := wire.FBCmd{Width: 1280, Height: 800, Pitch: dumb.Pitch, Bpp: 32, Depth: 24, Handle: dumb.Handle}
		require.NoError(t, call(wire.CmdModeAddFB, &fb))
		assert.NotZero(t, fb.FbID)

		bad := wire.FBCmd{Width: 1280, Height: 801, Pitch: dumb.Pitch, Bpp: 32, Depth: 24, Handle: dumb.Handle}
		assert.Equal(t, wire.EINVAL, call(wire.CmdModeAddFB, &bad))

		destroy := wire.DestroyDumb{Handle: dumb.Handle}
		require.NoError(t, call(wire.CmdModeDestroyDumb, &destroy))
	})

	n, err := sess.Close()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
