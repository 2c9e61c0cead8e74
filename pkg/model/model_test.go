package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/wire"
)

func newReadyRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(DefaultModeConfig())
	require.NoError(t, r.InitStandardProperties())
	return r
}

func testMode(name string, w, h uint16) wire.ModeInfo {
	return wire.ModeInfo{
		Clock:    65000,
		HDisplay: w,
		VDisplay: h,
		VRefresh: 60,
		Name:     wire.FixedName(name),
	}
}

// buildPipeline creates plane -> crtc -> encoder -> connector.
func buildPipeline(t *testing.T, r *Registry) (*Plane, *Crtc, *Encoder, *Connector) {
	t.Helper()
	plane, err := r.AddPlane(PlanePrimary)
	require.NoError(t, err)
	crtc, err := r.AddCrtc("", plane.ID(), 0)
	require.NoError(t, err)
	enc, err := r.AddEncoder(EncoderVirtual, []uint32{crtc.ID()})
	require.NoError(t, err)
	conn, err := r.AddConnector(ConnectorVirtual, StatusConnected,
		[]wire.ModeInfo{testMode("1280x800", 1280, 800)}, []uint32{enc.ID()}, nil)
	require.NoError(t, err)
	return plane, crtc, enc, conn
}

func TestStandardPropertiesGate(t *testing.T) {
	r := NewRegistry(DefaultModeConfig())

	_, err := r.AddPlane(PlanePrimary)
	assert.ErrorIs(t, err, ErrStandardPropertiesPending)

	require.NoError(t, r.InitStandardProperties())
	assert.ErrorIs(t, r.InitStandardProperties(), ErrStandardPropertiesInitialized)

	_, err = r.AddPlane(PlanePrimary)
	assert.NoError(t, err)
}

func TestObjectIDsIncreaseAcrossKinds(t *testing.T) {
	r := newReadyRegistry(t)
	plane, crtc, enc, conn := buildPipeline(t, r)

	buf, err := gem.CreateHeapDumb(4, 4, 32)
	require.NoError(t, err)
	fbID, err := r.CreateFramebuffer(4, 4, 16, 32, buf)
	require.NoError(t, err)

	ids := []uint32{plane.ID(), crtc.ID(), enc.ID(), conn.ID(), fbID}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not strictly increasing: %v", ids)
		}
	}
	assert.Equal(t, uint32(1), ids[0])
}

func TestPropertyIDsStartAboveZero(t *testing.T) {
	r := newReadyRegistry(t)

	a := r.CreateProperty(NewBoolProperty("a", 0))
	b := r.CreateProperty(NewBoolProperty("b", 0))

	assert.Equal(t, uint32(1), a)
	assert.Greater(t, b, a)

	// Property ids do not consume object ids.
	p, err := r.AddPlane(PlaneOverlay)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.ID())
}

func TestConcurrentIDAllocation(t *testing.T) {
	r := newReadyRegistry(t)
	const k = 64

	ids := make([]uint32, k)
	var g errgroup.Group
	for i := range k {
		g.Go(func() error {
			ids[i] = r.NextObjectID()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[uint32]bool, k)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	assert.Len(t, seen, k)
}

func TestCrtcBindsPlanes(t *testing.T) {
	r := newReadyRegistry(t)

	primary, err := r.AddPlane(PlanePrimary)
	require.NoError(t, err)
	cursor, err := r.AddPlane(PlaneCursor)
	require.NoError(t, err)

	c0, err := r.AddCrtc("", primary.ID(), cursor.ID())
	require.NoError(t, err)
	assert.Equal(t, "crtc-3", c0.Name())
	assert.Equal(t, uint8(0), c0.Index())
	assert.Same(t, cursor, c0.CursorPlane())

	other, err := r.AddPlane(PlanePrimary)
	require.NoError(t, err)
	c1, err := r.AddCrtc("pipe-b", other.ID(), 0)
	require.NoError(t, err)
	assert.Equal(t, "pipe-b", c1.Name())
	assert.Equal(t, uint8(1), c1.Index())

	assert.Equal(t, uint32(1), primary.PossibleCrtcs())
	assert.Equal(t, uint32(1), cursor.PossibleCrtcs())
	assert.Equal(t, uint32(2), other.PossibleCrtcs())

	_, err = r.AddCrtc("", 999, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, wire.ErrNotFound)
}

func TestCrtcFbIDFollowsPrimaryPlane(t *testing.T) {
	r := newReadyRegistry(t)
	plane, crtc, _, _ := buildPipeline(t, r)

	assert.Equal(t, uint32(0), crtc.FbID())
	assert.False(t, crtc.Enabled())

	crtc.Set(42, 10, 20)
	assert.Equal(t, uint32(42), plane.FbID())
	assert.Equal(t, uint32(42), crtc.FbID())
	assert.True(t, crtc.Enabled())
	x, y := crtc.Position()
	assert.Equal(t, uint32(10), x)
	assert.Equal(t, uint32(20), y)
}

func TestEncoderPossibleCrtcs(t *testing.T) {
	r := newReadyRegistry(t)

	var crtcIDs []uint32
	for range 3 {
		p, err := r.AddPlane(PlanePrimary)
		require.NoError(t, err)
		c, err := r.AddCrtc("", p.ID(), 0)
		require.NoError(t, err)
		crtcIDs = append(crtcIDs, c.ID())
	}

	enc, err := r.AddEncoder(EncoderTMDS, []uint32{crtcIDs[0], crtcIDs[2]})
	require.NoError(t, err)
	assert.Equal(t, uint32(0b101), enc.PossibleCrtcs())
	assert.Equal(t, uint32(0), enc.PossibleClones())

	_, err = r.AddEncoder(EncoderTMDS, []uint32{12345})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexExhausted(t *testing.T) {
	r := newReadyRegistry(t)

	for i := 0; i < 32; i++ {
		_, err := r.AddEncoder(EncoderNone, nil)
		require.NoError(t, err, "encoder %d", i)
	}
	_, err := r.AddEncoder(EncoderNone, nil)
	assert.ErrorIs(t, err, ErrIndexExhausted)
	assert.Equal(t, wire.EINVAL, wire.ErrnoOf(err))
}

func TestConnectorModesAndEncoders(t *testing.T) {
	r := newReadyRegistry(t)

	e0, err := r.AddEncoder(EncoderVirtual, nil)
	require.NoError(t, err)
	e1, err := r.AddEncoder(EncoderVirtual, nil)
	require.NoError(t, err)

	m := testMode("1280x800", 1280, 800)
	conn, err := r.AddConnector(ConnectorHDMIA, StatusUnknown,
		[]wire.ModeInfo{m, m}, []uint32{e0.ID(), e1.ID(), e1.ID()}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), conn.CountModes())
	assert.False(t, conn.AddMode(m))
	assert.True(t, conn.AddMode(testMode("640x480", 640, 480)))
	assert.Equal(t, uint32(2), conn.CountModes())

	assert.Equal(t, uint32(0b11), conn.EncoderMask())
	assert.Equal(t, uint32(2), conn.CountEncoders())
	assert.Equal(t, []uint32{e0.ID(), e1.ID()}, conn.PossibleEncoders())

	w, h := conn.PhysicalSize()
	assert.Equal(t, uint32(DefaultMmWidth), w)
	assert.Equal(t, uint32(DefaultMmHeight), h)
	assert.Equal(t, "HDMI-A-1", conn.Name())

	second, err := r.AddConnector(ConnectorHDMIA, StatusUnknown, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), second.TypeID())

	_, err = r.AddConnector(ConnectorVGA, StatusUnknown, nil, []uint32{777}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubConnectorFuncs struct {
	mock.Mock
}

func (s *stubConnectorFuncs) Detect(c *Connector) ConnectorStatus {
	args := s.Called(c)
	return args.Get(0).(ConnectorStatus)
}

func TestConnectorDetect(t *testing.T) {
	r := newReadyRegistry(t)
	funcs := &stubConnectorFuncs{}

	conn, err := r.AddConnector(ConnectorDisplayPort, StatusUnknown, nil, nil, funcs)
	require.NoError(t, err)
	funcs.On("Detect", conn).Return(StatusDisconnected).Once()

	assert.Equal(t, StatusDisconnected, conn.Detect())
	assert.Equal(t, StatusDisconnected, conn.Status())
	funcs.AssertExpectations(t)
}

func TestBindings(t *testing.T) {
	r := newReadyRegistry(t)
	_, crtc, enc, conn := buildPipeline(t, r)

	require.NoError(t, r.BindEncoder(conn.ID(), enc.ID()))
	require.NoError(t, r.BindCrtc(enc.ID(), crtc.ID()))
	assert.Equal(t, enc.ID(), conn.EncoderID())
	assert.Equal(t, crtc.ID(), enc.CrtcID())

	assert.ErrorIs(t, r.BindEncoder(conn.ID(), 999), ErrNotFound)
	assert.ErrorIs(t, r.BindCrtc(999, crtc.ID()), ErrNotFound)
}

type stubModeConfigFuncs struct {
	mock.Mock
}

func (s *stubModeConfigFuncs) CheckFramebuffer(width, height, pitch, bpp uint32, buffer *gem.Object) error {
	return s.Called(width, height, pitch, bpp, buffer).Error(0)
}

func TestFramebufferLifecycle(t *testing.T) {
	r := newReadyRegistry(t)

	_, err := r.CreateFramebuffer(1, 1, 4, 32, nil)
	assert.ErrorIs(t, err, ErrNilBuffer)

	buf, err := gem.CreateHeapDumb(16, 16, 32)
	require.NoError(t, err)

	id, err := r.CreateFramebuffer(16, 16, 64, 32, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), r.CountFramebuffers())

	fb, ok := r.LookupFramebuffer(id)
	require.True(t, ok)
	assert.Same(t, buf, fb.Buffer())

	obj, ok := r.Object(id)
	require.True(t, ok)
	assert.Equal(t, ObjectFB, obj.Type())

	removed, ok := r.RemoveFramebuffer(id)
	require.True(t, ok)
	assert.Same(t, fb, removed)
	_, ok = r.Object(id)
	assert.False(t, ok)
	_, ok = r.RemoveFramebuffer(id)
	assert.False(t, ok)

	// Removing the framebuffer leaves the buffer usable.
	_, err = buf.Write(0, []byte{1, 2, 3, 4})
	assert.NoError(t, err)
}

func TestFramebufferCheckHook(t *testing.T) {
	funcs := &stubModeConfigFuncs{}
	cfg := DefaultModeConfig()
	cfg.Funcs = funcs
	r := NewRegistry(cfg)

	buf, err := gem.CreateHeapDumb(8, 8, 32)
	require.NoError(t, err)

	rejected := errors.New("unsupported format")
	funcs.On("CheckFramebuffer", uint32(8), uint32(8), uint32(32), uint32(24), buf).Return(rejected).Once()
	funcs.On("CheckFramebuffer", uint32(8), uint32(8), uint32(32), uint32(32), buf).Return(nil).Once()

	_, err = r.CreateFramebuffer(8, 8, 32, 24, buf)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, uint32(0), r.CountFramebuffers())

	_, err = r.CreateFramebuffer(8, 8, 32, 32, buf)
	assert.NoError(t, err)
	funcs.AssertExpectations(t)
}

func TestIDListingsMatchCounts(t *testing.T) {
	r := newReadyRegistry(t)
	for range 3 {
		buildPipeline(t, r)
	}

	tests := []struct {
		name  string
		ids   []uint32
		count uint32
	}{
		{"connectors", r.ConnectorIDs(), r.CountConnectors()},
		{"encoders", r.EncoderIDs(), r.CountEncoders()},
		{"crtcs", r.CrtcIDs(), r.CountCrtcs()},
		{"planes", r.PlaneIDs(), r.CountPlanes()},
		{"framebuffers", r.FramebufferIDs(), r.CountFramebuffers()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if uint32(len(tt.ids)) != tt.count {
				t.Errorf("len(ids) = %d, count = %d", len(tt.ids), tt.count)
			}
			for _, id := range tt.ids {
				if _, ok := r.Object(id); !ok {
					t.Errorf("id %d not in object table", id)
				}
			}
		})
	}
}

func TestPropertyKinds(t *testing.T) {
	entries := []EnumEntry{{0, "off"}, {1, "on"}}

	tests := []struct {
		name       string
		prop       *Property
		flags      PropertyFlags
		countVals  uint32
		countEnums uint32
		values     []uint64
		records    int
	}{
		{"bool", NewBoolProperty("dpms", 0), PropRange, 2, 0, []uint64{0, 1}, 0},
		{"range", NewRangeProperty("alpha", PropAtomic, 0, 0xffff), PropRange | PropAtomic, 2, 0, []uint64{0, 0xffff}, 0},
		{"signed", NewSignedRangeProperty("x", 0, -5, 5), PropRange, 2, 0, []uint64{uint64(0xfffffffffffffffb), 5}, 0},
		{"enum", NewEnumProperty("mode", 0, entries), PropEnum, 2, 2, []uint64{0, 1}, 2},
		{"bitmask", NewBitmaskProperty("rotation", 0, entries), PropBitmask, 2, 2, []uint64{0, 1}, 2},
		{"blob", NewProperty("EDID", PropImmutable), PropImmutable, 1, 1, []uint64{1}, 0},
		{"object", NewObjectProperty("CRTC_ID", 0, ObjectCrtc), PropAtomic, 1, 0, []uint64{uint64(ObjectCrtc)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.flags, tt.prop.Flags())
			assert.Equal(t, tt.countVals, tt.prop.CountValues())
			assert.Equal(t, tt.countEnums, tt.prop.CountEnumBlobs())
			assert.Equal(t, tt.values, tt.prop.Values())
			assert.Len(t, tt.prop.EnumRecords(), tt.records)
		})
	}
}

func TestEnumRecordsKeepOrder(t *testing.T) {
	p := NewEnumProperty("mode", 0, []EnumEntry{{0, "off"}, {1, "on"}})
	recs := p.EnumRecords()
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(0), recs[0].Value)
	assert.Equal(t, "off", wire.CString(recs[0].Name[:]))
	assert.Equal(t, uint64(1), recs[1].Value)
	assert.Equal(t, "on", wire.CString(recs[1].Name[:]))
}

func TestPropertyNameTruncated(t *testing.T) {
	p := NewBoolProperty("a-property-name-much-longer-than-32-bytes", 0)
	assert.Len(t, p.Name(), wire.NameLen)
}

func TestAttachProperty(t *testing.T) {
	r := newReadyRegistry(t)
	_, _, _, conn := buildPipeline(t, r)

	dpms := r.CreateProperty(NewEnumProperty("DPMS", 0, []EnumEntry{{0, "On"}, {3, "Off"}}))
	edid := r.CreateProperty(NewProperty("EDID", PropImmutable|PropBlob))

	require.NoError(t, r.AttachProperty(conn.ID(), edid, 0))
	require.NoError(t, r.AttachProperty(conn.ID(), dpms, 3))

	assert.Equal(t, uint32(2), conn.CountProps())
	assert.Equal(t, []uint32{dpms, edid}, conn.PropertyIDs())
	v, ok := conn.PropertyValue(dpms)
	require.True(t, ok)
	assert.Equal(t, uint64(3), v)

	assert.ErrorIs(t, r.AttachProperty(999, dpms, 0), ErrNotFound)
	assert.ErrorIs(t, r.AttachProperty(conn.ID(), 999, 0), ErrPropertyNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := newReadyRegistry(t)
	_, crtc, enc, conn := buildPipeline(t, r)
	require.NoError(t, r.BindEncoder(conn.ID(), enc.ID()))
	require.NoError(t, r.BindCrtc(enc.ID(), crtc.ID()))
	dpms := r.CreateProperty(NewEnumProperty("DPMS", 0, []EnumEntry{{0, "On"}, {3, "Off"}}))
	require.NoError(t, r.AttachProperty(conn.ID(), dpms, 0))

	buf, err := gem.CreateHeapDumb(1280, 800, 32)
	require.NoError(t, err)
	fbID, err := r.CreateFramebuffer(1280, 800, 5120, 32, buf)
	require.NoError(t, err)
	crtc.Set(fbID, 0, 0)

	snap := r.Snapshot()
	require.Len(t, snap.Connectors, 1)
	assert.Equal(t, "Virtual-1", snap.Connectors[0].Name)
	assert.Equal(t, []ModeSummary{{Name: "1280x800", Width: 1280, Height: 800, Refresh: 60, Clock: 65000}}, snap.Connectors[0].Modes)
	require.Len(t, snap.Crtcs, 1)
	assert.Equal(t, fbID, snap.Crtcs[0].FbID)
	require.Len(t, snap.Framebuffers, 1)
	assert.Equal(t, uint64(4096000), snap.Framebuffers[0].Size)

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	if diff := cmp.Diff(snap, decoded); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot([]byte{0xff, 0x00})
	assert.Error(t, err)
}
