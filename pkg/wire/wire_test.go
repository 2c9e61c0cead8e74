package wire

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	code := NewCode(DirRead, 0x218, 'r', 1)
	if code != 0x82187201 {
		t.Errorf("NewCode: got 0x%x, want 0x82187201", code)
	}

	assert.Equal(t, DirRead, CodeDir(code))
	assert.Equal(t, uint16(0x218), CodeSize(code))
	assert.Equal(t, uint8('r'), CodeType(code))
	assert.Equal(t, uint8(1), CodeNr(code))
}

func TestNewCodePanicsOnBadDirection(t *testing.T) {
	assert.Panics(t, func() { NewCode(4, 0, 'd', 0) })
}

func TestStructSizes(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"modeinfo", SizeModeInfo, 68},
		{"property_enum", SizePropertyEnum, 40},
		{"version", SizeVersion, 64},
		{"get_cap", SizeGetCap, 16},
		{"set_client_cap", SizeSetClientCap, 16},
		{"card_res", SizeCardRes, 64},
		{"crtc", SizeCrtc, 104},
		{"cursor", SizeCursor, 28},
		{"cursor2", SizeCursor2, 36},
		{"crtc_lut", SizeCrtcLut, 32},
		{"get_encoder", SizeGetEncoder, 20},
		{"get_connector", SizeGetConnector, 80},
		{"get_property", SizeGetProperty, 64},
		{"connector_set_property", SizeConnectorSetProp, 16},
		{"get_blob", SizeGetBlob, 16},
		{"fb_cmd", SizeFBCmd, 28},
		{"fb_dirty_cmd", SizeFBDirtyCmd, 24},
		{"create_dumb", SizeCreateDumb, 32},
		{"map_dumb", SizeMapDumb, 16},
		{"destroy_dumb", SizeDestroyDumb, 4},
		{"get_plane_res", SizeGetPlaneRes, 16},
		{"get_plane", SizeGetPlane, 32},
		{"obj_get_properties", SizeObjGetProperties, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("size: got %d, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestKnownCommandCodes(t *testing.T) {
	// Values as produced by the Linux uapi headers on little-endian targets.
	assert.Equal(t, uint32(0xc04064a0), CmdModeGetResources)
	assert.Equal(t, uint32(0xc02064b2), CmdModeCreateDumb)
	assert.Equal(t, uint32(0xc01064b3), CmdModeMapDumb)
	assert.Equal(t, uint32(0xc00464b4), CmdModeDestroyDumb)
	assert.Equal(t, uint32(0xc010640c), CmdGetCap)
	assert.Equal(t, uint32(0x4010640d), CmdSetClientCap)
	assert.Equal(t, uint32(0x0000641e), CmdSetMaster)
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "MODE_CREATE_DUMB", CommandName(CmdModeCreateDumb))
	assert.Equal(t, "DRIVER_0x42", CommandName(NewCode(DirRead|DirWrite, 8, IoctlBase, 0x42)))
	assert.Equal(t, "UNKNOWN", CommandName(NewCode(DirRead, 8, 'x', 0x01)))
}

func TestDecodeRejectsShortInput(t *testing.T) {
	var req CreateDumb
	err := Decode(make([]byte, 8), &req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateDumbLayout(t *testing.T) {
	req := CreateDumb{Height: 800, Width: 1280, Bpp: 32, Handle: 1, Pitch: 5120, Size: 4096000}
	data, err := Encode(&req)
	require.NoError(t, err)
	require.Len(t, data, 32)

	// height is the first field, size sits after six u32 fields.
	assert.Equal(t, uint32(800), ByteOrder.Uint32(data[0:4]))
	assert.Equal(t, uint32(5120), ByteOrder.Uint32(data[20:24]))
	assert.Equal(t, uint64(4096000), ByteOrder.Uint64(data[24:32]))
}

func TestVersionPaddingIsZero(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patchlevel: 3, NameLen: 9}
	data, err := Encode(&v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data[12:16])
	assert.Equal(t, uint64(9), ByteOrder.Uint64(data[16:24]))
}

func TestFixedNameTruncates(t *testing.T) {
	long := "a-property-name-that-is-longer-than-thirty-two-bytes"
	name := FixedName(long)
	assert.Equal(t, long[:NameLen], CString(name[:]))
	short := FixedName("on")
	assert.Equal(t, "on", CString(short[:]))
}

func TestErrnoOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Errno
	}{
		{"nil", nil, 0},
		{"direct", ErrNotFound, ENOENT},
		{"wrapped", fmt.Errorf("lookup handle 3: %w", ErrNotFound), ENOENT},
		{"syscall", fmt.Errorf("memfd: %w", syscall.ENOMEM), Errno(syscall.ENOMEM)},
		{"plain", errors.New("boom"), EINVAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrnoOf(tt.err); got != tt.want {
				t.Errorf("ErrnoOf: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrnoIdentity(t *testing.T) {
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ENOSYS), ErrUnimplemented))
	assert.False(t, errors.Is(ENOSYS, ErrUnsupported))
	assert.Equal(t, "EOPNOTSUPP", EOPNOTSUPP.String())
	assert.Equal(t, "operation not supported", ErrUnsupported.Error())
}
