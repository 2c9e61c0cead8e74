package interactive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-core/kms-go/internal/bringup"
	"github.com/kms-core/kms-go/pkg/config"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/persistence"
)

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys, err := bringup.Start(context.Background(), config.Default(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })

	store := persistence.NewTopologyStore(filepath.Join(t.TempDir(), "state.json"))
	var out bytes.Buffer
	return newShell(sys, store, &out), &out
}

// run executes line and returns what it printed.
func run(t *testing.T, s *Shell, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	assert.False(t, s.Exec(context.Background(), line), "%q should not exit", line)
	return out.String()
}

func firstID(t *testing.T, s *Shell, ids func(r *model.Registry) []uint32) uint32 {
	t.Helper()
	var id uint32
	require.NoError(t, s.sys.Devices[0].WithRegistry(func(r *model.Registry) error {
		all := ids(r)
		require.NotEmpty(t, all)
		id = all[0]
		return nil
	}))
	return id
}

func TestShellRequiresSession(t *testing.T) {
	s, out := newTestShell(t)

	for _, line := range []string{"version", "caps", "resources", "inspect", "dumb 64 64", "rmfb 1"} {
		assert.Contains(t, run(t, s, out, line), "no open session", line)
	}
}

func TestShellDevicesAndOpen(t *testing.T) {
	s, out := newTestShell(t)

	got := run(t, s, out, "devices")
	assert.Contains(t, got, "card0  simpledrm")
	assert.Contains(t, got, "dri/card0")

	assert.Contains(t, run(t, s, out, "open dri/renderD128"), "Error:")
	assert.Contains(t, run(t, s, out, "open dri/card0"), "Opened dri/card0")
	assert.Contains(t, run(t, s, out, "version"), "simpledrm 1.0.0")

	caps := run(t, s, out, "caps")
	assert.Contains(t, caps, "DUMB_BUFFER")
	assert.Contains(t, caps, "DUMB_PREFERRED_DEPTH")

	assert.Contains(t, run(t, s, out, "close"), "Closed session")
	assert.Contains(t, run(t, s, out, "version"), "no open session")
}

func TestShellInspect(t *testing.T) {
	s, out := newTestShell(t)
	run(t, s, out, "open dri/card0")

	assert.Contains(t, run(t, s, out, "resources"), "connectors:")
	assert.Contains(t, run(t, s, out, "inspect"), "Virtual-1")
	assert.Contains(t, run(t, s, out, "inspect connector/Virtual-1"), "1280x800")
	assert.Contains(t, run(t, s, out, "inspect connector/99"), "Error:")
	assert.Contains(t, run(t, s, out, "inspect /bad"), "Error:")
}

func TestShellFramebufferFlow(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("dumb buffers are only mappable with memfd")
	}
	s, out := newTestShell(t)
	run(t, s, out, "open dri/card0")

	assert.Contains(t, run(t, s, out, "dumb 64 64"), "handle 1: 64x64 bpp 32 pitch 256")
	assert.Contains(t, run(t, s, out, "map 1"), "offset 0x")
	assert.Contains(t, run(t, s, out, "fill 1 00ff0000"), "16384 bytes")
	assert.Contains(t, run(t, s, out, "addfb 1"), "from handle 1")

	fb := firstID(t, s, (*model.Registry).FramebufferIDs)
	crtc := firstID(t, s, (*model.Registry).CrtcIDs)

	got := run(t, s, out, fmt.Sprintf("setcrtc %d %d", crtc, fb))
	assert.Contains(t, got, "scanning out")
	assert.Contains(t, run(t, s, out, "scanout"), "00ff0000 00ff0000")
	assert.Contains(t, run(t, s, out, fmt.Sprintf("dirty %d", fb)), "flushed")

	assert.Contains(t, run(t, s, out, fmt.Sprintf("rmfb %d", fb)), "removed")
	assert.Contains(t, run(t, s, out, "destroy 1"), "destroyed")
	assert.Contains(t, run(t, s, out, "destroy 1"), "no such file or directory")
}

func TestShellAddFBUnknownHandle(t *testing.T) {
	s, out := newTestShell(t)
	run(t, s, out, "open dri/card0")

	assert.Contains(t, run(t, s, out, "addfb 9"), "not created in this session")
	assert.Contains(t, run(t, s, out, "dumb"), "missing <width>")
	assert.Contains(t, run(t, s, out, "dumb x 4"), "invalid number")
}

func TestShellSaveAndDiff(t *testing.T) {
	s, out := newTestShell(t)

	assert.Contains(t, run(t, s, out, "diff"), "no saved state")
	assert.Contains(t, run(t, s, out, "save"), "Saved to")
	assert.Contains(t, run(t, s, out, "diff"), "No changes")

	crtc := firstID(t, s, (*model.Registry).CrtcIDs)
	require.NoError(t, s.sys.Devices[0].WithRegistry(func(r *model.Registry) error {
		c, _ := r.Crtc(crtc)
		c.Set(0, 10, 20)
		return nil
	}))
	assert.Contains(t, run(t, s, out, "diff"), "card0:")
}

func TestShellSnapshotAndQuit(t *testing.T) {
	s, out := newTestShell(t)

	assert.Contains(t, run(t, s, out, "snapshot"), "1 device(s)")
	assert.Contains(t, run(t, s, out, "bogus"), "Unknown command")
	assert.Empty(t, run(t, s, out, "   "))
	assert.True(t, s.Exec(context.Background(), "quit"))
}
