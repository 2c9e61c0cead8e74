package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-core/kms-go/pkg/model"
)

func execute(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Execute(context.Background(), fs)
}

func TestProbe(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, &probeCmd{out: &out}))

	assert.Contains(t, out.String(), "card0\tsimpledrm 1.0.0")
	assert.Contains(t, out.String(), "dri/card0")
}

func TestResources(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, &resourcesCmd{out: &out}))
	assert.Contains(t, out.String(), "connectors:")
	assert.Contains(t, out.String(), "fbs:\t[]")

	assert.Equal(t, subcommands.ExitFailure, execute(t, &resourcesCmd{out: &out}, "-minor", "dri/card9"))
}

func TestInspect(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, &inspectCmd{out: &out}, "connector/Virtual-1"))
	assert.Contains(t, out.String(), "Virtual-1")
	assert.Contains(t, out.String(), "1280x800")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, &inspectCmd{out: &out}))
	assert.Contains(t, out.String(), "Mode config:")

	assert.Equal(t, subcommands.ExitFailure, execute(t, &inspectCmd{out: &out}, "widget/1"))
	assert.Equal(t, subcommands.ExitUsageError, execute(t, &inspectCmd{out: &out}, "crtc", "plane"))
}

func TestDumb(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, &dumbCmd{out: &out}, "-width", "64", "-height", "32"))
	assert.Contains(t, out.String(), "handle 1 pitch 256 size 8192 offset 0x")

	assert.Equal(t, subcommands.ExitFailure, execute(t, &dumbCmd{out: &out}, "-width", "0"))
}

func TestSnapshotJSON(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, &snapshotCmd{out: &out}))

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	require.Len(t, snap.Connectors, 1)
	assert.Equal(t, "Virtual-1", snap.Connectors[0].Name)
}

func TestSnapshotCBORFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.cbor")
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, &snapshotCmd{out: &out}, "-format", "cbor", "-o", path))
	assert.Zero(t, out.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	snap, err := model.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Len(t, snap.Crtcs, 1)
}

func TestSnapshotErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, subcommands.ExitUsageError, execute(t, &snapshotCmd{out: &out}, "-format", "xml"))
	assert.Equal(t, subcommands.ExitFailure, execute(t, &snapshotCmd{out: &out}, "-card", "3"))
}
