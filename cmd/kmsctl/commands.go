package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/kms-core/kms-go/internal/bringup"
	"github.com/kms-core/kms-go/pkg/config"
	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/inspect"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/wire"
)

// start brings up the stack described by the global -config flag.
func start(ctx context.Context) (*bringup.System, error) {
	e := envFrom(ctx)
	cfg := config.Default()
	if e.configFile != "" {
		var err error
		if cfg, err = config.Load(e.configFile); err != nil {
			return nil, err
		}
	}
	return bringup.Start(ctx, cfg, e.logger)
}

// session brings up the stack and opens minor.
func session(ctx context.Context, minor string) (*bringup.System, *drm.Session, error) {
	sys, err := start(ctx)
	if err != nil {
		return nil, nil, err
	}
	sess, err := sys.Open(minor)
	if err != nil {
		sys.Close()
		return nil, nil, err
	}
	return sys, sess, nil
}

func failure(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "kmsctl: %v\n", err)
	return subcommands.ExitFailure
}

type probeCmd struct {
	out io.Writer
}

func (*probeCmd) Name() string     { return "probe" }
func (*probeCmd) Synopsis() string { return "list devices, drivers and minors" }
func (*probeCmd) Usage() string {
	return `probe:
  Bring up the configured GPUs and list what was found.
`
}
func (*probeCmd) SetFlags(*flag.FlagSet) {}

func (c *probeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, err := start(ctx)
	if err != nil {
		return failure(err)
	}
	defer sys.Close()

	for _, dev := range sys.Devices {
		d := dev.Driver()
		fmt.Fprintf(c.out, "card%d\t%s %s (%s)\t%s\n", dev.Index(), d.Name(), d.Version(), d.Date(), d.Desc())
		for _, m := range dev.Minors() {
			fmt.Fprintf(c.out, "\t%s\n", m.DevicePath())
		}
	}
	return subcommands.ExitSuccess
}

type resourcesCmd struct {
	out   io.Writer
	minor string
}

func (*resourcesCmd) Name() string     { return "resources" }
func (*resourcesCmd) Synopsis() string { return "list object ids seen through a minor" }
func (*resourcesCmd) Usage() string {
	return `resources [-minor path]:
  Query GETRESOURCES and GETPLANERESOURCES.
`
}

func (c *resourcesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.minor, "minor", "dri/card0", "minor device path")
}

func (c *resourcesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, sess, err := session(ctx, c.minor)
	if err != nil {
		return failure(err)
	}
	defer sys.Close()

	r := inspect.NewRemoteInspector(inspect.SessionCaller{Engine: sys.Engine, Session: sess}, sys.Mem)
	res, err := r.Resources(ctx)
	if err != nil {
		return failure(err)
	}
	planes, err := r.PlaneIDs(ctx)
	if err != nil {
		return failure(err)
	}
	fmt.Fprintf(c.out, "fbs:\t%v\ncrtcs:\t%v\nconnectors:\t%v\nencoders:\t%v\nplanes:\t%v\n",
		res.FbIDs, res.CrtcIDs, res.ConnectorIDs, res.EncoderIDs, planes)
	fmt.Fprintf(c.out, "min:\t%dx%d\nmax:\t%dx%d\n", res.MinWidth, res.MinHeight, res.MaxWidth, res.MaxHeight)
	return subcommands.ExitSuccess
}

type inspectCmd struct {
	out   io.Writer
	minor string
	props bool
}

func (*inspectCmd) Name() string     { return "inspect" }
func (*inspectCmd) Synopsis() string { return "show objects through a minor" }
func (*inspectCmd) Usage() string {
	return `inspect [-minor path] [-props] [object path]:
  Show every object, or the one addressed by a path such as
  connector/Virtual-1 or crtc/2.
`
}

func (c *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.minor, "minor", "dri/card0", "minor device path")
	f.BoolVar(&c.props, "props", false, "show property values")
}

func (c *inspectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sys, sess, err := session(ctx, c.minor)
	if err != nil {
		return failure(err)
	}
	defer sys.Close()

	snap, err := inspect.NewRemoteInspector(inspect.SessionCaller{Engine: sys.Engine, Session: sess}, sys.Mem).Snapshot(ctx)
	if err != nil {
		return failure(err)
	}
	fm := inspect.NewFormatter()
	fm.ShowModes = true
	fm.ShowProperties = c.props

	if f.NArg() == 0 {
		fmt.Fprint(c.out, fm.FormatSnapshot(snap))
		return subcommands.ExitSuccess
	}
	p, err := inspect.ParsePath(f.Arg(0))
	if err != nil {
		return failure(err)
	}
	v, err := inspect.NewInspector(snap).Lookup(p)
	if err != nil {
		return failure(err)
	}
	fmt.Fprint(c.out, fm.Format(snap, v))
	return subcommands.ExitSuccess
}

type dumbCmd struct {
	out    io.Writer
	minor  string
	width  uint
	height uint
	bpp    uint
}

func (*dumbCmd) Name() string     { return "dumb" }
func (*dumbCmd) Synopsis() string { return "create, map and destroy a dumb buffer" }
func (*dumbCmd) Usage() string {
	return `dumb [-minor path] [-width n] [-height n] [-bpp n]:
  Exercise the dumb buffer commands and print the allocation.
`
}

func (c *dumbCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.minor, "minor", "dri/card0", "minor device path")
	f.UintVar(&c.width, "width", 1280, "buffer width in pixels")
	f.UintVar(&c.height, "height", 800, "buffer height in pixels")
	f.UintVar(&c.bpp, "bpp", 32, "bits per pixel")
}

func (c *dumbCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, sess, err := session(ctx, c.minor)
	if err != nil {
		return failure(err)
	}
	defer sys.Close()

	create := wire.CreateDumb{Width: uint32(c.width), Height: uint32(c.height), Bpp: uint32(c.bpp)}
	if err := sys.Call(ctx, sess, wire.CmdModeCreateDumb, &create); err != nil {
		return failure(fmt.Errorf("create: %w", err))
	}
	m := wire.MapDumb{Handle: create.Handle}
	if err := sys.Call(ctx, sess, wire.CmdModeMapDumb, &m); err != nil {
		return failure(fmt.Errorf("map: %w", err))
	}
	fmt.Fprintf(c.out, "handle %d pitch %d size %d offset 0x%x\n", create.Handle, create.Pitch, create.Size, m.Offset)

	if err := sys.Call(ctx, sess, wire.CmdModeDestroyDumb, &wire.DestroyDumb{Handle: create.Handle}); err != nil {
		return failure(fmt.Errorf("destroy: %w", err))
	}
	return subcommands.ExitSuccess
}

type snapshotCmd struct {
	out    io.Writer
	card   uint
	format string
	output string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "write a registry snapshot as JSON or CBOR" }
func (*snapshotCmd) Usage() string {
	return `snapshot [-card n] [-format json|cbor] [-o file]:
  Encode the registry of one device.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.card, "card", 0, "device index")
	f.StringVar(&c.format, "format", "json", "output format (json, cbor)")
	f.StringVar(&c.output, "o", "", "output file (default: stdout)")
}

func encodeSnapshot(snap model.Snapshot, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "cbor":
		return model.EncodeSnapshot(snap)
	default:
		return nil, fmt.Errorf("unknown format %q (supported: json, cbor)", format)
	}
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.format != "json" && c.format != "cbor" {
		fmt.Fprintf(os.Stderr, "kmsctl: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}
	sys, err := start(ctx)
	if err != nil {
		return failure(err)
	}
	defer sys.Close()

	dev, ok := sys.Device(uint32(c.card))
	if !ok {
		return failure(fmt.Errorf("card%d: %w", c.card, wire.ErrNoDevice))
	}
	var snap model.Snapshot
	dev.WithRegistry(func(r *model.Registry) error {
		snap = r.Snapshot()
		return nil
	})

	data, err := encodeSnapshot(snap, c.format)
	if err != nil {
		return failure(err)
	}
	if c.output == "" {
		_, err = c.out.Write(data)
	} else {
		err = os.WriteFile(c.output, data, 0o644)
	}
	if err != nil {
		return failure(err)
	}
	return subcommands.ExitSuccess
}

var (
	_ subcommands.Command = (*probeCmd)(nil)
	_ subcommands.Command = (*resourcesCmd)(nil)
	_ subcommands.Command = (*inspectCmd)(nil)
	_ subcommands.Command = (*dumbCmd)(nil)
	_ subcommands.Command = (*snapshotCmd)(nil)
)
