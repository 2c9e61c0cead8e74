// Package interactive provides the interactive command-line interface
// for kms-device.
package interactive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/kms-core/kms-go/internal/bringup"
	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/inspect"
	"github.com/kms-core/kms-go/pkg/persistence"
	"github.com/kms-core/kms-go/pkg/protocol"
	"github.com/kms-core/kms-go/pkg/wire"
)

var errUsage = errors.New("usage")

// Shell is an interactive client of a running stack. It holds at most one
// open session at a time.
type Shell struct {
	sys       *bringup.System
	store     *persistence.TopologyStore
	formatter *inspect.Formatter
	rl        *readline.Instance
	out       io.Writer

	sess   *drm.Session
	remote *inspect.RemoteInspector
	dumbs  map[uint32]wire.CreateDumb
}

// New creates a shell reading from the terminal. store may be nil, in which
// case save and diff are unavailable.
func New(sys *bringup.System, store *persistence.TopologyStore) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kms> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(sys, store, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(sys *bringup.System, store *persistence.TopologyStore, out io.Writer) *Shell {
	f := inspect.NewFormatter()
	f.ShowModes = true
	return &Shell{
		sys:       sys,
		store:     store,
		formatter: f,
		out:       out,
		dumbs:     make(map[uint32]wire.CreateDumb),
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("devices"),
		readline.PcItem("open"),
		readline.PcItem("close"),
		readline.PcItem("version"),
		readline.PcItem("caps"),
		readline.PcItem("resources"),
		readline.PcItem("inspect"),
		readline.PcItem("dumb"),
		readline.PcItem("map"),
		readline.PcItem("destroy"),
		readline.PcItem("fill"),
		readline.PcItem("addfb"),
		readline.PcItem("rmfb"),
		readline.PcItem("setcrtc"),
		readline.PcItem("dirty"),
		readline.PcItem("scanout"),
		readline.PcItem("snapshot"),
		readline.PcItem("save"),
		readline.PcItem("diff"),
		readline.PcItem("quit"),
	)
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	defer s.closeSession()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if s.Exec(ctx, line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "devices", "dev":
		s.cmdDevices()
	case "open", "o":
		err = s.cmdOpen(args)
	case "close":
		err = s.closeSession()
	case "version", "v":
		err = s.cmdVersion(ctx)
	case "caps":
		err = s.cmdCaps(ctx)
	case "resources", "res":
		err = s.cmdResources(ctx)
	case "inspect", "i":
		err = s.cmdInspect(ctx, args)
	case "dumb":
		err = s.cmdCreateDumb(ctx, args)
	case "map":
		err = s.cmdMapDumb(ctx, args)
	case "destroy":
		err = s.cmdDestroyDumb(ctx, args)
	case "fill":
		err = s.cmdFill(ctx, args)
	case "addfb":
		err = s.cmdAddFB(ctx, args)
	case "rmfb":
		err = s.cmdRmFB(ctx, args)
	case "setcrtc":
		err = s.cmdSetCrtc(ctx, args)
	case "dirty":
		err = s.cmdDirty(ctx, args)
	case "scanout":
		err = s.cmdScanout()
	case "snapshot":
		err = s.cmdSnapshot()
	case "save":
		err = s.cmdSave()
	case "diff":
		err = s.cmdDiff()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		return false
	}

	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `
Commands:
  devices                       List probed devices and their minors
  open <minor>                  Open a session (e.g. dri/card0)
  close                         Close the session
  version                       Show driver name and version
  caps                          Show device capabilities
  resources                     List object ids
  inspect [path]                Show objects (e.g. connector/Virtual-1, crtc/2)
  dumb <w> <h> [bpp]            Create a dumb buffer
  map <handle>                  Get the memory-map offset of a buffer
  destroy <handle>              Destroy a dumb buffer handle
  fill <handle> <xrgb>          Fill a buffer with a 32-bit color (hex)
  addfb <handle> [depth]        Create a framebuffer from a dumb buffer
  rmfb <fb>                     Remove a framebuffer
  setcrtc <crtc> <fb> [x y]     Scan out fb on crtc (fb 0 disables)
  dirty <fb>                    Flush fb to the scanout surface
  scanout                       Show the first scanout pixels
  snapshot                      Write a registry snapshot to the trace
  save                          Save the current topology
  diff                          Compare the saved topology with the live one
  quit                          Exit
`)
}

func (s *Shell) requireSession() error {
	if s.sess == nil {
		return errors.New("no open session (use 'open <minor>')")
	}
	return nil
}

func (s *Shell) call(ctx context.Context, cmd uint32, v any) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.sys.Call(ctx, s.sess, cmd, v); err != nil {
		return fmt.Errorf("%s: %w", wire.CommandName(cmd), err)
	}
	return nil
}

func (s *Shell) cmdDevices() {
	if len(s.sys.Devices) == 0 {
		fmt.Fprintln(s.out, "No devices")
		return
	}
	for _, dev := range s.sys.Devices {
		fmt.Fprintf(s.out, "card%d  %s\n", dev.Index(), dev.Driver().Name())
		for _, m := range dev.Minors() {
			major, minor := m.DevNumber()
			fmt.Fprintf(s.out, "  %-16s %d:%d\n", m.DevicePath(), major, minor)
		}
	}
}

func (s *Shell) cmdOpen(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: open <minor>", errUsage)
	}
	if s.sess != nil {
		if err := s.closeSession(); err != nil {
			return err
		}
	}
	sess, err := s.sys.Open(args[0])
	if err != nil {
		return err
	}
	s.sess = sess
	s.remote = inspect.NewRemoteInspector(inspect.SessionCaller{Engine: s.sys.Engine, Session: sess}, s.sys.Mem)
	fmt.Fprintf(s.out, "Opened %s (session %s)\n", args[0], sess.ID())
	return nil
}

func (s *Shell) closeSession() error {
	if s.sess == nil {
		return nil
	}
	sess := s.sess
	s.sess, s.remote = nil, nil
	clear(s.dumbs)
	if err := s.sys.CloseSession(sess); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Closed session %s\n", sess.ID())
	return nil
}

func (s *Shell) cmdVersion(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	v, err := s.remote.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %d.%d.%d (%s) %s\n", v.Name, v.Major, v.Minor, v.Patchlevel, v.Date, v.Desc)
	return nil
}

var shownCaps = []protocol.Cap{
	protocol.CapDumbBuffer,
	protocol.CapDumbPreferredDepth,
	protocol.CapDumbPreferShadow,
	protocol.CapPrime,
	protocol.CapTimestampMonotonic,
	protocol.CapCursorWidth,
	protocol.CapCursorHeight,
}

func (s *Shell) cmdCaps(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	for _, c := range shownCaps {
		v, err := s.remote.Cap(ctx, c)
		if err != nil {
			fmt.Fprintf(s.out, "  %-22s %v\n", c.String(), err)
			continue
		}
		fmt.Fprintf(s.out, "  %-22s %d\n", c.String(), v)
	}
	return nil
}

func (s *Shell) cmdResources(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	res, err := s.remote.Resources(ctx)
	if err != nil {
		return err
	}
	planes, err := s.remote.PlaneIDs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "min %dx%d max %dx%d\n", res.MinWidth, res.MinHeight, res.MaxWidth, res.MaxHeight)
	fmt.Fprintf(s.out, "  connectors: %s\n", formatIDs(res.ConnectorIDs))
	fmt.Fprintf(s.out, "  encoders:   %s\n", formatIDs(res.EncoderIDs))
	fmt.Fprintf(s.out, "  crtcs:      %s\n", formatIDs(res.CrtcIDs))
	fmt.Fprintf(s.out, "  planes:     %s\n", formatIDs(planes))
	fmt.Fprintf(s.out, "  fbs:        %s\n", formatIDs(res.FbIDs))
	return nil
}

func formatIDs(ids []uint32) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ", ")
}

// cmdInspect fetches the topology through the command protocol and
// prints the object addressed by path, or everything without one.
func (s *Shell) cmdInspect(ctx context.Context, args []string) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	snap, err := s.remote.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprint(s.out, s.formatter.FormatSnapshot(snap))
		return nil
	}

	p, err := inspect.ParsePath(args[0])
	if err != nil {
		return err
	}
	v, err := inspect.NewInspector(snap).Lookup(p)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, s.formatter.Format(snap, v))
	return nil
}

func parseUint32Args(args []string, names ...string) ([]uint32, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%w: missing <%s>", errUsage, names[len(args)])
	}
	out := make([]uint32, len(args))
	for i, a := range args {
		n, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = uint32(n)
	}
	return out, nil
}

func (s *Shell) cmdCreateDumb(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "width", "height")
	if err != nil {
		return err
	}
	req := wire.CreateDumb{Width: n[0], Height: n[1], Bpp: 32}
	if len(n) > 2 {
		req.Bpp = n[2]
	}
	if err := s.call(ctx, wire.CmdModeCreateDumb, &req); err != nil {
		return err
	}
	s.dumbs[req.Handle] = req
	fmt.Fprintf(s.out, "handle %d: %dx%d bpp %d pitch %d size %d\n",
		req.Handle, req.Width, req.Height, req.Bpp, req.Pitch, req.Size)
	return nil
}

func (s *Shell) mapDumb(ctx context.Context, handle uint32) (uint64, error) {
	req := wire.MapDumb{Handle: handle}
	if err := s.call(ctx, wire.CmdModeMapDumb, &req); err != nil {
		return 0, err
	}
	return req.Offset, nil
}

func (s *Shell) cmdMapDumb(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "handle")
	if err != nil {
		return err
	}
	off, err := s.mapDumb(ctx, n[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "handle %d: offset 0x%x\n", n[0], off)
	return nil
}

func (s *Shell) cmdDestroyDumb(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "handle")
	if err != nil {
		return err
	}
	if err := s.call(ctx, wire.CmdModeDestroyDumb, &wire.DestroyDumb{Handle: n[0]}); err != nil {
		return err
	}
	delete(s.dumbs, n[0])
	fmt.Fprintf(s.out, "handle %d destroyed\n", n[0])
	return nil
}

// cmdFill maps the buffer through its memory-map offset and paints every
// 32-bit pixel with one color.
func (s *Shell) cmdFill(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: fill <handle> <xrgb>", errUsage)
	}
	n, err := parseUint32Args(args[:1], "handle")
	if err != nil {
		return err
	}
	color, err := strconv.ParseUint(strings.TrimPrefix(args[1], "#"), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid color %q", args[1])
	}

	off, err := s.mapDumb(ctx, n[0])
	if err != nil {
		return err
	}
	m, err := s.sess.Mmap(off)
	if err != nil {
		return err
	}
	buf, err := m.Map()
	if err != nil {
		return err
	}
	for i := 0; i+4 <= len(buf); i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], uint32(color))
	}
	if err := m.Unmap(buf); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "handle %d filled with 0x%08x (%d bytes)\n", n[0], color, len(buf))
	return nil
}

func (s *Shell) cmdAddFB(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "handle")
	if err != nil {
		return err
	}
	d, ok := s.dumbs[n[0]]
	if !ok {
		return fmt.Errorf("handle %d was not created in this session", n[0])
	}
	req := wire.FBCmd{
		Width:  d.Width,
		Height: d.Height,
		Pitch:  d.Pitch,
		Bpp:    d.Bpp,
		Depth:  min(d.Bpp, 24),
		Handle: d.Handle,
	}
	if len(n) > 1 {
		req.Depth = n[1]
	}
	if err := s.call(ctx, wire.CmdModeAddFB, &req); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "fb %d: %dx%d from handle %d\n", req.FbID, req.Width, req.Height, req.Handle)
	return nil
}

func (s *Shell) cmdRmFB(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "fb")
	if err != nil {
		return err
	}
	fb := n[0]
	if err := s.call(ctx, wire.CmdModeRmFB, &fb); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "fb %d removed\n", fb)
	return nil
}

func (s *Shell) cmdSetCrtc(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "crtc", "fb")
	if err != nil {
		return err
	}
	req := wire.Crtc{CrtcID: n[0], FbID: n[1]}
	if len(n) > 3 {
		req.X, req.Y = n[2], n[3]
	}
	if err := s.call(ctx, wire.CmdModeSetCrtc, &req); err != nil {
		return err
	}
	if req.FbID == 0 {
		fmt.Fprintf(s.out, "crtc %d disabled\n", req.CrtcID)
	} else {
		fmt.Fprintf(s.out, "crtc %d scanning out fb %d\n", req.CrtcID, req.FbID)
	}
	return nil
}

func (s *Shell) cmdDirty(ctx context.Context, args []string) error {
	n, err := parseUint32Args(args, "fb")
	if err != nil {
		return err
	}
	if err := s.call(ctx, wire.CmdModeDirtyFB, &wire.FBDirtyCmd{FbID: n[0]}); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "fb %d flushed\n", n[0])
	return nil
}

func (s *Shell) cmdScanout() error {
	sc := s.sys.Scanout
	buf := make([]byte, min(16, sc.Size()))
	if err := s.sys.Mem.ReadAt(buf, sc.Addr()); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "scanout at 0x%x, %d bytes:", sc.Addr(), sc.Size())
	for i := 0; i+4 <= len(buf); i += 4 {
		fmt.Fprintf(s.out, " %08x", binary.LittleEndian.Uint32(buf[i:]))
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *Shell) cmdSnapshot() error {
	for _, dev := range s.sys.Devices {
		if err := s.sys.Engine.TraceSnapshot(dev, "shell"); err != nil {
			return err
		}
	}
	fmt.Fprintf(s.out, "Snapshot of %d device(s) traced\n", len(s.sys.Devices))
	return nil
}

func (s *Shell) cmdSave() error {
	if s.store == nil {
		return errors.New("no state file configured")
	}
	if err := s.store.Save(persistence.Capture(s.sys.Devices)); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved to %s\n", s.store.Path())
	return nil
}

// cmdDiff compares the saved topology with the live registries.
func (s *Shell) cmdDiff() error {
	if s.store == nil {
		return errors.New("no state file configured")
	}
	saved, err := s.store.Load()
	if err != nil {
		return err
	}
	if saved == nil {
		return errors.New("no saved state")
	}

	changed := false
	for _, rec := range persistence.Capture(s.sys.Devices).Devices {
		old, ok := saved.Device(rec.Index)
		if !ok {
			fmt.Fprintf(s.out, "card%d: not in saved state\n", rec.Index)
			changed = true
			continue
		}
		if d := inspect.Diff(old.Snapshot, rec.Snapshot); d != "" {
			fmt.Fprintf(s.out, "card%d:\n%s", rec.Index, d)
			changed = true
		}
	}
	if !changed {
		fmt.Fprintln(s.out, "No changes")
	}
	return nil
}
