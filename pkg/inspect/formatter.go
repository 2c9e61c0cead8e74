package inspect

import (
	"fmt"
	"strings"

	"github.com/kms-core/kms-go/pkg/model"
)

// Formatter formats inspection output in the layout of modetest.
type Formatter struct {
	// ShowProperties lists each connector's property values.
	ShowProperties bool

	// ShowModes lists each connector's modes.
	ShowModes bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowProperties: true,
		ShowModes:      true,
		IndentWidth:    2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	indent := strings.Repeat(" ", depth*width)
	return indent + content
}

// FormatSnapshot renders every section of a snapshot.
func (f *Formatter) FormatSnapshot(snap model.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mode config: %dx%d - %dx%d, depth %d\n\n",
		snap.Config.MinWidth, snap.Config.MinHeight,
		snap.Config.MaxWidth, snap.Config.MaxHeight, snap.Config.PreferredDepth)

	sb.WriteString(f.FormatEncoders(snap.Encoders))
	sb.WriteString("\n")
	sb.WriteString(f.FormatConnectors(snap, snap.Connectors))
	sb.WriteString("\n")
	sb.WriteString(f.FormatCrtcs(snap.Crtcs))
	sb.WriteString("\n")
	sb.WriteString(f.FormatPlanes(snap.Planes))
	sb.WriteString("\n")
	sb.WriteString(f.FormatFramebuffers(snap.Framebuffers))
	return sb.String()
}

// Format renders a value returned by Inspector.Lookup.
func (f *Formatter) Format(snap model.Snapshot, v any) string {
	switch x := v.(type) {
	case model.ConnectorInfo:
		return f.FormatConnectors(snap, []model.ConnectorInfo{x})
	case []model.ConnectorInfo:
		return f.FormatConnectors(snap, x)
	case model.EncoderInfo:
		return f.FormatEncoders([]model.EncoderInfo{x})
	case []model.EncoderInfo:
		return f.FormatEncoders(x)
	case model.CrtcInfo:
		return f.FormatCrtcs([]model.CrtcInfo{x})
	case []model.CrtcInfo:
		return f.FormatCrtcs(x)
	case model.PlaneInfo:
		return f.FormatPlanes([]model.PlaneInfo{x})
	case []model.PlaneInfo:
		return f.FormatPlanes(x)
	case model.FramebufferInfo:
		return f.FormatFramebuffers([]model.FramebufferInfo{x})
	case []model.FramebufferInfo:
		return f.FormatFramebuffers(x)
	case model.PropertyInfo:
		return f.FormatProperty(x)
	case []model.PropertyInfo:
		var sb strings.Builder
		for _, p := range x {
			sb.WriteString(f.FormatProperty(p))
		}
		return sb.String()
	default:
		return fmt.Sprintf("%v\n", v)
	}
}

// FormatEncoders renders an encoder table.
func (f *Formatter) FormatEncoders(encs []model.EncoderInfo) string {
	var sb strings.Builder
	sb.WriteString("Encoders:\nid\tcrtc\ttype\tpossible crtcs\n")
	for _, e := range encs {
		fmt.Fprintf(&sb, "%d\t%d\t%s\t%s\n", e.ID, e.CrtcID, e.Type, FormatMask(e.PossibleCrtcs))
	}
	return sb.String()
}

// FormatConnectors renders a connector table with optional modes and
// property values.
func (f *Formatter) FormatConnectors(snap model.Snapshot, conns []model.ConnectorInfo) string {
	var sb strings.Builder
	sb.WriteString("Connectors:\nid\tencoder\tstatus\t\tname\t\tsize (mm)\tmodes\tencoders\n")
	for _, c := range conns {
		fmt.Fprintf(&sb, "%d\t%d\t%s\t%s\t%dx%d\t\t%d\t%s\n",
			c.ID, c.EncoderID, FormatStatus(c.Status), c.Name,
			c.MmWidth, c.MmHeight, len(c.Modes), joinIDs(c.Encoders))

		if f.ShowModes && len(c.Modes) > 0 {
			sb.WriteString(f.Indent(1, "modes:\n"))
			sb.WriteString(f.Indent(2, "index name refresh (Hz) hdisp vdisp clock flags type\n"))
			for i, m := range c.Modes {
				sb.WriteString(f.Indent(2, FormatMode(i, m)+"\n"))
			}
		}
		if f.ShowProperties && len(c.Properties) > 0 {
			sb.WriteString(f.Indent(1, "props:\n"))
			for _, p := range snap.Properties {
				v, ok := c.Properties[p.ID]
				if !ok {
					continue
				}
				line := fmt.Sprintf("%d %s: %s", p.ID, p.Name, FormatPropertyValue(p, v))
				sb.WriteString(f.Indent(2, line+"\n"))
			}
		}
	}
	return sb.String()
}

// FormatCrtcs renders a CRTC table.
func (f *Formatter) FormatCrtcs(crtcs []model.CrtcInfo) string {
	var sb strings.Builder
	sb.WriteString("CRTCs:\nid\tfb\tpos\tname\n")
	for _, c := range crtcs {
		fmt.Fprintf(&sb, "%d\t%d\t(%d,%d)\t%s\n", c.ID, c.FbID, c.X, c.Y, c.Name)
	}
	return sb.String()
}

// FormatPlanes renders a plane table.
func (f *Formatter) FormatPlanes(planes []model.PlaneInfo) string {
	var sb strings.Builder
	sb.WriteString("Planes:\nid\tfb\ttype\tpossible crtcs\n")
	for _, p := range planes {
		fmt.Fprintf(&sb, "%d\t%d\t%s\t%s\n", p.ID, p.FbID, p.Type, FormatMask(p.PossibleCrtcs))
	}
	return sb.String()
}

// FormatFramebuffers renders a framebuffer table.
func (f *Formatter) FormatFramebuffers(fbs []model.FramebufferInfo) string {
	if len(fbs) == 0 {
		return "Frame buffers:\n  (none)\n"
	}
	var sb strings.Builder
	sb.WriteString("Frame buffers:\nid\tsize\t\tpitch\tbpp\tbytes\n")
	for _, fb := range fbs {
		fmt.Fprintf(&sb, "%d\t(%dx%d)\t%d\t%d\t%d\n", fb.ID, fb.Width, fb.Height, fb.Pitch, fb.Bpp, fb.Size)
	}
	return sb.String()
}

// FormatProperty renders a property definition.
func (f *Formatter) FormatProperty(p model.PropertyInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s:\n", p.ID, p.Name)
	sb.WriteString(f.Indent(1, "flags: "+FormatPropertyFlags(p.Flags)+"\n"))

	switch p.Kind {
	case model.KindRange:
		if len(p.Values) == 2 {
			sb.WriteString(f.Indent(1, fmt.Sprintf("values: %d %d\n", p.Values[0], p.Values[1])))
		}
	case model.KindSignedRange:
		if len(p.Values) == 2 {
			sb.WriteString(f.Indent(1, fmt.Sprintf("values: %d %d\n", int64(p.Values[0]), int64(p.Values[1]))))
		}
	case model.KindEnum, model.KindBitmask:
		var names []string
		for _, e := range p.Entries {
			names = append(names, fmt.Sprintf("%s=%d", e.Name, e.Value))
		}
		sb.WriteString(f.Indent(1, "enums: "+strings.Join(names, " ")+"\n"))
	case model.KindBlob:
		sb.WriteString(f.Indent(1, "blobs:\n"))
	}
	return sb.String()
}

// FormatMode renders one mode line.
func FormatMode(index int, m model.ModeSummary) string {
	return fmt.Sprintf("#%d %s %d.00 %d %d %d %s %s",
		index, m.Name, m.Refresh, m.Width, m.Height, m.Clock, FormatModeFlags(m.Flags), FormatModeType(m.Type))
}

// FormatModeFlags renders sync polarity flags.
func FormatModeFlags(flags uint32) string {
	names := []struct {
		bit  uint32
		name string
	}{
		{1 << 0, "phsync"},
		{1 << 1, "nhsync"},
		{1 << 2, "pvsync"},
		{1 << 3, "nvsync"},
		{1 << 4, "interlace"},
		{1 << 5, "dblscan"},
	}
	var out []string
	for _, n := range names {
		if flags&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

// FormatModeType renders mode type bits.
func FormatModeType(t uint32) string {
	var out []string
	if t&(1<<3) != 0 {
		out = append(out, "preferred")
	}
	if t&(1<<6) != 0 {
		out = append(out, "driver")
	}
	if t&(1<<5) != 0 {
		out = append(out, "userdef")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

// FormatStatus formats a connector status the way modetest prints it.
func FormatStatus(s model.ConnectorStatus) string {
	switch s {
	case model.StatusConnected:
		return "connected"
	case model.StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// FormatMask formats a possible-crtcs style bitmask.
func FormatMask(m uint32) string {
	return fmt.Sprintf("0x%08x", m)
}

// FormatPropertyFlags formats property flag bits.
func FormatPropertyFlags(flags model.PropertyFlags) string {
	names := []struct {
		bit  model.PropertyFlags
		name string
	}{
		{model.PropPending, "pending"},
		{model.PropRange, "range"},
		{model.PropImmutable, "immutable"},
		{model.PropEnum, "enum"},
		{model.PropBlob, "blob"},
		{model.PropBitmask, "bitmask"},
		{model.PropAtomic, "atomic"},
	}
	var out []string
	for _, n := range names {
		if flags&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return strings.Join(out, " ")
}

// FormatPropertyValue formats a value of property p.
func FormatPropertyValue(p model.PropertyInfo, v uint64) string {
	switch p.Kind {
	case model.KindSignedRange:
		return fmt.Sprintf("%d", int64(v))
	case model.KindEnum:
		for _, e := range p.Entries {
			if e.Value == v {
				return e.Name
			}
		}
		return fmt.Sprintf("%d", v)
	case model.KindBitmask:
		var out []string
		for _, e := range p.Entries {
			if v&(1<<e.Value) != 0 {
				out = append(out, e.Name)
			}
		}
		if len(out) == 0 {
			return "0"
		}
		return strings.Join(out, "|")
	case model.KindBlob:
		if v == 0 {
			return "blob (none)"
		}
		return fmt.Sprintf("blob %d", v)
	case model.KindObject:
		return fmt.Sprintf("object %d", v)
	default:
		return fmt.Sprintf("%d", v)
	}
}

func joinIDs(ids []uint32) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
