package drm

import "fmt"

// DRM character device numbering.
const (
	Major            = 226
	ControlMinorBase = 64
	RenderMinorBase  = 128
)

// MinorType is the kind of access point a minor provides.
type MinorType uint8

const (
	MinorPrimary MinorType = 0
	MinorControl MinorType = 1
	MinorRender  MinorType = 2
	MinorAccel   MinorType = 32
)

// String returns the minor type name.
func (t MinorType) String() string {
	switch t {
	case MinorPrimary:
		return "primary"
	case MinorControl:
		return "control"
	case MinorRender:
		return "render"
	case MinorAccel:
		return "accel"
	default:
		return fmt.Sprintf("MinorType(%d)", uint8(t))
	}
}

// Minor is one userspace access point of a device.
type Minor struct {
	index  uint32
	typ    MinorType
	device *Device
}

func newMinor(dev *Device, typ MinorType) *Minor {
	return &Minor{index: dev.Index(), typ: typ, device: dev}
}

// Index returns the device index.
func (m *Minor) Index() uint32 {
	return m.index
}

// Type returns the minor type.
func (m *Minor) Type() MinorType {
	return m.typ
}

// Device returns the owning device.
func (m *Minor) Device() *Device {
	return m.device
}

// DevicePath returns the node path relative to /dev, or "" for accel minors.
func (m *Minor) DevicePath() string {
	switch m.typ {
	case MinorPrimary:
		return fmt.Sprintf("dri/card%d", m.index)
	case MinorRender:
		return fmt.Sprintf("dri/render%d", RenderMinorBase+m.index)
	case MinorControl:
		return fmt.Sprintf("dri/controlD%d", m.index)
	default:
		return ""
	}
}

// DevNumber returns the character device major and minor numbers.
func (m *Minor) DevNumber() (major, minor uint32) {
	switch m.typ {
	case MinorRender:
		return Major, RenderMinorBase + m.index
	case MinorControl:
		return Major, ControlMinorBase + m.index
	default:
		return Major, m.index
	}
}

// Open creates a new session on this minor.
func (m *Minor) Open() *Session {
	return newSession(m)
}
