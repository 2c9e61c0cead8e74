package model

import (
	"math/bits"
	"slices"
	"strconv"

	"github.com/kms-core/kms-go/pkg/wire"
)

// ConnectorType is the DRM_MODE_CONNECTOR_* output type.
type ConnectorType uint32

const (
	ConnectorUnknown     ConnectorType = 0
	ConnectorVGA         ConnectorType = 1
	ConnectorDVII        ConnectorType = 2
	ConnectorDVID        ConnectorType = 3
	ConnectorDVIA        ConnectorType = 4
	ConnectorComposite   ConnectorType = 5
	ConnectorSVIDEO      ConnectorType = 6
	ConnectorLVDS        ConnectorType = 7
	ConnectorComponent   ConnectorType = 8
	Connector9PinDIN     ConnectorType = 9
	ConnectorDisplayPort ConnectorType = 10
	ConnectorHDMIA       ConnectorType = 11
	ConnectorHDMIB       ConnectorType = 12
	ConnectorTV          ConnectorType = 13
	ConnectorEDP         ConnectorType = 14
	ConnectorVirtual     ConnectorType = 15
	ConnectorDSI         ConnectorType = 16
	ConnectorDPI         ConnectorType = 17
	ConnectorWriteback   ConnectorType = 18
	ConnectorSPI         ConnectorType = 19
	ConnectorUSB         ConnectorType = 20
)

var connectorTypeNames = map[ConnectorType]string{
	ConnectorUnknown:     "Unknown",
	ConnectorVGA:         "VGA",
	ConnectorDVII:        "DVI-I",
	ConnectorDVID:        "DVI-D",
	ConnectorDVIA:        "DVI-A",
	ConnectorComposite:   "Composite",
	ConnectorSVIDEO:      "SVIDEO",
	ConnectorLVDS:        "LVDS",
	ConnectorComponent:   "Component",
	Connector9PinDIN:     "DIN",
	ConnectorDisplayPort: "DP",
	ConnectorHDMIA:       "HDMI-A",
	ConnectorHDMIB:       "HDMI-B",
	ConnectorTV:          "TV",
	ConnectorEDP:         "eDP",
	ConnectorVirtual:     "Virtual",
	ConnectorDSI:         "DSI",
	ConnectorDPI:         "DPI",
	ConnectorWriteback:   "Writeback",
	ConnectorSPI:         "SPI",
	ConnectorUSB:         "USB",
}

// String returns the short connector name used in output names like "HDMI-A-1".
func (t ConnectorType) String() string {
	if s, ok := connectorTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ConnectorStatus is the connection state of an output.
type ConnectorStatus uint32

const (
	StatusConnected    ConnectorStatus = 1
	StatusDisconnected ConnectorStatus = 2
	StatusUnknown      ConnectorStatus = 3
)

// String returns the status name.
func (s ConnectorStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectorFuncs is the driver behavior attached to a connector.
type ConnectorFuncs interface {
	// Detect returns the current connection status.
	Detect(c *Connector) ConnectorStatus
}

// Default physical size reported for connectors, in millimetres.
const (
	DefaultMmWidth  = 384
	DefaultMmHeight = 240
)

// Connector is a display output.
type Connector struct {
	modeObject

	connectorType ConnectorType
	typeID        uint32
	status        ConnectorStatus
	encoderID     uint32
	modes         []wire.ModeInfo
	encoderIDs    []uint32
	encoderMask   uint32
	mmWidth       uint32
	mmHeight      uint32
	subpixel      uint32
	funcs         ConnectorFuncs
}

// Type implements Object.
func (c *Connector) Type() ObjectType {
	return ObjectConnector
}

// ConnectorType returns the output type.
func (c *Connector) ConnectorType() ConnectorType {
	return c.connectorType
}

// TypeID returns the instance number among connectors of the same type,
// starting at 1.
func (c *Connector) TypeID() uint32 {
	return c.typeID
}

// Name returns the output name, for example "Virtual-1".
func (c *Connector) Name() string {
	return c.connectorType.String() + "-" + strconv.FormatUint(uint64(c.typeID), 10)
}

// Status returns the last known connection status.
func (c *Connector) Status() ConnectorStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Detect refreshes the status through the driver hook, if any, and returns it.
func (c *Connector) Detect() ConnectorStatus {
	if c.funcs == nil {
		return c.Status()
	}
	s := c.funcs.Detect(c)
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	return s
}

// EncoderID returns the bound encoder id, or 0.
func (c *Connector) EncoderID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encoderID
}

// Modes returns the supported modes in insertion order.
func (c *Connector) Modes() []wire.ModeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.modes)
}

// CountModes returns the number of supported modes.
func (c *Connector) CountModes() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint32(len(c.modes))
}

// AddMode adds m unless an identical mode is already present.
// It reports whether the mode was added.
func (c *Connector) AddMode(m wire.ModeInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.modes, m) {
		return false
	}
	c.modes = append(c.modes, m)
	return true
}

// PossibleEncoders returns the candidate encoder ids.
func (c *Connector) PossibleEncoders() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.encoderIDs)
}

// EncoderMask returns the candidate encoders as a bitmask of encoder indices.
func (c *Connector) EncoderMask() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encoderMask
}

// CountEncoders returns the number of candidate encoders.
func (c *Connector) CountEncoders() uint32 {
	return uint32(bits.OnesCount32(c.EncoderMask()))
}

// PhysicalSize returns the size in millimetres.
func (c *Connector) PhysicalSize() (width, height uint32) {
	return c.mmWidth, c.mmHeight
}

// Subpixel returns the subpixel order.
func (c *Connector) Subpixel() uint32 {
	return c.subpixel
}

func (c *Connector) addEncoder(e *Encoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bit := uint32(1) << e.Index()
	if c.encoderMask&bit != 0 {
		return
	}
	c.encoderMask |= bit
	c.encoderIDs = append(c.encoderIDs, e.ID())
}

func (c *Connector) setEncoder(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encoderID = id
}

var _ Object = (*Connector)(nil)
