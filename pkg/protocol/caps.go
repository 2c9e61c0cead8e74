package protocol

import (
	"fmt"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/wire"
)

// Cap identifies a device capability queried with GET_CAP.
type Cap uint64

const (
	CapDumbBuffer          Cap = 0x1
	CapVblankHighCrtc      Cap = 0x2
	CapDumbPreferredDepth  Cap = 0x3
	CapDumbPreferShadow    Cap = 0x4
	CapPrime               Cap = 0x5
	CapTimestampMonotonic  Cap = 0x6
	CapAsyncPageFlip       Cap = 0x7
	CapCursorWidth         Cap = 0x8
	CapCursorHeight        Cap = 0x9
	CapAddFB2Modifiers     Cap = 0x10
	CapPageFlipTarget      Cap = 0x11
	CapCrtcInVblankEvent   Cap = 0x12
	CapSyncObj             Cap = 0x13
	CapSyncObjTimeline     Cap = 0x14
	CapAtomicAsyncPageFlip Cap = 0x15
)

// PRIME capability bits.
const (
	PrimeImport = 0x1
	PrimeExport = 0x2
)

// defaultCursorSize is reported when the mode config leaves the cursor size unset.
const defaultCursorSize = 64

var capNames = map[Cap]string{
	CapDumbBuffer:          "DUMB_BUFFER",
	CapVblankHighCrtc:      "VBLANK_HIGH_CRTC",
	CapDumbPreferredDepth:  "DUMB_PREFERRED_DEPTH",
	CapDumbPreferShadow:    "DUMB_PREFER_SHADOW",
	CapPrime:               "PRIME",
	CapTimestampMonotonic:  "TIMESTAMP_MONOTONIC",
	CapAsyncPageFlip:       "ASYNC_PAGE_FLIP",
	CapCursorWidth:         "CURSOR_WIDTH",
	CapCursorHeight:        "CURSOR_HEIGHT",
	CapAddFB2Modifiers:     "ADDFB2_MODIFIERS",
	CapPageFlipTarget:      "PAGE_FLIP_TARGET",
	CapCrtcInVblankEvent:   "CRTC_IN_VBLANK_EVENT",
	CapSyncObj:             "SYNCOBJ",
	CapSyncObjTimeline:     "SYNCOBJ_TIMELINE",
	CapAtomicAsyncPageFlip: "ATOMIC_ASYNC_PAGE_FLIP",
}

// String returns the capability name.
func (c Cap) String() string {
	if name, ok := capNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Cap(%#x)", uint64(c))
}

// Known reports whether c is a recognized capability.
func (c Cap) Known() bool {
	_, ok := capNames[c]
	return ok
}

// CapValue answers a capability query for dev.
// Returns wire.ErrInvalidArgument for an unknown capability and
// wire.ErrUnsupported for a modesetting capability on a device without
// MODESET.
func CapValue(dev *drm.Device, c Cap) (uint64, error) {
	if !c.Known() {
		return 0, fmt.Errorf("capability %#x: %w", uint64(c), wire.ErrInvalidArgument)
	}

	switch c {
	case CapTimestampMonotonic:
		return 1, nil
	case CapPrime:
		return PrimeImport | PrimeExport, nil
	case CapSyncObj:
		return boolValue(dev.CheckFeature(drm.FeatureSyncObj)), nil
	case CapSyncObjTimeline:
		return boolValue(dev.CheckFeature(drm.FeatureSyncObjTimeline)), nil
	}

	if err := requireModeset(dev); err != nil {
		return 0, fmt.Errorf("capability %s: %w", c, err)
	}

	var cfg model.ModeConfig
	dev.WithRegistry(func(r *model.Registry) error {
		cfg = r.Config()
		return nil
	})

	switch c {
	case CapDumbBuffer:
		return boolValue(dev.Driver().Ops().DumbCreate != nil), nil
	case CapVblankHighCrtc, CapCrtcInVblankEvent:
		return 1, nil
	case CapDumbPreferredDepth:
		return uint64(cfg.PreferredDepth), nil
	case CapDumbPreferShadow:
		return boolValue(cfg.PreferShadow), nil
	case CapAsyncPageFlip:
		return boolValue(cfg.AsyncPageFlip), nil
	case CapCursorWidth:
		return cursorSize(cfg.CursorWidth), nil
	case CapCursorHeight:
		return cursorSize(cfg.CursorHeight), nil
	case CapAddFB2Modifiers:
		return boolValue(!cfg.FBModifiersNotSupported), nil
	case CapAtomicAsyncPageFlip:
		return boolValue(dev.CheckFeature(drm.FeatureAtomic) && cfg.AsyncPageFlip), nil
	default:
		return 0, nil
	}
}

func cursorSize(n uint32) uint64 {
	if n == 0 {
		return defaultCursorSize
	}
	return uint64(n)
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
