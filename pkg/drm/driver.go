package drm

import (
	"context"

	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/version"
)

// GPU is a probed piece of hardware awaiting a driver.
type GPU interface {
	// Name is matched against driver names.
	Name() string

	// Index is the device index the GPU is exposed under.
	Index() uint32
}

// platformGPU is a GPU described only by name and index.
type platformGPU struct {
	name  string
	index uint32
}

// NewGPU returns a GPU that matches the driver called name.
func NewGPU(name string, index uint32) GPU {
	return platformGPU{name: name, index: index}
}

func (g platformGPU) Name() string  { return g.name }
func (g platformGPU) Index() uint32 { return g.index }

// DumbCreateFunc allocates a dumb buffer.
type DumbCreateFunc func(width, height, bpp uint32) (*gem.Object, error)

// DriverOps is the set of optional driver operations. A nil field means the
// operation is not supported.
type DriverOps struct {
	DumbCreate DumbCreateFunc
}

// Preset operation sets.
var (
	// HeapOps allocates dumb buffers in process memory.
	HeapOps = DriverOps{DumbCreate: gem.CreateHeapDumb}

	// MemfdOps allocates mappable memfd-backed dumb buffers.
	MemfdOps = DriverOps{DumbCreate: gem.CreateMemfdDumb}
)

// MergeOps folds overrides onto base. For each field the last non-nil value
// wins.
func MergeOps(base DriverOps, overrides ...DriverOps) DriverOps {
	out := base
	for _, o := range overrides {
		if o.DumbCreate != nil {
			out.DumbCreate = o.DumbCreate
		}
	}
	return out
}

// Driver creates devices for matching GPUs.
type Driver interface {
	// Name is the driver name, used for matching and reported by GetVersion.
	Name() string

	// Desc is a human-readable description.
	Desc() string

	// Date is the driver date string.
	Date() string

	// Version is the driver version triple.
	Version() version.Driver

	// Features is the capability set of every device this driver creates.
	Features() Feature

	// Ops returns the optional driver operations.
	Ops() DriverOps

	// CreateDevice builds a device for gpu. It fails if the driver cannot
	// drive this particular GPU.
	CreateDevice(ctx context.Context, index uint32, gpu GPU) (*Device, error)

	// HandleCommand runs a driver-private command.
	HandleCommand(cmd uint32, data []byte) error
}

// BaseDriver provides default implementations of optional Driver methods.
type BaseDriver struct{}

// HandleCommand accepts every driver-private command and does nothing.
func (BaseDriver) HandleCommand(cmd uint32, data []byte) error {
	return nil
}
