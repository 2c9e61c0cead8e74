package drm

import (
	"sync"

	"github.com/kms-core/kms-go/pkg/gem"
	"github.com/kms-core/kms-go/pkg/model"
)

// Device is one instantiated GPU. It owns the mode-setting registry and the
// memory-map offset table.
type Device struct {
	index    uint32
	driver   Driver
	features Feature

	mu       sync.Mutex
	registry *model.Registry

	offsets *offsetTable

	minorsMu sync.RWMutex
	minors   []*Minor
}

// NewDevice creates a device for driver around registry. The device
// advertises the driver's full feature set.
func NewDevice(index uint32, driver Driver, registry *model.Registry) *Device {
	return &Device{
		index:    index,
		driver:   driver,
		features: driver.Features(),
		registry: registry,
		offsets:  newOffsetTable(),
	}
}

// Index returns the device index.
func (d *Device) Index() uint32 {
	return d.index
}

// Driver returns the bound driver.
func (d *Device) Driver() Driver {
	return d.driver
}

// Features returns the device feature set.
func (d *Device) Features() Feature {
	return d.features
}

// CheckFeature reports whether the device has every feature in f.
func (d *Device) CheckFeature(f Feature) bool {
	return d.features.Has(f)
}

// Lock acquires the registry lock and returns the registry with its unlock
// function.
func (d *Device) Lock() (*model.Registry, func()) {
	d.mu.Lock()
	return d.registry, d.mu.Unlock
}

// WithRegistry runs fn with the registry lock held.
func (d *Device) WithRegistry(fn func(r *model.Registry) error) error {
	r, unlock := d.Lock()
	defer unlock()
	return fn(r)
}

// CreateOffset returns the memory-map offset of obj, allocating one on first
// use. Repeated calls for the same buffer return the same offset.
func (d *Device) CreateOffset(obj *gem.Object) uint64 {
	return d.offsets.create(obj)
}

// LookupOffset resolves any offset inside a buffer's mapped range.
func (d *Device) LookupOffset(off uint64) (*gem.Object, bool) {
	return d.offsets.lookup(off)
}

// RemoveOffset drops the offset of obj, if any.
func (d *Device) RemoveOffset(obj *gem.Object) {
	d.offsets.remove(obj)
}

// OffsetCount returns the number of buffers with an offset.
func (d *Device) OffsetCount() int {
	return d.offsets.len()
}

// Minors returns the registered minors in registration order.
func (d *Device) Minors() []*Minor {
	d.minorsMu.RLock()
	defer d.minorsMu.RUnlock()
	return append([]*Minor(nil), d.minors...)
}

func (d *Device) addMinor(m *Minor) {
	d.minorsMu.Lock()
	defer d.minorsMu.Unlock()
	d.minors = append(d.minors, m)
}

// RegisterDevice creates the minors of dev. A compute-accelerator device gets
// a single Accel minor. Otherwise a Render minor is added when the device
// renders, followed by the Primary minor.
func RegisterDevice(dev *Device) []*Minor {
	if dev.CheckFeature(FeatureComputeAccel) {
		dev.addMinor(newMinor(dev, MinorAccel))
		return dev.Minors()
	}
	if dev.CheckFeature(FeatureRender) {
		dev.addMinor(newMinor(dev, MinorRender))
	}
	dev.addMinor(newMinor(dev, MinorPrimary))
	return dev.Minors()
}
