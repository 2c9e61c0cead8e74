package drm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kms-core/kms-go/pkg/wire"
)

// Context errors.
var (
	ErrDriverExists = errors.New("drm: driver already registered")
	ErrNoDriver     = errors.New("drm: no driver matches gpu")
	ErrNoDevice     = fmt.Errorf("drm: no device probed: %w", wire.ErrNoDevice)
)

// Context holds the registered drivers, pending GPUs and probed devices.
type Context struct {
	logger *slog.Logger

	mu      sync.RWMutex
	drivers map[string]Driver
	gpus    []GPU
	devices []*Device
}

// NewContext creates an empty context. A nil logger uses slog.Default().
func NewContext(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		logger:  logger,
		drivers: make(map[string]Driver),
	}
}

// RegisterDriver adds a driver.
// Returns ErrDriverExists if a driver with the same name is registered.
func (c *Context) RegisterDriver(d Driver) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.drivers[d.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDriverExists, d.Name())
	}
	c.drivers[d.Name()] = d
	return nil
}

// Driver returns a registered driver by name.
func (c *Context) Driver(name string) (Driver, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.drivers[name]
	return d, ok
}

// AddGPU queues a GPU for the next Probe.
func (c *Context) AddGPU(gpu GPU) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gpus = append(c.gpus, gpu)
}

// Probe matches every queued GPU to the driver of the same name, creates the
// devices concurrently and registers their minors. GPUs that match no driver
// or whose driver fails are logged and skipped. Probe returns the devices
// created by this call ordered by index, or ErrNoDevice if there are none.
func (c *Context) Probe(ctx context.Context) ([]*Device, error) {
	c.mu.Lock()
	gpus := c.gpus
	c.gpus = nil
	drivers := maps.Clone(c.drivers)
	c.mu.Unlock()

	results := make([]*Device, len(gpus))
	g, gctx := errgroup.WithContext(ctx)
	for i, gpu := range gpus {
		drv, ok := drivers[gpu.Name()]
		if !ok {
			c.logger.Warn("gpu skipped", "gpu", gpu.Name(), "index", gpu.Index(), "error", ErrNoDriver)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dev, err := drv.CreateDevice(gctx, gpu.Index(), gpu)
			if err != nil {
				c.logger.Warn("device creation failed", "gpu", gpu.Name(), "index", gpu.Index(), "error", err)
				return nil
			}
			results[i] = dev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("drm: probe: %w", err)
	}

	var devices []*Device
	for _, dev := range results {
		if dev == nil {
			continue
		}
		minors := RegisterDevice(dev)
		for _, m := range minors {
			c.logger.Info("minor registered",
				"driver", dev.Driver().Name(),
				"path", m.DevicePath(),
				"type", m.Type().String(),
			)
		}
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	slices.SortFunc(devices, func(a, b *Device) int {
		return cmp.Compare(a.Index(), b.Index())
	})

	c.mu.Lock()
	c.devices = append(c.devices, devices...)
	c.mu.Unlock()
	return devices, nil
}

// Devices returns every probed device.
func (c *Context) Devices() []*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Device(nil), c.devices...)
}

// Minor finds a minor by device path, for example "dri/card0".
func (c *Context) Minor(path string) (*Minor, bool) {
	for _, dev := range c.Devices() {
		for _, m := range dev.Minors() {
			if m.DevicePath() == path {
				return m, true
			}
		}
	}
	return nil, false
}
