// Package bringup assembles a running stack from configuration: drivers,
// probed devices, client memory, the scanout surface, tracing and the
// command engine.
package bringup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/kms-core/kms-go/pkg/config"
	"github.com/kms-core/kms-go/pkg/drivers/simpledrm"
	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/protocol"
	"github.com/kms-core/kms-go/pkg/usermem"
	"github.com/kms-core/kms-go/pkg/wire"
)

// Drivers maps driver names to constructors.
var Drivers = map[string]func() drm.Driver{
	simpledrm.Name: func() drm.Driver { return simpledrm.New() },
}

// ErrUnknownDriver is returned when a configured GPU names no known driver.
var ErrUnknownDriver = errors.New("bringup: unknown driver")

// System is a brought-up stack.
type System struct {
	Config  *config.Config
	DRM     *drm.Context
	Devices []*drm.Device
	Mem     *usermem.Flat
	Scanout *protocol.MemoryScanout
	Engine  *protocol.Engine
	Trace   log.Logger

	logger *slog.Logger

	mu       sync.Mutex
	sessions []*drm.Session
	file     *log.FileLogger
}

// Start registers the drivers named by cfg, probes every configured GPU and
// wires the engine.
func Start(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		Config: cfg,
		DRM:    drm.NewContext(logger),
		Mem:    usermem.NewFlat(),
		logger: logger,
	}

	for _, g := range cfg.GPUs {
		newDriver, ok := Drivers[g.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, g.Name)
		}
		if _, registered := s.DRM.Driver(g.Name); !registered {
			if err := s.DRM.RegisterDriver(newDriver()); err != nil {
				return nil, err
			}
		}
		s.DRM.AddGPU(drm.NewGPU(g.Name, g.Index))
	}

	devices, err := s.DRM.Probe(ctx)
	if err != nil {
		return nil, err
	}
	s.Devices = devices

	var loggers []log.Logger
	if cfg.Trace.Path != "" {
		fl, err := log.NewFileLogger(cfg.Trace.Path)
		if err != nil {
			return nil, err
		}
		s.file = fl
		loggers = append(loggers, fl)
	}
	if cfg.Trace.Console {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}
	switch len(loggers) {
	case 0:
		s.Trace = log.NoopLogger{}
	case 1:
		s.Trace = loggers[0]
	default:
		s.Trace = log.NewMultiLogger(loggers...)
	}

	size := cfg.Scanout.Size()
	s.Scanout = protocol.NewMemoryScanout(s.Mem, s.Mem.Map(size), size)
	s.Engine = protocol.NewEngine(s.Mem,
		protocol.WithLogger(logger),
		protocol.WithTraceLogger(s.Trace),
		protocol.WithScanout(s.Scanout),
	)

	for _, dev := range devices {
		if err := s.Engine.TraceSnapshot(dev, "probe"); err != nil {
			logger.Warn("probe snapshot failed", "device", dev.Index(), "error", err)
		}
	}
	logger.Info("stack started",
		"devices", len(devices),
		"scanout", fmt.Sprintf("%dx%d@%d", cfg.Scanout.Width, cfg.Scanout.Height, cfg.Scanout.Bpp),
	)
	return s, nil
}

// Device returns the device at index.
func (s *System) Device(index uint32) (*drm.Device, bool) {
	i := slices.IndexFunc(s.Devices, func(d *drm.Device) bool { return d.Index() == index })
	if i < 0 {
		return nil, false
	}
	return s.Devices[i], true
}

// Open opens a session on the minor at path, for example "dri/card0".
func (s *System) Open(path string) (*drm.Session, error) {
	m, ok := s.DRM.Minor(path)
	if !ok {
		return nil, fmt.Errorf("minor %s: %w", path, wire.ErrNoDevice)
	}
	sess := m.Open()

	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
	return sess, nil
}

// CloseSession closes one session opened with Open.
func (s *System) CloseSession(sess *drm.Session) error {
	s.mu.Lock()
	s.sessions = slices.DeleteFunc(s.sessions, func(o *drm.Session) bool { return o == sess })
	s.mu.Unlock()
	return s.Engine.CloseSession(sess)
}

// Call encodes v into client memory, runs cmd on sess and decodes the reply
// back into v. The argument region is unmapped afterwards.
func (s *System) Call(ctx context.Context, sess *drm.Session, cmd uint32, v any) error {
	data, err := wire.Encode(v)
	if err != nil {
		return err
	}
	arg := s.Mem.Map(len(data))
	defer s.Mem.Unmap(arg)

	if err := s.Mem.WriteAt(data, arg); err != nil {
		return err
	}
	callErr := s.Engine.Ioctl(ctx, sess, cmd, arg)
	if err := s.Mem.ReadAt(data, arg); err != nil {
		return err
	}
	if err := wire.Decode(data, v); err != nil {
		return err
	}
	return callErr
}

// Close closes every open session and the trace file.
func (s *System) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := s.Engine.CloseSession(sess); err != nil {
			errs = append(errs, err)
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
