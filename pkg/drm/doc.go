// Package drm implements the driver, device and minor topology of the
// mode-setting core, and the per-open session state.
//
// # Topology
//
// A Driver is a factory: matched against a GPU during probe, it creates a
// Device that owns one mode-setting registry. RegisterDevice then exposes the
// device through one or more Minors, each a userspace access point named
// after its type and index:
//
//	Primary  dri/cardN
//	Render   dri/render(128+N)
//	Control  dri/controlDN
//	Accel    (no fixed path)
//
// Opening a Minor creates a Session. Sessions own a private handle namespace
// over buffer objects; the Device owns the offset table that resolves
// memory-map offsets to buffers regardless of which session created them.
//
// # Context
//
// Driver registration and probe state live in a Context value created once at
// startup. There is no package-level registry.
//
// # Locking
//
// Each Device guards its registry with one mutex. Each Session guards its
// handle table with its own mutex, and the offset table has a third. When a
// session lock and the offset table lock are both needed, the session lock is
// taken first.
package drm
