// Package persistence stores topology snapshots of probed devices.
//
// A state file is JSON so it can be diffed and inspected by hand. It records,
// per device, the driver that created it and a model.Snapshot of its
// mode-setting registry at save time. The file is informational: devices are
// always rebuilt by their drivers on start-up, and a loaded state is only
// compared against the live topology.
package persistence
