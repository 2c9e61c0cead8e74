// Package protocol implements the command surface a client drives through
// an open minor.
//
// An Engine decodes each command's argument struct from a client address
// space, runs it against the session and its device, and writes the result
// back. Failures surface as wire.Errno values so callers observe exactly the
// errno a kernel would return.
//
// # Two-phase queries
//
// Queries that return arrays (GETRESOURCES, GETCONNECTOR, GETPROPERTY,
// GETPLANERESOURCES, OBJ_GETPROPERTIES, VERSION) run in two phases. With every
// pointer field zero the call is a probe and only counts are written. With
// any pointer set the call is a fill: all capacities are validated against
// the current counts before the first element is written, and an
// insufficient capacity is EINVAL.
//
// # Tracing
//
// Every command produces one log.Event of category IOCTL carrying the
// command name, phase, errno and duration.
package protocol
