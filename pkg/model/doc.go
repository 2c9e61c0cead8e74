// Package model implements the mode-setting object registry of a display
// device.
//
// # Object Graph
//
// A Registry owns every mode-setting object of one device:
//
//	Plane  --(primary/cursor)-->  Crtc  <--(possible_crtcs)--  Encoder  <--(possible_encoders)--  Connector
//	  |
//	  +-- fb_id --> Framebuffer --> gem.Object
//
// Connectors, encoders, CRTCs, planes and framebuffers draw their ids from one
// shared counter, so an id names exactly one object across all kinds and is
// never reused. Every object is also reachable through the polymorphic Object
// interface for generic property enumeration.
//
// # Indices
//
// CRTCs and encoders additionally get a dense 0-based index from a per-kind
// counter. Indices are bit positions in possibility masks (an encoder's
// possible_crtcs, a connector's encoder mask) and are unrelated to ids.
//
// # Properties
//
// Property definitions live in the registry's property table under their own
// id space. Objects store only property values, as plain 64-bit integers whose
// meaning depends on the property kind.
//
// # Locking
//
// A Registry is not safe for concurrent mutation. The owning device guards it
// with a single lock. Id allocation is atomic and may be called without it.
package model
