// Package wire defines the binary ioctl ABI spoken between a client and the
// mode-setting core.
//
// Every request is a fixed-size little-endian struct addressed by a 32-bit
// command code. Codes follow the Linux ioctl layout:
//
//	bits 31-30  direction (none, write, read, read/write)
//	bits 29-16  size of the argument struct
//	bits 15-8   type character ('d' for this core)
//	bits 7-0    command number
//
// Structs carry explicit padding fields so that binary.Size matches the C
// layout clients compile against.
//
// # Error Kinds
//
// Failures are reported as Errno values. The exported Err* variables name the
// error kinds the core distinguishes (NotFound, Unsupported, Unimplemented,
// NoHardware, InvalidArgument, AddressFault) and compare equal to the matching
// Errno under errors.Is.
package wire
