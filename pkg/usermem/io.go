package usermem

import (
	"github.com/kms-core/kms-go/pkg/wire"
)

// CopyIn decodes the ABI struct at addr into v.
func CopyIn(as AddressSpace, addr uint64, v any, size int) error {
	buf := make([]byte, size)
	if err := as.ReadAt(buf, addr); err != nil {
		return err
	}
	return wire.Decode(buf, v)
}

// CopyOut encodes v and writes it to addr.
func CopyOut(as AddressSpace, addr uint64, v any) error {
	buf, err := wire.Encode(v)
	if err != nil {
		return err
	}
	return as.WriteAt(buf, addr)
}

// WriteUint32 writes one little-endian u32.
func WriteUint32(as AddressSpace, addr uint64, v uint32) error {
	var b [4]byte
	wire.ByteOrder.PutUint32(b[:], v)
	return as.WriteAt(b[:], addr)
}

// WriteUint64 writes one little-endian u64.
func WriteUint64(as AddressSpace, addr uint64, v uint64) error {
	var b [8]byte
	wire.ByteOrder.PutUint64(b[:], v)
	return as.WriteAt(b[:], addr)
}

// ReadUint32 reads one little-endian u32.
func ReadUint32(as AddressSpace, addr uint64) (uint32, error) {
	var b [4]byte
	if err := as.ReadAt(b[:], addr); err != nil {
		return 0, err
	}
	return wire.ByteOrder.Uint32(b[:]), nil
}

// ReadUint64 reads one little-endian u64.
func ReadUint64(as AddressSpace, addr uint64) (uint64, error) {
	var b [8]byte
	if err := as.ReadAt(b[:], addr); err != nil {
		return 0, err
	}
	return wire.ByteOrder.Uint64(b[:]), nil
}

// WriteString writes s without a terminating NUL.
func WriteString(as AddressSpace, addr uint64, s string) error {
	return as.WriteAt([]byte(s), addr)
}
