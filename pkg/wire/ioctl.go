package wire

import (
	"fmt"
)

// Direction bits of an ioctl code, seen from the caller.
const (
	DirNone  = uint8(0x0)
	DirWrite = uint8(0x1)
	DirRead  = uint8(0x2)
)

const (
	nrBits   = 8
	typeBits = 8
	sizeBits = 14

	nrShift   = 0
	typeShift = nrShift + nrBits
	sizeShift = typeShift + typeBits
	dirShift  = sizeShift + sizeBits

	maxSize = 1<<sizeBits - 1
)

// NewCode builds an ioctl command code.
// It panics on a direction or size that does not fit the encoding, since codes
// are built once from package-level tables.
func NewCode(dir uint8, size uint16, typ, nr uint8) uint32 {
	if dir > DirWrite|DirRead {
		panic(fmt.Errorf("invalid ioctl direction: %d", dir))
	}
	if size > maxSize {
		panic(fmt.Errorf("invalid ioctl size: %d", size))
	}

	var code uint32
	code |= uint32(dir) << dirShift
	code |= uint32(size) << sizeShift
	code |= uint32(typ) << typeShift
	code |= uint32(nr) << nrShift
	return code
}

// CodeDir returns the direction bits of code.
func CodeDir(code uint32) uint8 {
	return uint8(code >> dirShift & 0x3)
}

// CodeSize returns the argument size encoded in code.
func CodeSize(code uint32) uint16 {
	return uint16(code >> sizeShift & maxSize)
}

// CodeType returns the type character of code.
func CodeType(code uint32) uint8 {
	return uint8(code >> typeShift)
}

// CodeNr returns the command number of code.
func CodeNr(code uint32) uint8 {
	return uint8(code >> nrShift)
}
