package protocol

import (
	"fmt"

	"github.com/kms-core/kms-go/pkg/wire"
)

// array is one caller-supplied output array of a fill.
type array struct {
	name     string
	ptr      uint64
	capacity uint32
	count    uint32
}

// checkCapacity validates every array before anything is written. Arrays with
// a zero pointer are not written and not checked.
func checkCapacity(arrays ...array) error {
	for _, a := range arrays {
		if a.ptr != 0 && a.capacity < a.count {
			return fmt.Errorf("%s: capacity %d < %d: %w", a.name, a.capacity, a.count, wire.ErrInvalidArgument)
		}
	}
	return nil
}

func (e *Engine) writeUint32s(addr uint64, vals []uint32) error {
	if addr == 0 || len(vals) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		wire.ByteOrder.PutUint32(buf[4*i:], v)
	}
	return e.mem.WriteAt(buf, addr)
}

func (e *Engine) writeUint64s(addr uint64, vals []uint64) error {
	if addr == 0 || len(vals) == 0 {
		return nil
	}
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		wire.ByteOrder.PutUint64(buf[8*i:], v)
	}
	return e.mem.WriteAt(buf, addr)
}

// writeStructs writes fixed-size ABI structs back to back starting at addr.
func writeStructs[T any](e *Engine, addr uint64, vals []T) error {
	if addr == 0 || len(vals) == 0 {
		return nil
	}
	var buf []byte
	for _, v := range vals {
		b, err := wire.Encode(v)
		if err != nil {
			return err
		}
		buf = append(buf, b...)
	}
	return e.mem.WriteAt(buf, addr)
}
