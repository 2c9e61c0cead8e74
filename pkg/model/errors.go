package model

import (
	"errors"

	"github.com/kms-core/kms-go/pkg/wire"
)

// kindError is a sentinel that also carries a wire error kind, so callers can
// match either the package sentinel or the kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Registry errors.
var (
	ErrNotFound         error = &kindError{"model: object not found", wire.ErrNotFound}
	ErrPropertyNotFound error = &kindError{"model: property not found", wire.ErrNotFound}
	ErrNilBuffer        error = &kindError{"model: framebuffer requires a buffer", wire.ErrInvalidArgument}
	ErrIndexExhausted   error = &kindError{"model: no free index below 32", wire.ErrInvalidArgument}

	ErrStandardPropertiesInitialized = errors.New("model: standard properties already initialized")
	ErrStandardPropertiesPending     = errors.New("model: standard properties not initialized")
)
