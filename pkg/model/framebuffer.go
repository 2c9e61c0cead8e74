package model

import (
	"github.com/kms-core/kms-go/pkg/gem"
)

// Framebuffer describes a buffer object as a 2D pixel surface. It aliases
// the buffer and never owns its storage.
type Framebuffer struct {
	modeObject

	width, height uint32
	pitch         uint32
	bpp           uint32
	buffer        *gem.Object
}

// Type implements Object.
func (f *Framebuffer) Type() ObjectType {
	return ObjectFB
}

// Width returns the width in pixels.
func (f *Framebuffer) Width() uint32 { return f.width }

// Height returns the height in pixels.
func (f *Framebuffer) Height() uint32 { return f.height }

// Pitch returns the row stride in bytes.
func (f *Framebuffer) Pitch() uint32 { return f.pitch }

// Bpp returns the bits per pixel.
func (f *Framebuffer) Bpp() uint32 { return f.bpp }

// Buffer returns the backing buffer object. It is never nil.
func (f *Framebuffer) Buffer() *gem.Object { return f.buffer }

var _ Object = (*Framebuffer)(nil)
