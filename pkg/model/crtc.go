package model

// Crtc is a scanout controller. Its framebuffer is whatever the primary
// plane shows.
type Crtc struct {
	modeObject

	name      string
	index     uint8
	primary   *Plane
	cursor    *Plane
	gammaSize uint32
	enabled   bool
	x, y      uint32
}

// Type implements Object.
func (c *Crtc) Type() ObjectType {
	return ObjectCrtc
}

// Name returns the CRTC name.
func (c *Crtc) Name() string {
	return c.name
}

// Index returns the CRTC's bit position in possible_crtcs masks.
func (c *Crtc) Index() uint8 {
	return c.index
}

// PrimaryPlane returns the bound primary plane.
func (c *Crtc) PrimaryPlane() *Plane {
	return c.primary
}

// CursorPlane returns the bound cursor plane, or nil.
func (c *Crtc) CursorPlane() *Plane {
	return c.cursor
}

// FbID returns the framebuffer id of the primary plane.
func (c *Crtc) FbID() uint32 {
	return c.primary.FbID()
}

// GammaSize returns the gamma table size.
func (c *Crtc) GammaSize() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gammaSize
}

// SetGammaSize sets the gamma table size.
func (c *Crtc) SetGammaSize(n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gammaSize = n
}

// Enabled reports whether the CRTC is scanning out.
func (c *Crtc) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Position returns the scanout offset within the framebuffer.
func (c *Crtc) Position() (x, y uint32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.x, c.y
}

// Set records a legacy mode set: fbID on the primary plane at (x, y).
// An fbID of 0 disables the CRTC.
func (c *Crtc) Set(fbID, x, y uint32) {
	c.primary.SetFbID(fbID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = fbID != 0
	c.x, c.y = x, y
}

var _ Object = (*Crtc)(nil)
