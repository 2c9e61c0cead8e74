package model

// PlaneType is the DRM plane type.
type PlaneType uint32

const (
	PlaneOverlay PlaneType = 0
	PlanePrimary PlaneType = 1
	PlaneCursor  PlaneType = 2
)

// String returns the plane type name.
func (t PlaneType) String() string {
	switch t {
	case PlaneOverlay:
		return "overlay"
	case PlanePrimary:
		return "primary"
	case PlaneCursor:
		return "cursor"
	default:
		return "unknown"
	}
}

// Plane is a compositing layer.
type Plane struct {
	modeObject

	planeType     PlaneType
	fbID          uint32
	possibleCrtcs uint32
}

// Type implements Object.
func (p *Plane) Type() ObjectType {
	return ObjectPlane
}

// PlaneType returns the plane type.
func (p *Plane) PlaneType() PlaneType {
	return p.planeType
}

// FbID returns the attached framebuffer id, or 0.
func (p *Plane) FbID() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fbID
}

// SetFbID attaches a framebuffer. 0 detaches.
func (p *Plane) SetFbID(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fbID = id
}

// PossibleCrtcs returns the mask of CRTC indices this plane is bound to.
func (p *Plane) PossibleCrtcs() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.possibleCrtcs
}

func (p *Plane) addCrtc(index uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.possibleCrtcs |= 1 << index
}

var _ Object = (*Plane)(nil)
