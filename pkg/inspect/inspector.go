package inspect

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kms-core/kms-go/pkg/model"
)

// Inspector errors.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrNameNotFound   = errors.New("name not found")
)

// Inspector answers path queries against a topology snapshot.
type Inspector struct {
	snap model.Snapshot
}

// NewInspector creates a new Inspector for the given snapshot.
func NewInspector(snap model.Snapshot) *Inspector {
	return &Inspector{snap: snap}
}

// Snapshot returns the underlying snapshot.
func (i *Inspector) Snapshot() model.Snapshot {
	return i.snap
}

// Resolve returns the object id a non-partial path refers to.
func (i *Inspector) Resolve(p *Path) (uint32, error) {
	if p.IsPartial {
		return 0, fmt.Errorf("%w: %s names no object", ErrInvalidPath, p.Raw)
	}
	if p.Name == "" {
		return p.ID, nil
	}
	id, ok := resolveName(i.snap, p.Kind, p.Name)
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", ErrNameNotFound, p.Kind, p.Name)
	}
	return id, nil
}

// Lookup returns the snapshot entry a path refers to. Partial paths return
// the slice of every object of the kind.
func (i *Inspector) Lookup(p *Path) (any, error) {
	if p.IsPartial {
		return i.list(p.Kind), nil
	}
	id, err := i.Resolve(p)
	if err != nil {
		return nil, err
	}

	var (
		v  any
		ok bool
	)
	switch p.Kind {
	case KindConnector:
		v, ok = find(i.snap.Connectors, id, func(c model.ConnectorInfo) uint32 { return c.ID })
	case KindEncoder:
		v, ok = find(i.snap.Encoders, id, func(e model.EncoderInfo) uint32 { return e.ID })
	case KindCrtc:
		v, ok = find(i.snap.Crtcs, id, func(c model.CrtcInfo) uint32 { return c.ID })
	case KindPlane:
		v, ok = find(i.snap.Planes, id, func(pl model.PlaneInfo) uint32 { return pl.ID })
	case KindFramebuffer:
		v, ok = find(i.snap.Framebuffers, id, func(f model.FramebufferInfo) uint32 { return f.ID })
	case KindProperty:
		v, ok = find(i.snap.Properties, id, func(pr model.PropertyInfo) uint32 { return pr.ID })
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrObjectNotFound, p.Kind, id)
	}
	return v, nil
}

func (i *Inspector) list(k Kind) any {
	switch k {
	case KindConnector:
		return i.snap.Connectors
	case KindEncoder:
		return i.snap.Encoders
	case KindCrtc:
		return i.snap.Crtcs
	case KindPlane:
		return i.snap.Planes
	case KindFramebuffer:
		return i.snap.Framebuffers
	case KindProperty:
		return i.snap.Properties
	default:
		return nil
	}
}

func find[T any](items []T, id uint32, key func(T) uint32) (T, bool) {
	for _, it := range items {
		if key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Diff reports the differences between two snapshots in go-cmp's
// (-old +new) format. It returns "" when they are equal.
func Diff(old, new model.Snapshot) string {
	return cmp.Diff(old, new, cmpopts.EquateEmpty())
}
