package inspect

import (
	"fmt"
	"strings"

	"github.com/kms-core/kms-go/pkg/model"
)

// Kind is an inspectable object class.
type Kind uint8

const (
	KindNone Kind = iota
	KindConnector
	KindEncoder
	KindCrtc
	KindPlane
	KindFramebuffer
	KindProperty
)

// kindNames maps accepted spellings to kinds. Plurals select listings.
var kindNames = map[string]Kind{
	"connector":    KindConnector,
	"connectors":   KindConnector,
	"conn":         KindConnector,
	"encoder":      KindEncoder,
	"encoders":     KindEncoder,
	"enc":          KindEncoder,
	"crtc":         KindCrtc,
	"crtcs":        KindCrtc,
	"plane":        KindPlane,
	"planes":       KindPlane,
	"fb":           KindFramebuffer,
	"fbs":          KindFramebuffer,
	"framebuffer":  KindFramebuffer,
	"framebuffers": KindFramebuffer,
	"property":     KindProperty,
	"properties":   KindProperty,
	"prop":         KindProperty,
	"props":        KindProperty,
}

// String returns the canonical kind name.
func (k Kind) String() string {
	switch k {
	case KindConnector:
		return "connector"
	case KindEncoder:
		return "encoder"
	case KindCrtc:
		return "crtc"
	case KindPlane:
		return "plane"
	case KindFramebuffer:
		return "fb"
	case KindProperty:
		return "property"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// ResolveKindName resolves a kind name or alias (case-insensitive).
func ResolveKindName(name string) (Kind, bool) {
	k, ok := kindNames[strings.ToLower(name)]
	return k, ok
}

// ResolveConnectorName finds a connector by output name, for example
// "Virtual-1" (case-insensitive).
func ResolveConnectorName(snap model.Snapshot, name string) (uint32, bool) {
	for _, c := range snap.Connectors {
		if strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return 0, false
}

// ResolveCrtcName finds a CRTC by name.
func ResolveCrtcName(snap model.Snapshot, name string) (uint32, bool) {
	for _, c := range snap.Crtcs {
		if strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return 0, false
}

// ResolvePropertyName finds a property by name, for example "DPMS".
func ResolvePropertyName(snap model.Snapshot, name string) (uint32, bool) {
	for _, p := range snap.Properties {
		if strings.EqualFold(p.Name, name) {
			return p.ID, true
		}
	}
	return 0, false
}

// GetPropertyName returns the name of a property id, or "" if unknown.
func GetPropertyName(snap model.Snapshot, id uint32) string {
	for _, p := range snap.Properties {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// resolveName resolves a symbolic object name within a kind.
func resolveName(snap model.Snapshot, k Kind, name string) (uint32, bool) {
	switch k {
	case KindConnector:
		return ResolveConnectorName(snap, name)
	case KindCrtc:
		return ResolveCrtcName(snap, name)
	case KindProperty:
		return ResolvePropertyName(snap, name)
	default:
		return 0, false
	}
}
