//go:build linux

package simpledrm

import "github.com/kms-core/kms-go/pkg/drm"

// platformOps prefers memfd-backed dumb buffers so they can be memory-mapped.
func platformOps() drm.DriverOps {
	return drm.MergeOps(drm.HeapOps, drm.MemfdOps)
}
