//go:build !linux

package simpledrm

import "github.com/kms-core/kms-go/pkg/drm"

func platformOps() drm.DriverOps {
	return drm.HeapOps
}
