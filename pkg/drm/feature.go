package drm

import "strings"

// Feature is the set of capabilities a driver advertises.
type Feature uint32

const (
	FeatureGEM             Feature = 1 << 0
	FeatureModeset         Feature = 1 << 1
	FeatureRender          Feature = 1 << 3
	FeatureAtomic          Feature = 1 << 4
	FeatureSyncObj         Feature = 1 << 5
	FeatureSyncObjTimeline Feature = 1 << 6
	FeatureComputeAccel    Feature = 1 << 7
	FeatureGEMGPUVA        Feature = 1 << 8
	FeatureCursorHotspot   Feature = 1 << 9

	FeatureUseAGP  Feature = 1 << 25
	FeatureLegacy  Feature = 1 << 26
	FeaturePCIDMA  Feature = 1 << 27
	FeatureSG      Feature = 1 << 28
	FeatureHaveDMA Feature = 1 << 29
	FeatureHaveIRQ Feature = 1 << 30
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureGEM, "GEM"},
	{FeatureModeset, "MODESET"},
	{FeatureRender, "RENDER"},
	{FeatureAtomic, "ATOMIC"},
	{FeatureSyncObj, "SYNCOBJ"},
	{FeatureSyncObjTimeline, "SYNCOBJ_TIMELINE"},
	{FeatureComputeAccel, "COMPUTE_ACCEL"},
	{FeatureGEMGPUVA, "GEM_GPUVA"},
	{FeatureCursorHotspot, "CURSOR_HOTSPOT"},
	{FeatureUseAGP, "USE_AGP"},
	{FeatureLegacy, "LEGACY"},
	{FeaturePCIDMA, "PCI_DMA"},
	{FeatureSG, "SG"},
	{FeatureHaveDMA, "HAVE_DMA"},
	{FeatureHaveIRQ, "HAVE_IRQ"},
}

// Has reports whether every bit of want is set.
func (f Feature) Has(want Feature) bool {
	return f&want == want
}

// String lists the set feature names joined by "|".
func (f Feature) String() string {
	if f == 0 {
		return "NONE"
	}
	var names []string
	for _, fn := range featureNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}
