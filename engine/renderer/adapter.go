package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

// AdapterInfo summarises what a physical adapter offers for a given surface.
type AdapterInfo struct {
	Name               string
	GraphicsQueue      bool
	PresentQueue       bool
	SwapchainExtension bool
	SurfaceFormats     int
	PresentModes       int
	SamplerAnisotropy  bool
	Discrete           bool
}

func (a AdapterInfo) Suitable() bool {
	return a.GraphicsQueue && a.PresentQueue && a.SwapchainExtension &&
		a.SurfaceFormats > 0 && a.PresentModes > 0 && a.SamplerAnisotropy
}

// SelectAdapter returns the index of the first suitable adapter. It does not
// rank adapters: a suitable integrated GPU listed first wins over a discrete one.
func SelectAdapter(adapters []AdapterInfo) (int, error) {
	for i, a := range adapters {
		if a.Suitable() {
			return i, nil
		}
	}
	return -1, errors.Wrapf(core.ErrNoSuitableAdapter, "%d adapters enumerated", len(adapters))
}
