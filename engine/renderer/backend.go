package renderer

import (
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

// FrameDevice is the part of the backend driven by the frame scheduler.
type FrameDevice interface {
	// WaitForSlot blocks until the last submission made from slot has completed.
	WaitForSlot(slot int) error
	// AcquireImage returns the next presentable image and arranges for slot's
	// acquire signal to fire once it is available. Returns core.ErrPresentationStale
	// when the chain is out of date.
	AcquireImage(slot int) (uint32, error)
	// Submit resets slot's fence and submits the commands recorded for image.
	// The submission waits on slot's acquire signal and signals image's
	// render complete signal and slot's fence.
	Submit(slot int, image uint32) error
	// Present queues image for display once its render complete signal fires.
	// Returns core.ErrPresentationStale when the chain is out of date or suboptimal.
	Present(image uint32) error
}

// Resources resolves catalogue handles. *catalogue.Catalogue implements it.
type Resources interface {
	Mesh(h catalogue.Handle) *catalogue.MeshResources
	Texture(h catalogue.Handle) *catalogue.TextureResources
}

// Device is the graphics backend owned by the renderer.
type Device interface {
	FrameDevice

	// MinUniformAlignment is the device's minimum dynamic uniform offset alignment.
	MinUniformAlignment() uint32
	// ImageCount is the number of images in the current presentable chain.
	ImageCount() int
	Extent() (width, height uint32)

	// BuildBindings sizes the per image uniform buffers for index and writes one
	// descriptor binding per entry and image.
	BuildBindings(index *DrawIndex, res Resources) error
	// RecordCommands records the draw calls of index into every image's command buffer.
	RecordCommands(index *DrawIndex, res Resources) error
	// WriteUniforms copies data into the uniform buffer of image.
	WriteUniforms(image uint32, data []byte) error

	// Rebuild destroys and recreates every size dependent object. Returns
	// core.ErrWindowMinimized while the surface has no area.
	Rebuild() error
	WaitIdle() error
	Shutdown() error
}
