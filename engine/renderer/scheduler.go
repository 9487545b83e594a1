package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

const noOwner = -1

// FrameScheduler cycles F frame slots over the presentable images. A slot's
// resources are only reused after its fence signalled, and an image is only
// written after the slot that last submitted to it has completed.
type FrameScheduler struct {
	device       FrameDevice
	presentation *Presentation
	logger       *core.Logger

	framesInFlight int
	currentSlot    int
	imageOwners    []int
	resized        bool
}

func NewFrameScheduler(device FrameDevice, presentation *Presentation, framesInFlight, imageCount int, logger *core.Logger) *FrameScheduler {
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	if logger == nil {
		logger = core.DefaultLogger()
	}
	s := &FrameScheduler{
		device:         device,
		presentation:   presentation,
		logger:         logger,
		framesInFlight: framesInFlight,
	}
	s.Reset(imageCount)
	return s
}

// Reset forgets image ownership. Called after the chain was rebuilt, once the
// device is idle.
func (s *FrameScheduler) Reset(imageCount int) {
	s.imageOwners = make([]int, imageCount)
	for i := range s.imageOwners {
		s.imageOwners[i] = noOwner
	}
}

// MarkResized makes the next present transition the chain to stale.
func (s *FrameScheduler) MarkResized() {
	s.resized = true
}

func (s *FrameScheduler) CurrentSlot() int {
	return s.currentSlot
}

func (s *FrameScheduler) FramesInFlight() int {
	return s.framesInFlight
}

// Frame runs one iteration of the frame loop. prepare runs once the acquired
// image is safe to write and before its commands are submitted. Frame returns
// false without error when nothing was presented because the chain is not ready
// or went stale during acquisition.
func (s *FrameScheduler) Frame(prepare func(image uint32) error) (bool, error) {
	if s.presentation.State() != PresentationReady {
		return false, nil
	}
	slot := s.currentSlot

	if err := s.device.WaitForSlot(slot); err != nil {
		return false, errors.Wrapf(err, "wait for frame slot %d", slot)
	}

	image, err := s.device.AcquireImage(slot)
	if core.IsStale(err) {
		s.logger.Debug("swapchain out of date on acquire, rebuilding")
		s.presentation.MarkStale()
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "acquire next image")
	}
	if int(image) >= len(s.imageOwners) {
		return false, errors.Newf("acquired image %d outside chain of %d", image, len(s.imageOwners))
	}

	if owner := s.imageOwners[image]; owner != noOwner && owner != slot {
		if err := s.device.WaitForSlot(owner); err != nil {
			return false, errors.Wrapf(err, "wait for image %d owner slot %d", image, owner)
		}
	}
	s.imageOwners[image] = slot

	if prepare != nil {
		if err := prepare(image); err != nil {
			return false, errors.Wrapf(err, "prepare image %d", image)
		}
	}

	if err := s.device.Submit(slot, image); err != nil {
		return false, errors.Wrapf(err, "submit image %d", image)
	}

	err = s.device.Present(image)
	stale := core.IsStale(err)
	if err != nil && !stale {
		return false, errors.Wrapf(err, "present image %d", image)
	}
	if stale || s.resized {
		s.logger.Debug("swapchain stale after present (resized=%t)", s.resized)
		s.resized = false
		s.presentation.MarkStale()
	}

	s.currentSlot = (slot + 1) % s.framesInFlight
	return true, nil
}
