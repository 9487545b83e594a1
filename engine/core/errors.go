package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrPresentationStale is returned by acquire/present when the image chain
	// no longer matches the surface. It is always recoverable by a rebuild.
	ErrPresentationStale = errors.New("presentation chain out of date")
	ErrNoSuitableAdapter = errors.New("no suitable graphics adapter")
	ErrEmptyMesh         = errors.New("mesh has no vertices or indices")
	ErrInvalidImage      = errors.New("image is invalid or has zero size")
	ErrInvalidScene      = errors.New("invalid scene file")
	ErrSceneNotFound     = errors.New("scene file not found")
	ErrAlreadyCleaned    = errors.New("resources already cleaned up")
	ErrWindowMinimized   = errors.New("window minimized")
)

// IsStale reports whether err signals a recoverable presentation loss.
func IsStale(err error) bool {
	return errors.Is(err, ErrPresentationStale)
}
