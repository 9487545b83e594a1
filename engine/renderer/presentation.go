package renderer

import (
	"github.com/cockroachdb/errors"
)

type PresentationState uint8

const (
	PresentationUninitialized PresentationState = iota
	PresentationReady
	PresentationStale
	PresentationTornDown
)

func (s PresentationState) String() string {
	switch s {
	case PresentationUninitialized:
		return "uninitialized"
	case PresentationReady:
		return "ready"
	case PresentationStale:
		return "stale"
	case PresentationTornDown:
		return "torn down"
	}
	return "unknown"
}

var ErrInvalidTransition = errors.New("invalid presentation state transition")

// Presentation tracks whether the presentable chain can be drawn to.
type Presentation struct {
	state PresentationState
}

func (p *Presentation) State() PresentationState {
	return p.state
}

// MarkReady is valid after the initial build or a rebuild.
func (p *Presentation) MarkReady() error {
	switch p.state {
	case PresentationUninitialized, PresentationStale:
		p.state = PresentationReady
		return nil
	}
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", p.state, PresentationReady)
}

// MarkStale reports whether the state changed. Only a ready chain can go stale.
func (p *Presentation) MarkStale() bool {
	if p.state != PresentationReady {
		return false
	}
	p.state = PresentationStale
	return true
}

func (p *Presentation) TearDown() {
	p.state = PresentationTornDown
}
