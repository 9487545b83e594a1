package core

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock measures elapsed time with the monotonic high resolution timer.
type Clock struct {
	start   time.Duration
	elapsed time.Duration
	running bool
	now     func() time.Duration
}

func NewClock() *Clock {
	return &Clock{now: hrtime.Now}
}

// Update refreshes the elapsed time. Has no effect on stopped clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = c.now() - c.start
	}
}

// Start resets the elapsed time.
func (c *Clock) Start() {
	c.start = c.now()
	c.elapsed = 0
	c.running = true
}

// Stop does not reset the elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the time between Start and the last Update, in seconds.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}

func (c *Clock) Running() bool {
	return c.running
}
