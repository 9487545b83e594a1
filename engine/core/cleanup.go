package core

// Cleanup is a LIFO stack of release functions. Constructors that create
// several dependent objects push one release per object, then either Run
// the stack on failure or Release it to hand ownership to the caller.
type Cleanup struct {
	fns []func()
}

func NewCleanup() *Cleanup {
	return &Cleanup{}
}

func (c *Cleanup) Add(fn func()) {
	if fn == nil {
		return
	}
	c.fns = append(c.fns, fn)
}

// Run calls every registered function in reverse order and empties the stack.
func (c *Cleanup) Run() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
	c.fns = nil
}

// Release empties the stack without running anything and returns a function
// that runs the released entries later.
func (c *Cleanup) Release() func() {
	fns := c.fns
	c.fns = nil
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}

// Transfer moves every entry onto dst, preserving order.
func (c *Cleanup) Transfer(dst *Cleanup) {
	dst.fns = append(dst.fns, c.fns...)
	c.fns = nil
}

func (c *Cleanup) Len() int {
	return len(c.fns)
}
