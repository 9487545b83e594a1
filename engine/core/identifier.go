package core

// InvalidID is never handed out by an Identifier.
const InvalidID uint32 = 0

// Identifier hands out monotonically increasing ids starting at 1.
// Released ids are never reused.
type Identifier struct {
	next uint32
}

func NewIdentifier() *Identifier {
	return &Identifier{next: 1}
}

func (i *Identifier) Next() uint32 {
	if i.next == InvalidID {
		i.next = 1
	}
	id := i.next
	i.next++
	return id
}

// Observe makes sure ids up to and including id are never handed out again.
func (i *Identifier) Observe(id uint32) {
	if id >= i.next {
		i.next = id + 1
	}
}

// Reset starts counting from 1 again.
func (i *Identifier) Reset() {
	i.next = 1
}
