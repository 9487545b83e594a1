package testbed

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

func TestScenePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenes", "my_level.json"), ScenePath("scenes", " My Level "))
	assert.Equal(t, filepath.Join("scenes", "untitled.json"), ScenePath("scenes", ""))
}

func TestDispatchRunsBoundActions(t *testing.T) {
	ed := &Editor{logger: core.NewDiscardLogger()}
	calls := 0
	ed.bindings = map[core.KeyCode]Action{
		core.KEY_F5: func() error { calls++; return nil },
		core.KEY_F9: func() error { calls++; return errors.New("boom") },
	}

	assert.True(t, ed.Dispatch(core.KEY_F5))
	assert.True(t, ed.Dispatch(core.KEY_F9))
	assert.False(t, ed.Dispatch(core.KEY_A))
	assert.Equal(t, 2, calls)
}

func TestKeyEventsReachTheEditor(t *testing.T) {
	bus := core.NewEventBus()
	ed := &Editor{logger: core.NewDiscardLogger()}
	pressed := false
	ed.bindings = map[core.KeyCode]Action{
		core.KEY_T: func() error { pressed = true; return nil },
	}
	ed.Attach(bus)

	input := core.NewInputState(bus)
	input.ProcessKey(core.KEY_T, true)
	assert.True(t, pressed)
}
