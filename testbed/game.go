package testbed

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/anima-editor/engine"
	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/core"
)

// Action is an editor command bound to a key.
type Action func() error

// Editor binds the demo editor commands to keys and fills an empty scene with
// the models found under the asset root.
type Editor struct {
	engine   *engine.Engine
	logger   *core.Logger
	bindings map[core.KeyCode]Action
	sceneDir string
}

func NewEditor(e *engine.Engine, sceneDir string, logger *core.Logger) *Editor {
	if logger == nil {
		logger = core.DefaultLogger()
	}
	ed := &Editor{
		engine:   e,
		logger:   logger,
		sceneDir: sceneDir,
	}
	ed.bindings = map[core.KeyCode]Action{
		core.KEY_F5:     ed.Save,
		core.KEY_F9:     ed.Reload,
		core.KEY_DELETE: ed.DeleteSelection,
		core.KEY_T:      ed.ToggleSimulation,
		core.KEY_N:      ed.Clear,
	}
	return ed
}

// Attach registers the editor on the engine's event bus.
func (ed *Editor) Attach(bus *core.EventBus) {
	bus.Register(core.EVENT_CODE_KEY_PRESSED, ed, ed.onKey)
	bus.Register(core.EVENT_CODE_SCENE_LOADED, ed, ed.onSceneLoaded)
}

func (ed *Editor) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	return ed.Dispatch(core.KeyCode(data.Data.U16[0]))
}

// Dispatch runs the action bound to key and reports whether one was bound.
func (ed *Editor) Dispatch(key core.KeyCode) bool {
	action, ok := ed.bindings[key]
	if !ok {
		return false
	}
	if err := action(); err != nil {
		ed.logger.Error("editor action for key 0x%02x failed: %s", key, err)
	}
	return true
}

func (ed *Editor) onSceneLoaded(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	ed.logger.Info("scene %q ready with %d entities", data.Data.C[0], data.Data.U32[0])
	return false
}

// Populate spawns the first heightmap as terrain and every indexed model in
// a row when the scene is empty.
func (ed *Editor) Populate() {
	if ed.engine.Scenes().Info().Entities > 0 {
		return
	}
	for _, path := range ed.engine.Assets().Assets(assets.ResourceTypeImage) {
		if assets.IsHeightmapPath(path) {
			ed.engine.SpawnTerrain(path, "")
			break
		}
	}

	models := ed.engine.Assets().Assets(assets.ResourceTypeModel)
	slices.Sort(models)
	for i, path := range models {
		position := mgl32.Vec3{float32(i) * 3, 0, 0}
		spawned := ed.engine.Renderer().SpawnModel(path, position)
		ed.logger.Debug("spawned %d entities from %s", len(spawned), path)
	}
}

// Save writes the scene to its file, or to the scene directory when it has
// never been saved.
func (ed *Editor) Save() error {
	scenes := ed.engine.Scenes()
	info := scenes.Info()
	if info.Path != "" {
		return scenes.SaveCurrent()
	}
	return scenes.Save(ScenePath(ed.sceneDir, info.Name))
}

func (ed *Editor) Reload() error {
	return ed.engine.Scenes().Reload()
}

func (ed *Editor) DeleteSelection() error {
	r := ed.engine.Renderer()
	var errs error
	for _, e := range r.Selection() {
		if err := r.DestroyEntity(e); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (ed *Editor) ToggleSimulation() error {
	w := ed.engine.World()
	w.SimulationEnabled = !w.SimulationEnabled
	ed.logger.Info("simulation enabled: %t", w.SimulationEnabled)
	return nil
}

func (ed *Editor) Clear() error {
	ed.engine.Scenes().Unload()
	return ed.engine.Scenes().NewScene("Untitled")
}

// ScenePath derives a file name from a scene name.
func ScenePath(dir, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "untitled"
	}
	name = strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return filepath.Join(dir, name+".json")
}
