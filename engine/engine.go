package engine

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/platform"
	"github.com/spaghettifunk/anima-editor/engine/renderer"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
	"github.com/spaghettifunk/anima-editor/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-editor/engine/scene"
	"github.com/spaghettifunk/anima-editor/engine/world"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

// suspendedWait is how long a minimized window blocks for events per loop.
const suspendedWait = 0.1

// Engine wires the window, the asset manager, the Vulkan device, the resource
// catalogue, the scene and the renderer together and drives the frame loop.
type Engine struct {
	cfg    ApplicationConfig
	logger *core.Logger
	stage  Stage

	bus      *core.EventBus
	input    *core.InputState
	platform *platform.Platform
	assets   *assets.AssetManager
	device   *vulkan.VulkanRenderer

	catalogue *catalogue.Catalogue
	world     *ecs.World
	gameWorld *world.GameWorld
	scenes    *scene.Manager
	renderer  *renderer.Renderer

	clock          *core.Clock
	metrics        *core.Metrics
	lastMetricsLog float64

	isSuspended bool
	quit        atomic.Bool

	// startup objects released in reverse on Shutdown
	cleanup *core.Cleanup
}

func New(cfg ApplicationConfig, logger *core.Logger) *Engine {
	if logger == nil {
		logger = core.NewLogger(core.LoggerOptions{Level: cfg.Logging.Level, Prefix: cfg.Logging.Prefix})
	}
	bus := core.NewEventBus()
	input := core.NewInputState(bus)
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		stage:    EngineStageUninitialized,
		bus:      bus,
		input:    input,
		platform: platform.New(input, bus, logger),
		assets: assets.NewAssetManager(assets.Config{
			Root:           cfg.Assets.Root,
			Watch:          cfg.Assets.Watch,
			MaxTextureSize: cfg.Assets.MaxTextureSize,
			ShaderDir:      cfg.Renderer.ShaderDir,
		}, logger),
		world:   ecs.NewWorld(),
		clock:   core.NewClock(),
		metrics: core.NewMetrics(),
		cleanup: core.NewCleanup(),
	}
}

func (e *Engine) Initialize() error {
	if e.stage != EngineStageUninitialized {
		return errors.Newf("engine cannot initialize from stage %d", e.stage)
	}
	e.stage = EngineStageInitializing

	if err := e.initialize(); err != nil {
		e.cleanup.Run()
		e.stage = EngineStageShutdown
		return err
	}
	e.stage = EngineStageInitialized
	return nil
}

func (e *Engine) initialize() error {
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.cleanup.Add(e.bus.Shutdown)

	win := e.cfg.Window
	if err := e.platform.Startup(win.Name, win.X, win.Y, win.Width, win.Height); err != nil {
		return err
	}
	e.cleanup.Add(func() { _ = e.platform.Shutdown() })

	if err := e.assets.Initialize(); err != nil {
		return errors.Wrap(err, "initialize assets")
	}
	e.cleanup.Add(func() {
		if err := e.assets.Shutdown(); err != nil {
			e.logger.Warn("asset manager shutdown: %s", err)
		}
	})

	rc := e.cfg.Renderer
	device, err := vulkan.New(vulkan.Config{
		ApplicationName: win.Name,
		Debug:           rc.Debug,
		FramesInFlight:  rc.FramesInFlight,
		MaxSamples:      rc.MSAA,
		VSync:           rc.VSync,
		ClearColor:      rc.ClearColor,
	}, e.platform, e.assets, e.logger)
	if err != nil {
		return errors.Wrap(err, "create vulkan device")
	}
	e.device = device

	e.catalogue = catalogue.New(device.Allocator(), e.assets, e.logger)
	e.scenes = scene.NewManager(e.world, e.catalogue, e.assets, e.logger)

	camera := world.NewCamera()
	camera.FOV = rc.FOV
	e.gameWorld = world.NewGameWorld(world.Options{
		World:  e.world,
		Input:  e.input,
		Camera: camera,
		Logger: e.logger,
	})

	e.renderer = renderer.New(renderer.Config{
		FramesInFlight: rc.FramesInFlight,
		Near:           rc.Near,
		Far:            rc.Far,
		LightPosition:  rc.lightPosition(),
		DefaultTexture: e.cfg.Assets.DefaultTexture,
	}, renderer.Options{
		Device:     device,
		Catalogue:  e.catalogue,
		World:      e.world,
		Simulation: e.gameWorld,
		Models:     e.assets,
		Names:      e.scenes,
		Logger:     e.logger,
	})
	// The renderer waits for the device, releases the catalogue and then
	// destroys the device.
	e.cleanup.Add(func() {
		if err := e.renderer.Shutdown(); err != nil && !errors.Is(err, core.ErrAlreadyCleaned) {
			e.logger.Error("renderer shutdown: %s", err)
		}
	})
	if err := e.renderer.Initialize(); err != nil {
		return errors.Wrap(err, "initialize renderer")
	}

	e.scenes.OnLoad(e.onSceneLoaded)
	e.scenes.OnUnload(e.onSceneUnloaded)
	if e.cfg.Scene.Startup != "" {
		if err := e.scenes.Load(e.cfg.Scene.Startup); err != nil {
			e.logger.Warn("startup scene not loaded: %s", err)
		}
	}
	if !e.scenes.Info().Loaded {
		if err := e.scenes.NewScene("Untitled"); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the frame loop until the window closes, Escape is pressed or
// RequestQuit is called.
func (e *Engine) Run() error {
	if e.stage != EngineStageInitialized {
		return errors.Newf("engine cannot run from stage %d", e.stage)
	}
	e.stage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()

	for !e.quit.Load() {
		if e.isSuspended {
			if !e.platform.WaitMessages(suspendedWait) {
				break
			}
			continue
		}
		if !e.platform.PumpMessages() {
			break
		}
		if e.isSuspended || e.quit.Load() {
			continue
		}

		frameStart := e.platform.AbsoluteTime()
		e.drainAssetChanges()

		if err := e.renderer.RequestFrame(); err != nil {
			e.logger.Error("frame failed, shutting down: %s", err)
			return err
		}
		e.input.Update()

		e.clock.Update()
		now := e.clock.Elapsed()
		e.metrics.Update(e.platform.AbsoluteTime() - frameStart)
		if now-e.lastMetricsLog >= 1.0 {
			fps, ms := e.metrics.Frame()
			stats := e.renderer.Stats()
			e.logger.Debug("%.0f fps, %.3f ms/frame, %d entities (%d drawn, %d hidden)",
				fps, ms, stats.Entities, stats.Drawn, stats.Hidden)
			e.lastMetricsLog = now
		}
	}
	e.stage = EngineStageInitialized
	return nil
}

// RequestQuit makes Run return after the current frame. Safe to call from any
// goroutine.
func (e *Engine) RequestQuit() {
	e.quit.Store(true)
}

// Shutdown releases everything Initialize created, in reverse order.
func (e *Engine) Shutdown() error {
	if e.stage == EngineStageShutdown {
		return core.ErrAlreadyCleaned
	}
	e.stage = EngineStageShuttingDown
	e.cleanup.Run()
	e.stage = EngineStageShutdown
	e.logger.Info("engine shut down")
	return nil
}

func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }
func (e *Engine) Scenes() *scene.Manager       { return e.scenes }
func (e *Engine) World() *world.GameWorld      { return e.gameWorld }
func (e *Engine) Assets() *assets.AssetManager { return e.assets }
func (e *Engine) Bus() *core.EventBus          { return e.bus }

func (e *Engine) drainAssetChanges() {
	for {
		select {
		case path := <-e.assets.Changes():
			e.renderer.QueueTextureReload(path)
		default:
			return
		}
	}
}

// SpawnTerrain builds a terrain from a heightmap image and makes it the floor
// of the simulation.
func (e *Engine) SpawnTerrain(heightmapPath, texturePath string) ecs.Entity {
	terrain, err := e.assets.LoadHeightmap(heightmapPath, assets.TerrainHeightScale, assets.TerrainGridSpacing, assets.TerrainHeightOffset)
	if err != nil {
		e.logger.Warn("cannot build terrain from %s: %s", heightmapPath, err)
		return ecs.InvalidEntity
	}
	entity := e.renderer.SpawnTerrain(terrain, texturePath)
	if entity == ecs.InvalidEntity {
		return entity
	}
	e.scenes.SetTerrain(terrain, entity)
	e.gameWorld.SetTerrain(terrain, entity)
	return entity
}

func (e *Engine) onSceneLoaded() {
	e.gameWorld.SetTerrain(e.scenes.Terrain())
	e.renderer.ClearSelection()
	if err := e.renderer.CollectGarbage(); err != nil {
		e.logger.Warn("releasing resources of the previous scene: %s", err)
	}
	ctx := core.EventContext{}
	info := e.scenes.Info()
	ctx.Data.C[0] = info.Name
	ctx.Data.U32[0] = uint32(info.Entities)
	e.bus.Fire(core.EVENT_CODE_SCENE_LOADED, e, ctx)
}

func (e *Engine) onSceneUnloaded() {
	e.gameWorld.SetTerrain(nil, ecs.InvalidEntity)
	e.renderer.ClearSelection()
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		e.logger.Info("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.RequestQuit()
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		e.bus.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == 0 || height == 0 {
		if !e.isSuspended {
			e.logger.Info("window minimized, suspending frames")
			e.isSuspended = true
		}
		return true
	}
	if e.renderer == nil {
		return false
	}
	if e.isSuspended {
		e.logger.Info("window restored, resuming frames")
		e.isSuspended = false
		if err := e.renderer.RecreatePresentation(); err != nil && !errors.Is(err, core.ErrWindowMinimized) {
			e.logger.Error("rebuild after restore: %s", err)
		}
		return false
	}
	e.renderer.MarkResized()
	return false
}
