package assets

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-editor/engine/assets/loaders"
	"github.com/spaghettifunk/anima-editor/engine/core"
)

type AssetInfo struct {
	Path       string
	Type       ResourceType
	LastLoaded time.Time
}

type Config struct {
	Root           string
	Watch          bool
	MaxTextureSize int
	ShaderDir      string
}

// AssetManager indexes the asset tree, loads models, textures, heightmaps and
// shaders, and reports files changed on disk.
type AssetManager struct {
	cfg    Config
	logger *core.Logger

	assets map[string]AssetInfo
	models map[string]*Model
	mutex  sync.RWMutex

	textures *loaders.TextureLoader
	modelsL  *loaders.ModelLoader
	shaders  *loaders.ShaderLoader

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
	wg       sync.WaitGroup
}

func NewAssetManager(cfg Config, logger *core.Logger) *AssetManager {
	if logger == nil {
		logger = core.DefaultLogger()
	}
	return &AssetManager{
		cfg:      cfg,
		logger:   logger,
		assets:   make(map[string]AssetInfo),
		models:   make(map[string]*Model),
		textures: &loaders.TextureLoader{MaxSize: cfg.MaxTextureSize},
		modelsL:  &loaders.ModelLoader{},
		shaders:  &loaders.ShaderLoader{Dir: cfg.ShaderDir},
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
	}
}

// Initialize indexes the asset root and, when enabled, starts watching it.
func (am *AssetManager) Initialize() error {
	if am.cfg.Root == "" {
		return nil
	}
	if _, err := os.Stat(am.cfg.Root); err != nil {
		am.logger.Warn("asset root %s not available: %s", am.cfg.Root, err)
		return nil
	}
	if !am.cfg.Watch {
		return am.watchRecursive(am.cfg.Root, false)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	am.fsnotify = w
	if err := am.watchRecursive(am.cfg.Root, false); err != nil {
		_ = w.Close()
		am.fsnotify = nil
		return err
	}
	am.wg.Add(1)
	go am.start()
	am.logger.Info("watching assets under %s", am.cfg.Root)
	return nil
}

// Changes delivers the cleaned path of every indexed file written on disk.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

// Asset returns the index entry of path.
func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

// Assets lists the indexed paths of type t.
func (am *AssetManager) Assets(t ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []string
	for p, info := range am.assets {
		if info.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// Load decodes a texture. It implements the catalogue texture source.
func (am *AssetManager) Load(path string) (*image.RGBA, error) {
	img, err := am.textures.Load(path)
	if err != nil {
		return nil, err
	}
	am.touch(path, ResourceTypeImage)
	return img, nil
}

// LoadModel returns the parsed model, reusing the parse of an unchanged file.
func (am *AssetManager) LoadModel(path string) (*Model, error) {
	key := filepath.Clean(path)
	am.mutex.RLock()
	m, ok := am.models[key]
	am.mutex.RUnlock()
	if ok {
		return m, nil
	}

	m, err := am.modelsL.Load(path)
	if err != nil {
		return nil, err
	}
	am.mutex.Lock()
	am.models[key] = m
	am.mutex.Unlock()
	am.touch(path, ResourceTypeModel)
	return m, nil
}

func (am *AssetManager) LoadHeightmap(path string, heightScale, gridSpacing, heightOffset float32) (*Terrain, error) {
	t, err := loaders.LoadHeightmap(path, heightScale, gridSpacing, heightOffset)
	if err != nil {
		return nil, err
	}
	am.touch(path, ResourceTypeImage)
	return t, nil
}

func (am *AssetManager) LoadShader(name string, stage loaders.ShaderStage) ([]uint32, error) {
	code, err := am.shaders.Load(name, stage)
	if err != nil {
		return nil, err
	}
	am.touch(am.shaders.Path(name, stage), ResourceTypeShader)
	return code, nil
}

func (am *AssetManager) touch(path string, t ResourceType) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[filepath.Clean(path)] = AssetInfo{Path: path, Type: t, LastLoaded: time.Now()}
}

// Shutdown stops the watcher.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	if am.fsnotify != nil {
		close(am.done)
		am.wg.Wait()
	}
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			am.logger.Error("asset watcher: %s", err)

		case <-am.done:
			_ = am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			_ = am.watchRecursive(e.Name, false)
		}
		return
	}
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.removeAsset(e.Name)
		return
	}
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return
	}
	assetType := am.handleFileEvent(e.Name)
	if assetType == ResourceTypeModel {
		am.mutex.Lock()
		delete(am.models, filepath.Clean(e.Name))
		delete(am.models, filepath.Clean(strings.TrimSuffix(e.Name, filepath.Ext(e.Name))+".obj"))
		am.mutex.Unlock()
	}
	if assetType == ResourceTypeNone {
		return
	}
	select {
	case am.changes <- filepath.Clean(e.Name):
	default:
		am.logger.Warn("asset change queue full, dropping %s", e.Name)
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes a created or modified file.
func (am *AssetManager) handleFileEvent(path string) ResourceType {
	assetType := determineAssetType(path)
	if assetType == ResourceTypeNone {
		return assetType
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[filepath.Clean(path)] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	return assetType
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, filepath.Clean(path))
	delete(am.models, filepath.Clean(path))
}

func determineAssetType(path string) ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".gif":
		return ResourceTypeImage
	case ".obj", ".mtl":
		return ResourceTypeModel
	case ".spv":
		return ResourceTypeShader
	default:
		return ResourceTypeNone
	}
}
