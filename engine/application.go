package engine

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Name   string `toml:"name"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

type RendererConfig struct {
	// Debug enables the validation layers.
	Debug          bool       `toml:"debug"`
	FramesInFlight int        `toml:"frames_in_flight"`
	MSAA           int        `toml:"msaa"`
	VSync          bool       `toml:"vsync"`
	FOV            float32    `toml:"fov"`
	Near           float32    `toml:"near"`
	Far            float32    `toml:"far"`
	ClearColor     [4]float32 `toml:"clear_color"`
	LightPosition  [3]float32 `toml:"light_position"`
	ShaderDir      string     `toml:"shader_dir"`
}

type AssetsConfig struct {
	Root           string `toml:"root"`
	Watch          bool   `toml:"watch"`
	DefaultTexture string `toml:"default_texture"`
	MaxTextureSize int    `toml:"max_texture_size"`
}

type SceneConfig struct {
	// Startup is a scene file loaded once the renderer is up.
	Startup string `toml:"startup"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Logging  LoggingConfig  `toml:"logging"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Scene    SceneConfig    `toml:"scene"`
}

func DefaultConfig() ApplicationConfig {
	return ApplicationConfig{
		Window: WindowConfig{
			Name:   "Anima Editor",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			MSAA:           8,
			FOV:            70,
			Near:           0.1,
			Far:            1000,
			ClearColor:     [4]float32{0.2, 0.2, 0.2, 1},
			LightPosition:  [3]float32{1, 1, 10},
			ShaderDir:      "shaders",
		},
		Assets: AssetsConfig{
			Root:           "assets",
			Watch:          true,
			MaxTextureSize: 4096,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (ApplicationConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "decode config %s", path)
	}
	if err := cfg.validate(); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *ApplicationConfig) validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FramesInFlight < 1 {
		return errors.Newf("frames_in_flight must be at least 1, got %d", c.Renderer.FramesInFlight)
	}
	if c.Renderer.Far <= c.Renderer.Near {
		return errors.Newf("far plane %.3f must lie beyond near plane %.3f", c.Renderer.Far, c.Renderer.Near)
	}
	return nil
}

func (r RendererConfig) lightPosition() mgl32.Vec3 {
	return mgl32.Vec3(r.LightPosition)
}
