package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
name = "Test"
width = 640
height = 480

[renderer]
frames_in_flight = 3
msaa = 4
vsync = true
clear_color = [0.0, 0.0, 0.0, 1.0]

[scene]
startup = "scenes/demo.json"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Test", cfg.Window.Name)
	assert.Equal(t, uint32(640), cfg.Window.Width)
	assert.Equal(t, uint32(100), cfg.Window.X)
	assert.Equal(t, 3, cfg.Renderer.FramesInFlight)
	assert.Equal(t, 4, cfg.Renderer.MSAA)
	assert.True(t, cfg.Renderer.VSync)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cfg.Renderer.ClearColor)
	assert.Equal(t, float32(70), cfg.Renderer.FOV)
	assert.Equal(t, "scenes/demo.json", cfg.Scene.Startup)
}

func TestLoadConfigRejectsMalformedFiles(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[window\nname = 1"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "[window]\ncolour = \"red\"\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "[renderer]\nnear = 10.0\nfar = 1.0\n"))
	assert.Error(t, err)
}

func TestLightPosition(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, float32(10), cfg.Renderer.lightPosition().Z())
}
