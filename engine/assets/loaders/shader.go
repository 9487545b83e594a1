package loaders

import (
	"fmt"
	"path/filepath"
)

type ShaderStage string

const (
	ShaderStageVertex   ShaderStage = "vert"
	ShaderStageFragment ShaderStage = "frag"
)

// ShaderLoader resolves compiled shaders named <name>.<stage>.spv inside Dir.
type ShaderLoader struct {
	Dir string
}

func (sl *ShaderLoader) Path(name string, stage ShaderStage) string {
	return filepath.Join(sl.Dir, fmt.Sprintf("%s.%s.spv", name, stage))
}

func (sl *ShaderLoader) Load(name string, stage ShaderStage) ([]uint32, error) {
	return LoadSPIRV(sl.Path(name, stage))
}
