//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// shaderPrograms are compiled to shaders/<program>.<stage>.spv.
var shaderPrograms = []string{"shader", "phong"}

// Compiles every GLSL program under shaders/ to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders and builds the editor binary into bin/.
func (Build) Editor() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "anima-editor"), "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	for _, program := range shaderPrograms {
		for _, stage := range []string{"vert", "frag"} {
			src := filepath.Join("shaders", fmt.Sprintf("%s.%s", program, stage))
			out := filepath.Join("shaders", fmt.Sprintf("%s.%s.spv", program, stage))
			if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
				return err
			}
		}
	}
	return nil
}
