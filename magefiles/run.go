//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the editor with anima.toml.
func (Run) Editor() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run editor...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "anima.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
