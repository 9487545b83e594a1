/*
anima-editor opens a window, loads the configured scene and renders it with
Vulkan until the window closes or a termination signal arrives.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-editor/engine"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/testbed"
)

func main() {
	configPath := flag.String("config", "anima.toml", "path to the editor configuration")
	sceneDir := flag.String("scenes", "scenes", "directory new scenes are saved to")
	flag.Parse()

	if err := run(*configPath, *sceneDir); err != nil {
		core.LogFatal("%+v", err)
	}
}

func run(configPath, sceneDir string) error {
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := core.NewLogger(core.LoggerOptions{Level: cfg.Logging.Level, Prefix: cfg.Logging.Prefix})
	core.SetDefaultLogger(logger)

	e := engine.New(cfg, logger)
	if err := e.Initialize(); err != nil {
		return errors.Wrap(err, "initialize engine")
	}

	editor := testbed.NewEditor(e, sceneDir, logger)
	editor.Attach(e.Bus())
	editor.Populate()

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("received %s, shutting down", sig)
		e.RequestQuit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		logger.Warn("shutdown: %s", err)
	}
	return runErr
}
