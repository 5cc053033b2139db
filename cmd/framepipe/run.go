package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/app"
	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/config"
	"github.com/gogpu/framepipe/event"
	"github.com/gogpu/framepipe/platform/glfwwin"
	"github.com/gogpu/framepipe/snapshot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open a window and render until it is closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		stop, err := startProfile()
		if err != nil {
			return err
		}
		defer stop()
		return runWindow(cfg)
	},
}

func runWindow(cfg *config.Config) error {
	dev, err := backend.Open(cfg.Backend, backend.Options{Latency: cfg.GPULatency})
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}

	reg := event.NewRegistry()
	win, err := glfwwin.New(glfwwin.Options{
		Title:    cfg.Title,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Registry: reg,
	})
	if err != nil {
		dev.Destroy()
		return err
	}
	defer win.Close()

	width, height := win.FramebufferSize()
	p, err := app.NewPipeline(dev, app.PipelineOptions{
		Width:        width,
		Height:       height,
		Window:       win,
		SyncInterval: cfg.SyncInterval,
		FenceTimeout: cfg.FenceTimeout,
		Kernel:       cfg.Kernel,
	})
	if err != nil {
		return err
	}
	defer closeLogged(p)

	format, _ := snapshot.ParseFormat(cfg.SnapshotFormat)
	pause, quit, snap := cfg.Keys()
	ctx := app.New(p.Options(app.Options{
		Title:          cfg.Title,
		Width:          width,
		Height:         height,
		PauseKey:       pause,
		QuitKey:        quit,
		SnapshotKey:    snap,
		StatusInterval: cfg.StatusInterval,
		Display:        win,
		Snapshots:      p.Snapshots(cfg.SnapshotDir, format),
	}))
	win.SetHandler(ctx)

	framepipe.Logger().Info("framepipe: running",
		"backend", cfg.Backend,
		"kernel", p.Kernels.Name(),
		"width", width,
		"height", height)
	if err := ctx.Run(win); err != nil {
		framepipe.Logger().Error("framepipe: stopped",
			"frames", ctx.Frames(),
			"fence", p.Context.Fence().LastSignaled(),
			"error", err)
		return err
	}
	return nil
}
