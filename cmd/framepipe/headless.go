package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/framepipe/app"
	"github.com/gogpu/framepipe/backend/simgpu"
	"github.com/gogpu/framepipe/config"
	"github.com/gogpu/framepipe/snapshot"
)

var (
	headlessTicks int
	headlessOut   string
)

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Render a number of frames on the simulated GPU and print a summary",
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
		return runHeadless(cmd.OutOrStdout(), cfg, headlessTicks, headlessOut)
	},
}

func init() {
	headlessCmd.Flags().IntVarP(&headlessTicks, "ticks", "n", 60, "number of ticks to run")
	headlessCmd.Flags().StringVarP(&headlessOut, "out", "o", "", "write the last frame to this file")
}

// runHeadless drives the pipeline without a window. Elapsed time advances by
// one 60 Hz frame per tick.
func runHeadless(w io.Writer, cfg *config.Config, ticks int, out string) error {
	if ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", ticks)
	}
	dev := simgpu.New(simgpu.Options{Latency: cfg.GPULatency})
	win := simgpu.NewWindow(uint32(cfg.Width), uint32(cfg.Height))

	p, err := app.NewPipeline(dev, app.PipelineOptions{
		Width:        uint32(cfg.Width),
		Height:       uint32(cfg.Height),
		Window:       win,
		SyncInterval: cfg.SyncInterval,
		FenceTimeout: cfg.FenceTimeout,
		Kernel:       cfg.Kernel,
	})
	if err != nil {
		return err
	}
	defer closeLogged(p)

	clock := time.Unix(0, 0)
	ctx := app.New(p.Options(app.Options{
		Title:  cfg.Title,
		Width:  uint32(cfg.Width),
		Height: uint32(cfg.Height),
		Now:    func() time.Time { return clock },
	}))
	for range ticks {
		ctx.Tick()
		if ctx.Done() {
			return ctx.Err()
		}
		clock = clock.Add(time.Second / 60)
	}
	if _, err := p.Context.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "kernel:   %s\n", p.Kernels.Name())
	fmt.Fprintf(w, "frames:   %d\n", ctx.Frames())
	fmt.Fprintf(w, "fence:    %d\n", p.Context.Fence().LastSignaled())
	fmt.Fprintf(w, "buffer:   %d\n", p.Surface.Current())
	fmt.Fprintf(w, "gpu work: %d completed\n", p.Context.Fence().Completed())

	if out == "" {
		return nil
	}
	img, err := snapshot.Capture(dev, func() error { return nil }, p.Surface.Target())
	if err != nil {
		return err
	}
	if err := snapshot.Save(out, img); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", out)
	return nil
}
