// Command framepipe runs the frame pipeline in a window, or headless against
// the simulated GPU.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/config"

	// Backends register themselves with the backend registry.
	_ "github.com/gogpu/framepipe/backend/halgpu"
	_ "github.com/gogpu/framepipe/backend/simgpu"
)

var (
	cfgFile     string
	profileMode string
	v           = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "framepipe",
	Short:         "GPU frame submission pipeline",
	Long:          `framepipe renders a compute kernel into an off-screen image every frame and presents it through a double-buffered swapchain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("framepipe v%s\n", framepipe.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/framepipe/framepipe.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "write a profile to the working directory (cpu, mem or trace)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "GPU backend (hal or sim, default picks the best available)")
	rootCmd.PersistentFlags().String("kernel", "", "initial kernel")

	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = v.BindPFlag("kernel", rootCmd.PersistentFlags().Lookup("kernel"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(headlessCmd)
	rootCmd.AddCommand(kernelsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		return nil, fmt.Errorf("invalid config: %d error(s)", len(errs))
	}
	framepipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))
	return cfg, nil
}

// startProfile starts the profiler selected by --profile. The returned stop
// function is never nil.
func startProfile() (func(), error) {
	var mode func(*profile.Profile)
	switch profileMode {
	case "":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "trace":
		mode = profile.TraceProfile
	default:
		return nil, fmt.Errorf("unknown profile mode %q", profileMode)
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}

// closeLogged closes c and logs a failure; deferred shutdown has no caller
// left to return it to.
func closeLogged(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		framepipe.Logger().Error("framepipe: shutdown", "error", err)
	}
}
