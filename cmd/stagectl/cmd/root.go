package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/config"
	"github.com/keyframestudio/stage/internal/pkg/logger"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	physicsURL string
	verbose    bool
	outputPath string
)

var rootCmd = &cobra.Command{
	Use:   "stagectl",
	Short: "stagectl - bake physics and preview camera shots",
	Long: `stagectl runs the stage timeline engine locally.

Commands:
  bake      - Bake simulation bodies into keyframe tracks
  evaluate  - Evaluate the active camera shot at one scene time
  sample    - Sample camera shots on a frame grid
  validate  - Check a shot file and optionally print it normalized

Example:
  stagectl bake --sim abc --body ball=rapier://sim-abc/body-1 --out ./animations
  stagectl evaluate --shots shots.yaml --time 2.5 --world world.yaml
  stagectl sample --shots shots.yaml --fps 30 --animations ./animations`,
	Version:       Version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		_, err := logger.Init(logger.Config{Level: level, Format: "console", Output: os.Stderr})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&physicsURL, "physics-url", "", "Physics service URL (or set PHYSICS_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Write results to this file instead of stdout")

	rootCmd.AddCommand(bakeCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(validateCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the shared configuration and applies CLI overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if physicsURL != "" {
		cfg.Physics.URL = physicsURL
	}
	return cfg, nil
}

// output opens the result destination
func output() (io.WriteCloser, error) {
	if outputPath == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outputPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeJSON(v any) error {
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func logVerbose(msg string, fields ...zap.Field) {
	logger.Log.Debug(msg, fields...)
}
