package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/app"
	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/logger"
	"github.com/keyframestudio/stage/internal/service"
)

var (
	bakeScene       string
	bakeSimulation  string
	bakeBodies      map[string]string
	bakeFPS         int
	bakeDuration    float64
	bakeRecording   string
	bakeOutDir      string
	bakeConcurrency int
)

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Bake simulation bodies into keyframe tracks",
	Long: `Fetch each body's trajectory from the physics service (or a recording)
and resample it onto a fixed frame grid.

Bodies that fail are reported in the status map; the command exits non-zero
when any body failed.

Examples:
  stagectl bake --sim abc --body ball=rapier://sim-abc/body-1 --body box=body-2
  stagectl bake --sim abc --body ball=1 --fps 30 --duration 4 --out ./animations
  stagectl bake --sim abc --body ball=1 --recorded capture.json`,
	Args: cobra.NoArgs,
	RunE: runBake,
}

func init() {
	bakeCmd.Flags().StringVar(&bakeScene, "scene", "local", "Scene id the tracks belong to")
	bakeCmd.Flags().StringVar(&bakeSimulation, "sim", "", "Simulation id")
	bakeCmd.Flags().StringToStringVar(&bakeBodies, "body", nil, "Object binding as object=binding (repeatable)")
	bakeCmd.Flags().IntVar(&bakeFPS, "fps", 0, "Output frame rate (default from config)")
	bakeCmd.Flags().Float64Var(&bakeDuration, "duration", 0, "Seconds to bake (default 600 steps)")
	bakeCmd.Flags().StringVar(&bakeRecording, "recorded", "", "Replay trajectories from a recording file")
	bakeCmd.Flags().StringVar(&bakeOutDir, "out", "", "Write each track to <dir>/<object>.json")
	bakeCmd.Flags().IntVar(&bakeConcurrency, "concurrency", 0, "Concurrent fetches (default from config)")
	_ = bakeCmd.MarkFlagRequired("sim")
	_ = bakeCmd.MarkFlagRequired("body")
}

func runBake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if bakeRecording != "" {
		cfg.Physics.RecordingPath = bakeRecording
	}

	source, _, err := app.NewSource(cfg.Physics, logger.Log)
	if err != nil {
		return err
	}

	bc := service.BakeConfig{
		DefaultFPS:   cfg.Bake.DefaultFPS,
		Concurrency:  cfg.Bake.Concurrency,
		FetchTimeout: cfg.Bake.FetchTimeout,
		Timeout:      cfg.Bake.Timeout,
	}
	if bakeConcurrency > 0 {
		bc.Concurrency = bakeConcurrency
	}
	bakes := service.NewBakeService(logger.Log, source, nil, bc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := &domain.BakeRequest{
		SceneID:      bakeScene,
		SimulationID: bakeSimulation,
		Bodies:       bakeBodies,
		FPS:          bakeFPS,
		Duration:     bakeDuration,
	}
	logVerbose("baking", zap.String("simulation_id", req.SimulationID), zap.Int("bodies", len(req.Bodies)))

	res, bakeErr := bakes.Bake(ctx, req)
	if res == nil {
		return bakeErr
	}

	if bakeOutDir != "" {
		written, err := writeAnimations(bakeOutDir, res.Animations)
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Fprintln(cmd.ErrOrStderr(), "wrote", p)
		}
		if err := writeJSON(res.Status); err != nil {
			return err
		}
	} else if err := writeJSON(res); err != nil {
		return err
	}

	if bakeErr != nil {
		return bakeErr
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d bodies failed: %v", len(failed), len(res.Status), failed)
	}
	return nil
}
