package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyframestudio/stage/internal/camera"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	"github.com/keyframestudio/stage/internal/pkg/logger"
	"github.com/keyframestudio/stage/internal/service"
	"github.com/keyframestudio/stage/internal/trajectory"
)

var (
	evalShots      string
	evalTime       float64
	evalWorld      string
	evalAnimations string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the active camera shot at one scene time",
	Long: `Find the first shot active at --time and print its camera transform.

The world comes from a YAML snapshot, baked tracks, or both; tracks win
over the snapshot for objects present in both.

Examples:
  stagectl evaluate --shots shots.yaml --time 2.5 --world world.yaml
  stagectl evaluate --shots shots.yaml --time 2.5 --animations ./animations`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalShots, "shots", "", "YAML shot file")
	evaluateCmd.Flags().Float64Var(&evalTime, "time", 0, "Scene time in seconds")
	evaluateCmd.Flags().StringVar(&evalWorld, "world", "", "YAML world snapshot")
	evaluateCmd.Flags().StringVar(&evalAnimations, "animations", "", "Directory of baked tracks")
	_ = evaluateCmd.MarkFlagRequired("shots")
}

// evaluateOutput is printed by evaluate
type evaluateOutput struct {
	ShotID string  `json:"shot_id,omitempty"`
	Time   float64 `json:"time"`
	*service.CameraEvaluation
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if !curve.FiniteScalar(evalTime) {
		return fmt.Errorf("--time must be a finite number of seconds, got %v", evalTime)
	}
	shots, err := loadShots(evalShots)
	if err != nil {
		return err
	}
	world, err := loadWorld(evalWorld)
	if err != nil {
		return err
	}
	anims, err := loadAnimations(evalAnimations)
	if err != nil {
		return err
	}

	shot, _, ok := camera.ActiveShot(shots, evalTime)
	if !ok {
		return writeJSON(evaluateOutput{Time: evalTime, CameraEvaluation: &service.CameraEvaluation{}})
	}

	cameras := service.NewCameraService(logger.Log)
	out, err := cameras.Evaluate(shot, trajectory.NewScene(anims, world).At(evalTime), evalTime, camera.ChaseState{})
	if err != nil {
		return err
	}
	return writeJSON(evaluateOutput{ShotID: shot.ID, Time: evalTime, CameraEvaluation: out})
}
