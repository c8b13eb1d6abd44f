package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/logger"
	"github.com/keyframestudio/stage/internal/service"
	"github.com/keyframestudio/stage/internal/trajectory"
)

var (
	sampleShots      string
	sampleFPS        int
	sampleWorld      string
	sampleAnimations string
	sampleKeyframes  bool
	sampleOutDir     string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample camera shots on a frame grid",
	Long: `Evaluate every shot in the file at 1/fps steps over its active interval.

With --keyframes each shot becomes a keyframe track with shot-local times
and finite-difference velocities, the same layout bake produces.

Examples:
  stagectl sample --shots shots.yaml --fps 30 --animations ./animations
  stagectl sample --shots shots.yaml --keyframes --out ./cameras`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

func init() {
	sampleCmd.Flags().StringVar(&sampleShots, "shots", "", "YAML shot file")
	sampleCmd.Flags().IntVar(&sampleFPS, "fps", domain.DefaultFPS, "Sampling frame rate")
	sampleCmd.Flags().StringVar(&sampleWorld, "world", "", "YAML world snapshot")
	sampleCmd.Flags().StringVar(&sampleAnimations, "animations", "", "Directory of baked tracks")
	sampleCmd.Flags().BoolVar(&sampleKeyframes, "keyframes", false, "Emit keyframe tracks instead of frames")
	sampleCmd.Flags().StringVar(&sampleOutDir, "out", "", "With --keyframes, write each track to <dir>/<shot>.json")
	_ = sampleCmd.MarkFlagRequired("shots")
}

func runSample(cmd *cobra.Command, args []string) error {
	if sampleFPS <= 0 || sampleFPS > domain.MaxFPS {
		return fmt.Errorf("fps must be in (0, %d]", domain.MaxFPS)
	}
	shots, err := loadShots(sampleShots)
	if err != nil {
		return err
	}
	world, err := loadWorld(sampleWorld)
	if err != nil {
		return err
	}
	anims, err := loadAnimations(sampleAnimations)
	if err != nil {
		return err
	}
	worldAt := trajectory.NewScene(anims, world).At
	cameras := service.NewCameraService(logger.Log)

	if !sampleKeyframes {
		out := make(map[string]any, len(shots))
		for _, shot := range shots {
			frames, err := cameras.Sample(shot, worldAt, sampleFPS)
			if err != nil {
				return fmt.Errorf("shot %s: %w", shot.ID, err)
			}
			out[shot.ID] = frames
		}
		return writeJSON(out)
	}

	tracks := make(map[string]*domain.BakedAnimation, len(shots))
	for _, shot := range shots {
		anim, err := cameras.BakeShot(shot, worldAt, sampleFPS)
		if err != nil {
			return fmt.Errorf("shot %s: %w", shot.ID, err)
		}
		tracks[shot.ID] = anim
	}
	if sampleOutDir == "" {
		return writeJSON(tracks)
	}
	written, err := writeAnimations(sampleOutDir, tracks)
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Fprintln(cmd.ErrOrStderr(), "wrote", p)
	}
	return nil
}
