package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	validateShots      string
	validateNormalize  bool
	validateWorld      string
	validateAnimations string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a shot file",
	Long: `Decode every shot in the file and report the first problem.

With --world or --animations every object a shot follows must exist in the
snapshot or among the baked tracks.

With --normalize the shots are printed back as YAML with every default
filled in.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateShots, "shots", "", "YAML shot file")
	validateCmd.Flags().BoolVar(&validateNormalize, "normalize", false, "Print the normalized shot file")
	validateCmd.Flags().StringVar(&validateWorld, "world", "", "YAML world snapshot to resolve focus objects against")
	validateCmd.Flags().StringVar(&validateAnimations, "animations", "", "Directory of baked tracks to resolve focus objects against")
	_ = validateCmd.MarkFlagRequired("shots")
}

func runValidate(cmd *cobra.Command, args []string) error {
	shots, err := loadShots(validateShots)
	if err != nil {
		return err
	}
	if validateWorld != "" || validateAnimations != "" {
		world, err := loadWorld(validateWorld)
		if err != nil {
			return err
		}
		anims, err := loadAnimations(validateAnimations)
		if err != nil {
			return err
		}
		if err := checkReferences(shots, world, anims); err != nil {
			return err
		}
	}
	if !validateNormalize {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d shots ok\n", validateShots, len(shots))
		return nil
	}

	data, err := writeShots(shots)
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write(data)
	return err
}
