// stagectl bakes physics trajectories and previews camera shots from the
// command line.
package main

import (
	"os"

	"github.com/keyframestudio/stage/cmd/stagectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
