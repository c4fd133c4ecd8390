package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("roll-call %s\n", Version)
		fmt.Printf("  Commit: %s\n", CommitSHA)
		fmt.Printf("  Built:  %s\n", BuildDate)
		fmt.Printf("  Stores: %s\n", strings.Join(database.Backends(), ", "))
		fmt.Printf("  Cameras: %s\n", strings.Join(cameraBackendNames(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
