package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roll-call",
	Short: "Face-recognition attendance for lectures",
	Long: `Roll-Call watches a lecture-hall camera, recognises enrolled students and
lecturers, and records who attended each session.

Identities are enrolled from a single face photo. A running session marks
students present as they are seen and assigns the first lecturer recognised.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
