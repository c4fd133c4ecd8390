package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// kindFlag reads --kind and checks it names an identity kind.
func kindFlag(cmd *cobra.Command) (database.Kind, error) {
	kind := database.Kind(mustGetString(cmd, "kind"))
	if !kind.Valid() {
		return "", fmt.Errorf("--kind must be %s or %s, got %q", database.KindStudent, database.KindLecturer, kind)
	}
	return kind, nil
}
