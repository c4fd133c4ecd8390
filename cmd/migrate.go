package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Connect to DATABASE_URL and apply any pending schema migrations.

The serve command migrates on startup as well; this command is for
preparing a database ahead of a deployment.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrationLister is implemented by every store backend.
type migrationLister interface {
	MigrationsApplied(ctx context.Context) ([]string, error)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := loadStoreFromEnv(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	lister, ok := store.(migrationLister)
	if !ok {
		fmt.Println("Migrations applied")
		return nil
	}
	applied, err := lister.MigrationsApplied(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration history: %w", err)
	}
	fmt.Printf("Database is at migration %d:\n", len(applied))
	for _, m := range applied {
		fmt.Printf("  %s\n", m)
	}
	return nil
}
