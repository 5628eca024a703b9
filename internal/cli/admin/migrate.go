package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/supportiq/internal/config"
	"github.com/cloo-solutions/supportiq/internal/database"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply all pending SQL migrations to SUPPORTIQ_DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	cmd.Flags().String("dir", database.DefaultMigrationsDir, "Directory containing migration files")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("SUPPORTIQ_DATABASE_URL is required")
	}

	version, err := database.Migrate(cfg.DatabaseURL, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Database at version %d\n", version)
	return nil
}
