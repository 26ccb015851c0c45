package main

import (
	"fmt"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run any pending database migrations to update the schema to the latest version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			status, _ := cmd.Flags().GetBool("status")

			dbPath := config.DatabasePath(viper.GetString("database.path"))
			store, err := storage.NewSQLiteStorage(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if status {
				version, err := store.SchemaVersion(ctx)
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				writeLine(out, fmt.Sprintf("Database: %s", dbPath))
				writeLine(out, fmt.Sprintf("Schema version: %d (latest %d)", version, storage.ExpectedSchemaVersion))
				if version < storage.ExpectedSchemaVersion {
					writeLine(out, cli.FormatWarning("Migrations pending. Run 'cardwise migrate'."))
				}
				return nil
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			writeLine(out, cli.FormatSuccess("Database migrations completed successfully"))
			return nil
		},
	}

	cmd.Flags().Bool("status", false, "Show the schema version without migrating")

	return cmd
}
