package main

import (
	"fmt"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tag, _ := cmd.Flags().GetString("tag")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			info, err := store.Backup(ctx, tag)
			if err != nil {
				return err
			}

			writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Backup written to %s (%d bytes)", info.Path, info.Size)))
			return nil
		},
	}

	cmd.Flags().String("tag", "manual", "Prefix for the backup file name")
	cmd.AddCommand(backupListCmd())

	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List database snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			backups, err := store.ListBackups()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				writeLine(out, cli.FormatInfo("No backups in "+store.BackupDir()))
				return nil
			}
			for _, b := range backups {
				writeLine(out, fmt.Sprintf("%s  %8d  %s", b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.Size, b.Path))
			}
			return nil
		},
	}
}
