package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cube-builder/internal/storage"
)

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage the rotating backup slots",
		Long: `Changes to the cube are copied into a fixed number of backup slots
(see [backup] capacity and min_interval in the config). The oldest slot is
overwritten first.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List backup slots, newest first",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				infos, err := c.app.session.Backups(cmd.Context())
				if err != nil {
					return err
				}
				printBackups(cmd.OutOrStdout(), infos)
				return nil
			},
		},
		&cobra.Command{
			Use:   "now",
			Short: "Snapshot the cube into the next slot immediately",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := c.app.session.Checkpoint(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d cards to slot %d\n", info.Cards, info.Slot)
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore <slot>",
			Short: "Replace the cube with a backup slot",
			Long:  "Replaces the cube with the slot's contents. Other slots are not changed.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entries, err := c.app.session.Restore(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d cards from slot %s\n", len(entries), args[0])
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) dbBackupCmd() *cobra.Command {
	var dir string
	var list bool

	cmd := &cobra.Command{
		Use:   "db-backup",
		Short: "Copy the whole database file and verify the copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = c.app.db.DefaultBackupDir()
			}
			w := cmd.OutOrStdout()

			if list {
				files, err := storage.ListBackupFiles(dir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(w, "No database copies in", dir)
				}
				for _, f := range files {
					fmt.Fprintf(w, "%s  %s  %d bytes\n", f.ModTime.Local().Format("2006-01-02 15:04:05"), f.Path, f.Size)
				}
				return nil
			}

			path, err := c.app.db.BackupFile(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Copied %s to %s\n", c.app.db.Path(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Destination directory (default: backups next to the database)")
	cmd.Flags().BoolVar(&list, "list", false, "List existing copies instead of making one")
	return cmd
}
