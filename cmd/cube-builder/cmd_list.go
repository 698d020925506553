package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the cube",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printEntries(cmd.OutOrStdout(), c.app.session.Entries())
			if meta, ok := c.app.session.Meta(cmd.Context()); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Last saved %s\n", meta.Time().Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func (c *cli) qtyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qty <id> <quantity>",
		Short: "Set the quantity of a card (clamped to 1-99)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("quantity %q is not a number", args[1])
			}
			entry, err := c.app.session.SetQuantity(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %d\n", entry.Name, entry.Qty)
			return nil
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a card from the cube",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := c.app.session.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRemoved(cmd.OutOrStdout(), args[0], removed)
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every card (backups are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("clear removes all %d cards; rerun with --yes", len(c.app.session.Entries()))
			}
			if err := c.app.session.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cube cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm")
	return cmd
}
