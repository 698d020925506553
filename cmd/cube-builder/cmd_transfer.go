package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cube-builder/internal/cube"
)

func (c *cli) exportCmd() *cobra.Command {
	var output, passphrase string

	cmd := &cobra.Command{
		Use:   "export <csv|json>",
		Short: "Export the cube as CSV or a JSON snapshot",
		Long: `csv writes one row per card sorted by name. json writes a snapshot that
import reads back; with --passphrase the snapshot is encrypted.`,
		Example: `  cube-builder export csv -o cube.csv
  cube-builder export json --passphrase secret -o cube.json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"csv", "json"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			switch args[0] {
			case "csv":
				if passphrase != "" {
					return fmt.Errorf("--passphrase only applies to json exports")
				}
				data, err = c.app.session.ExportCSV()
			case "json":
				data, err = c.app.session.ExportJSON(passphrase)
			default:
				return fmt.Errorf("unknown export format %q (use csv or json)", args[0])
			}
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d cards to %s\n", len(c.app.session.Entries()), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Encrypt the json snapshot")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var (
		modeFlag   string
		passphrase string
	)

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a JSON snapshot, replacing the cube or merging into it",
		Long: `Accepts a snapshot written by export json or a bare JSON array of
entries. Rows without a name are skipped and quantities are clamped to 1-99.
--mode replace (the default) swaps the cube for the snapshot; --mode merge
adds quantities to matching cards and appends the rest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := cube.ParseImportMode(modeFlag)
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			summary, err := c.app.session.Import(cmd.Context(), data, mode, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows (%s): %d cards, %d total\n",
				summary.Rows, mode, summary.Cards, summary.TotalQty)
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "replace", "How to install the snapshot: replace or merge")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase for an encrypted snapshot")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return data, nil
}
