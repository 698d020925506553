package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/cube-builder/internal/resolve"
	"github.com/ramonehamilton/cube-builder/internal/suggest"
)

func (c *cli) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "search <name>",
		Aliases: []string{"preview"},
		Short:   "Look up a card by English or Italian name and preview it",
		Example: `  cube-builder search Lightning Bolt
  cube-builder search Fulmine`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.app.resolver.Resolve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.Kind == resolve.Ambiguous {
				printCandidates(w, out.Candidates)
				return nil
			}
			printPreview(w, out)
			return nil
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	var qty, pick int

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Resolve a card name and add it to the cube",
		Long: `Resolves the name like search does and adds the card. Adding a card
that is already in the cube increases its quantity (at most 99).

When an Italian name matches several cards, the candidates are listed and
--pick selects one by its number.`,
		Example: `  cube-builder add --qty 2 Counterspell
  cube-builder add Ombra --pick 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			out, err := c.app.resolver.Resolve(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if out.Kind == resolve.Ambiguous {
				if pick < 1 || pick > len(out.Candidates) {
					printCandidates(w, out.Candidates)
					return fmt.Errorf("name is ambiguous; rerun with --pick 1-%d", len(out.Candidates))
				}
				out, err = c.app.resolver.Pick(ctx, out.Candidates[pick-1])
				if err != nil {
					return err
				}
			}

			entry, err := c.app.session.Add(ctx, out, qty)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s (now %d)\n", okStyle.Render("Added"), entry.Name, entry.Qty)
			return nil
		},
	}

	cmd.Flags().IntVarP(&qty, "qty", "n", 1, "Copies to add (1-99)")
	cmd.Flags().IntVar(&pick, "pick", 0, "Candidate number when the name is ambiguous")
	return cmd
}

func (c *cli) suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "List card names starting with a prefix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make(chan suggest.Result, 1)
			s := suggest.New(c.app.client, func(r suggest.Result) { results <- r }, suggest.Options{
				Debounce:  time.Millisecond,
				MinPrefix: c.cfg.Search.MinPrefix,
				Logger:    c.logger,
			})
			defer s.Close()

			s.Request(strings.Join(args, " "))
			r, err := waitResult(cmd.Context(), results)
			if err != nil {
				return err
			}
			if r.Err != nil {
				return r.Err
			}
			for _, name := range r.Names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func waitResult(ctx context.Context, results <-chan suggest.Result) (suggest.Result, error) {
	select {
	case r := <-results:
		return r, nil
	case <-ctx.Done():
		return suggest.Result{}, ctx.Err()
	}
}
