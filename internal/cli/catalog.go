package cli

import (
	"fmt"
	"text/tabwriter"

	"balance-game-service/internal/catalog"
	"github.com/spf13/cobra"
)

// NewCatalogCmd prints the built-in categories and their question counts.
func NewCatalogCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List built-in question categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			cats := cat.PlayableCategories()
			if all {
				cats = cat.Categories()
			}
			counts := cat.CountByCategory()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQUESTIONS")
			for _, c := range cats {
				fmt.Fprintf(tw, "%s\t%s %s\t%d\n", c.ID, c.Emoji, c.Name, counts[c.ID])
			}
			fmt.Fprintf(tw, "\t\t%d total\n", len(cat.All()))
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include the catch-all category")
	return cmd
}
