package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gpu_sniper/internal/locale"
)

func newLocalesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List known store locales and their currency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LOCALE\tSTORE LOCALE\tCURRENCY")
			for _, l := range locale.Supported() {
				store := locale.Resolve(l)
				fmt.Fprintf(w, "%s\t%s\t%s\n", l, store, locale.Currency(store))
			}
			return w.Flush()
		},
	}
}
