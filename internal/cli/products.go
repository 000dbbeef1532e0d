package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gpu_sniper/internal/catalog"
	"gpu_sniper/internal/engine"
)

func newProductsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "Print the products a run would poll for the configured gpu and locale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Buyer.GPU) == "" {
				return errors.New("buyer.gpu is required (use --gpu)")
			}
			eng := engine.New(engine.Options{Catalog: catalog.NewSource(cfg.Buyer.CatalogPath), Buyer: cfg.Buyer})
			family, _, targets, err := eng.Targets()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", family.DisplayName())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT ID\tLOCALE\tCURRENCY")
			for _, t := range targets {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ProductID, t.Locale, t.Currency)
			}
			return w.Flush()
		},
	}
}
