package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the gpu-sniper command line with ctx as the base context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "gpu-sniper",
		Short:         "Watch the NVIDIA store and add a GPU to the cart as soon as it is in stock",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yaml", "path to config.yaml (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&opts.gpu, "gpu", "", "gpu family: 2060S, 3080 or 3090")
	rootCmd.PersistentFlags().StringVar(&opts.locale, "locale", "", "store locale, e.g. en_us or de_at")
	rootCmd.PersistentFlags().StringVar(&opts.catalog, "catalog", "", "product id catalog json (default: built in)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newProductsCmd(opts),
		newLocalesCmd(),
	)
	return rootCmd
}
