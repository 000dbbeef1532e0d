package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the store until the gpu is in stock and add it to the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := wireApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			app.startServer()
			err = app.engine.Run(ctx)
			if errors.Is(err, context.Canceled) {
				app.bus.Log("info", "stopped", nil)
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&opts.interval, "interval", 5, "seconds between stock checks")
	cmd.Flags().BoolVar(&opts.test, "test", false, "notify when in stock without adding to cart")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "status server listen address, e.g. :8090 (empty disables)")
	return cmd
}
