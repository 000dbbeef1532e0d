package cli

import (
	"github.com/spf13/cobra"

	"gpu_sniper/internal/config"
)

type options struct {
	configPath string
	gpu        string
	locale     string
	catalog    string
	interval   int
	test       bool
	addr       string
}

// loadConfig reads the config file and applies the flags the user set. The
// result is not validated.
func (o *options) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("gpu") {
		cfg.Buyer.GPU = o.gpu
	}
	if flags.Changed("locale") {
		cfg.Buyer.Locale = o.locale
	}
	if flags.Changed("catalog") {
		cfg.Buyer.CatalogPath = o.catalog
	}
	if flags.Changed("interval") {
		cfg.Buyer.IntervalSeconds = o.interval
		cfg.Buyer.IntervalMs = 0
	}
	if flags.Changed("test") {
		cfg.Buyer.Test = o.test
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	return cfg, nil
}
