package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sampledlru/internal/config"
	"sampledlru/internal/logging"
)

// app carries what every subcommand shares once the root pre-run has loaded it.
type app struct {
	cfgFile string
	v       *viper.Viper
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "sampledlru",
		Short: "Bounded cache with power-of-two-choices eviction",
		Long: `sampledlru drives a fixed-capacity cache that approximates LRU by
sampling two resident entries on eviction and dropping the older one.

Use "demo" for a short walkthrough and "simulate" to compare its hit
ratio with an exact LRU on synthetic workloads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(a.cfgFile)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd, map[string]string{config.KeyLogLevel: "log-level"}); err != nil {
				return err
			}

			logger, err := logging.New(v.GetString(config.KeyLogLevel))
			if err != nil {
				return err
			}
			a.v, a.logger = v, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newDemoCmd(a))
	rootCmd.AddCommand(newSimulateCmd(a))
	return rootCmd
}

// bindFlags binds viper keys to the named flags of cmd, so a flag set on the
// command line wins over the config file and the environment.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keyToFlag map[string]string) error {
	for key, name := range keyToFlag {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("flag --%s is not defined on %s", name, cmd.Name())
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}
