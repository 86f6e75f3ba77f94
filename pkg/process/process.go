// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process sets up process-wide configuration: a config file, flag
// binding through viper, and logging.
package process

import (
	"flag"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Execute runs a *cobra.Command with process-wide configuration: flags are
// overridable from a yaml config file and NOOBAA_* environment variables.
func Execute(cmd *cobra.Command) {
	cfgFile := flag.String("config", "", "config file")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	cobra.OnInitialize(func() {
		viper.BindPFlags(cmd.Flags())
		viper.SetEnvPrefix("noobaa")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
		if *cfgFile != "" {
			viper.SetConfigFile(*cfgFile)
			viper.ReadInConfig()
		}
		// flags given on the command line win; the rest take their value
		// from the environment or the config file when one is set
		for _, c := range append([]*cobra.Command{cmd}, cmd.Commands()...) {
			c.Flags().VisitAll(func(f *pflag.Flag) {
				if !f.Changed && viper.IsSet(f.Name) {
					Must(f.Value.Set(viper.GetString(f.Name)))
				}
			})
		}
	})

	Must(cmd.Execute())
}

// Must logs and exits on error.
func Must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// NewLogger builds the process logger. Development mode enables console
// encoding and debug level.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
