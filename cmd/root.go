/*
Copyright © 2023 Rob Haswell <rob@haswell.co.uk>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robhaswell/sbuscli/config"
	"github.com/robhaswell/sbuscli/link"
	"github.com/robhaswell/sbuscli/logging"
	"github.com/robhaswell/sbuscli/metrics"
	"github.com/robhaswell/sbuscli/sbus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	portName string

	// set by loadConfig before any command runs
	cfg    config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sbuscli",
	Short: "A command-line interface to encode, decode and stream SBUS frames",
	Long: `This application packs and unpacks the 25 byte SBUS frames used by RC receivers
and flight controllers.

The 'encode' and 'decode' commands work on hex strings and need no hardware:

  sbuscli encode 992 992 172 992
  sbuscli decode 0fe0034... --raw

The 'monitor' command reads frames from a serial SBUS line and prints the decoded
channels. The 'send' command transmits the channel set from the config file at
a fixed rate. Both use the most recently connected serial port unless --port or
the config file names one.
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&portName, "port", "", "serial port, overrides the config file")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if cfgFile != "" {
		var err error
		if c, err = config.Load(cfgFile); err != nil {
			return err
		}
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if portName != "" {
		c.Serial.Port = portName
	}
	l, err := logging.New(cmd.Root().Name(), c.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

// midpoint is the value sent for channels that were not given.
func midpoint(c sbus.Codec) uint16 {
	return (c.Min() + c.Max()) / 2
}

// openLink opens the configured serial port, falling back to the most
// recently connected one.
func openLink() (*link.Link, error) {
	opts := cfg.LinkOptions()
	if opts.PortName == "" {
		p, err := link.LastPort()
		if err != nil {
			return nil, err
		}
		opts.PortName = p
	}
	l, err := link.Open(opts)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("port", opts.PortName).Int("baud", opts.BaudRate).Msg("serial link open")
	return l, nil
}

// startMetrics serves reg in the background when a metrics address is
// configured.
func startMetrics(ctx context.Context, reg *prometheus.Registry) {
	addr := cfg.Metrics.Addr
	if addr == "" {
		return
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := metrics.Serve(ctx, addr, reg); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
