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
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robhaswell/sbuscli/link"
	"github.com/robhaswell/sbuscli/metrics"
	"github.com/robhaswell/sbuscli/sbus"
	"github.com/spf13/cobra"
)

var monitorFlags struct {
	raw   bool
	count int
}

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the frames received on a serial SBUS line",
	Args:  cobra.NoArgs,
	RunE:  monitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().BoolVar(&monitorFlags.raw, "raw", false, "print frames with out of range channels instead of dropping them")
	monitorCmd.Flags().IntVarP(&monitorFlags.count, "count", "n", 0, "stop after this many frames (0 runs until interrupted)")
}

// frameReader is satisfied by *link.Link.
type frameReader interface {
	ReadFrame() (sbus.WireFrame, error)
	Skipped() uint64
}

// Open the serial link and print every decoded frame until interrupted
func monitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	l, err := openLink()
	if err != nil {
		return err
	}
	defer l.Close()
	// unblock ReadFrame on interrupt
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	startMetrics(ctx, reg)

	return runMonitor(ctx, cmd.OutOrStdout(), l, cfg.NewCodec(), m)
}

func runMonitor(ctx context.Context, out io.Writer, r frameReader, codec sbus.Codec, m *metrics.Metrics) error {
	var skipped uint64
	for n := 0; monitorFlags.count == 0 || n < monitorFlags.count; {
		w, err := r.ReadFrame()
		if s := r.Skipped(); s > skipped {
			m.ResyncBytes.Add(float64(s - skipped))
			logger.Debug().Uint64("bytes", s-skipped).Msg("resynchronised")
			skipped = s
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, link.ErrReadTimeout) {
				logger.Warn().Msg("no frames within read timeout, waiting for receiver")
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var f sbus.ChannelFrame
		if monitorFlags.raw {
			f, err = codec.DecodeRaw(w)
		} else {
			f, err = codec.DecodeValidated(w)
		}
		m.ObserveDecode(f, err)
		if err != nil {
			logger.Warn().Err(err).Str("frame", w.String()).Msg("dropping frame")
			continue
		}
		n++

		if f.FailSafe || f.LostFrame {
			logger.Warn().Bool("lost_frame", f.LostFrame).Bool("fail_safe", f.FailSafe).Msg("receiver reports signal loss")
		}
		fmt.Fprintln(out, f.String())
	}
	return nil
}
