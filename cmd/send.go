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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robhaswell/sbuscli/metrics"
	"github.com/robhaswell/sbuscli/sbus"
	"github.com/spf13/cobra"
)

var sendCount int

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Transmit the channel set from the config file over a serial SBUS line",
	Long: `Transmit the channel set from the [send] section of the config file over a
serial SBUS line at send.rate_hz, until interrupted or --count frames are sent.`,
	Args: cobra.NoArgs,
	RunE: send,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntVarP(&sendCount, "count", "n", 0, "stop after this many frames (0 runs until interrupted)")
}

// frameWriter is satisfied by *link.Link.
type frameWriter interface {
	WriteFrame(sbus.WireFrame) error
}

func send(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	codec := cfg.NewCodec()
	f := cfg.Send.Frame(midpoint(codec))
	if err := codec.Validate(&f); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	l, err := openLink()
	if err != nil {
		return err
	}
	defer l.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	startMetrics(ctx, reg)

	logger.Info().Uints16("channels", f.Channels[:]).Dur("interval", cfg.Send.Interval()).Msg("sending")
	sent, err := runSend(ctx, l, codec.Encode(&f), cfg.Send.Interval(), m)
	logger.Info().Int("frames", sent).Msg("stopped sending")
	return err
}

func runSend(ctx context.Context, w frameWriter, frame sbus.WireFrame, interval time.Duration, m *metrics.Metrics) (int, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sent := 0; ; {
		if err := w.WriteFrame(frame); err != nil {
			return sent, fmt.Errorf("write frame: %w", err)
		}
		m.FramesSent.Inc()
		sent++
		if sendCount > 0 && sent >= sendCount {
			return sent, nil
		}
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
	}
}
