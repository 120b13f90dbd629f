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
	"fmt"
	"strconv"

	"github.com/robhaswell/sbuscli/sbus"
	"github.com/spf13/cobra"
)

var encodeFlags struct {
	channel17 bool
	channel18 bool
	lostFrame bool
	failSafe  bool
	raw       bool
}

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode [channel...]",
	Short: "Encode up to 16 channel values into an SBUS frame printed as hex",
	Long: `Encode up to 16 channel values into an SBUS frame printed as hex.

Channels that are not given are set to the midpoint of the configured bounds.
Values are checked against the bounds unless --raw is set.`,
	Args: cobra.MaximumNArgs(sbus.NumChannels),
	RunE: encodeFrame,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().BoolVar(&encodeFlags.channel17, "ch17", false, "set digital channel 17")
	encodeCmd.Flags().BoolVar(&encodeFlags.channel18, "ch18", false, "set digital channel 18")
	encodeCmd.Flags().BoolVar(&encodeFlags.lostFrame, "lost", false, "set the lost frame flag")
	encodeCmd.Flags().BoolVar(&encodeFlags.failSafe, "failsafe", false, "set the failsafe flag")
	encodeCmd.Flags().BoolVar(&encodeFlags.raw, "raw", false, "skip the channel range check")
}

func encodeFrame(cmd *cobra.Command, args []string) error {
	codec := cfg.NewCodec()

	f := sbus.ChannelFrame{
		Channel17: encodeFlags.channel17,
		Channel18: encodeFlags.channel18,
		LostFrame: encodeFlags.lostFrame,
		FailSafe:  encodeFlags.failSafe,
	}
	mid := midpoint(codec)
	for i := range f.Channels {
		f.Channels[i] = mid
	}
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, sbus.ChannelBits)
		if err != nil {
			return fmt.Errorf("channel %d: %w", i+1, err)
		}
		f.Channels[i] = uint16(v)
	}

	if !encodeFlags.raw {
		if err := codec.Validate(&f); err != nil {
			return err
		}
	}
	w := codec.Encode(&f)
	logger.Debug().Uints16("channels", f.Channels[:]).Msg("encoded frame")
	fmt.Fprintln(cmd.OutOrStdout(), w.String())
	return nil
}
