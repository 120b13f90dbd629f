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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/robhaswell/sbuscli/sbus"
	"github.com/spf13/cobra"
)

var decodeRaw bool

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode an SBUS frame given as hex and print its channels and flags",
	Long: `Decode an SBUS frame given as hex and print its channels and flags.

The frame may be split over several arguments and may contain spaces or
colons, so the output of hexdump-like tools can be pasted in directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: decodeFrame,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().BoolVar(&decodeRaw, "raw", false, "only check the frame markers, not the channel range")
}

func decodeFrame(cmd *cobra.Command, args []string) error {
	s := strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(strings.Join(args, ""))
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	w, err := sbus.ParseWireFrame(b)
	if err != nil {
		return err
	}

	codec := cfg.NewCodec()
	var f sbus.ChannelFrame
	if decodeRaw {
		f, err = codec.DecodeRaw(w)
	} else {
		f, err = codec.DecodeValidated(w)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), f.String())
	return nil
}
