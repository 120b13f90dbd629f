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
package sbus

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// FrameSize is the length of an SBUS frame on the wire.
	FrameSize = 25
	// NumChannels is the number of proportional channels in a frame.
	NumChannels = 16
	// ChannelBits is the width of one packed channel.
	ChannelBits = 11
	// ChannelMax is the largest value a channel can carry.
	ChannelMax uint16 = 1<<ChannelBits - 1

	// StartByte is the first byte of every frame.
	StartByte byte = 0x0F
	// EndByte is the last byte of every frame.
	EndByte byte = 0x00
)

// Bits of the flags byte. The high nibble is reserved and always zero.
const (
	// FlagChannel17 is digital channel 17.
	FlagChannel17 byte = 1 << 0
	// FlagChannel18 is digital channel 18.
	FlagChannel18 byte = 1 << 1
	// FlagLostFrame is set by the receiver when it dropped a frame.
	FlagLostFrame byte = 1 << 2
	// FlagFailSafe is set while the receiver is in failsafe.
	FlagFailSafe byte = 1 << 3
)

const (
	flagsIndex = 23
	flagsMask  = FlagChannel17 | FlagChannel18 | FlagLostFrame | FlagFailSafe
)

// ChannelFrame is the decoded content of one SBUS frame.
type ChannelFrame struct {
	Channels  [NumChannels]uint16
	Channel17 bool
	Channel18 bool
	LostFrame bool
	FailSafe  bool
}

// String formats the frame for logs and the command line.
func (f ChannelFrame) String() string {
	var sb strings.Builder
	for i, v := range f.Channels {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	fmt.Fprintf(&sb, " ch17=%t ch18=%t lost=%t failsafe=%t",
		f.Channel17, f.Channel18, f.LostFrame, f.FailSafe)
	return sb.String()
}

func (f *ChannelFrame) flags() byte {
	var b byte
	if f.Channel17 {
		b |= FlagChannel17
	}
	if f.Channel18 {
		b |= FlagChannel18
	}
	if f.LostFrame {
		b |= FlagLostFrame
	}
	if f.FailSafe {
		b |= FlagFailSafe
	}
	return b
}

func (f *ChannelFrame) setFlags(b byte) {
	f.Channel17 = b&FlagChannel17 != 0
	f.Channel18 = b&FlagChannel18 != 0
	f.LostFrame = b&FlagLostFrame != 0
	f.FailSafe = b&FlagFailSafe != 0
}

// WireFrame is one encoded SBUS frame.
type WireFrame [FrameSize]byte

// ParseWireFrame copies b into a WireFrame. Only the length is checked,
// framing is checked when the frame is decoded.
func ParseWireFrame(b []byte) (WireFrame, error) {
	var w WireFrame
	if len(b) != FrameSize {
		return w, fmt.Errorf("%w: got %d bytes", ErrFrameLength, len(b))
	}
	copy(w[:], b)
	return w, nil
}

// Bytes returns a copy of the frame as a slice.
func (w WireFrame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, w[:])
	return b
}

// String returns the frame as lower case hex.
func (w WireFrame) String() string {
	return hex.EncodeToString(w[:])
}

// WriteTo writes the encoded bytes.
func (w WireFrame) WriteTo(wr io.Writer) (int64, error) {
	n, err := wr.Write(w[:])
	return int64(n), err
}
