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

// Codec converts between ChannelFrame and WireFrame. The bounds are only
// used for range validation; Encode and DecodeRaw accept any 11-bit value.
// A Codec is immutable and may be shared between goroutines.
type Codec struct {
	min uint16
	max uint16
}

// New returns a codec validating channels against [min, max].
func New(min, max uint16) Codec {
	return Codec{min: min, max: max}
}

// Min returns the lower channel bound.
func (c Codec) Min() uint16 { return c.min }

// Max returns the upper channel bound.
func (c Codec) Max() uint16 { return c.max }

// channelOffset returns the byte index and bit shift of channel i.
func channelOffset(i int) (int, uint) {
	bit := 8 + ChannelBits*i
	return bit >> 3, uint(bit & 7)
}

// Encode packs f into a wire frame. Channel values are truncated to 11 bits.
func (c Codec) Encode(f *ChannelFrame) WireFrame {
	var w WireFrame
	w[0] = StartByte
	for i, v := range f.Channels {
		idx, shift := channelOffset(i)
		x := uint32(v&ChannelMax) << shift
		w[idx] |= byte(x)
		w[idx+1] |= byte(x >> 8)
		// 11 bits starting above bit 5 spill into a third byte
		if shift > 5 {
			w[idx+2] |= byte(x >> 16)
		}
	}
	w[flagsIndex] = f.flags()
	w[FrameSize-1] = EndByte
	return w
}

// DecodeRaw checks the frame markers and unpacks the channels and flags
// without range validation.
func (c Codec) DecodeRaw(w WireFrame) (ChannelFrame, error) {
	var f ChannelFrame
	if err := checkFraming(&w); err != nil {
		return f, err
	}
	for i := range f.Channels {
		idx, shift := channelOffset(i)
		x := uint32(w[idx]) | uint32(w[idx+1])<<8
		if shift > 5 {
			x |= uint32(w[idx+2]) << 16
		}
		f.Channels[i] = uint16(x>>shift) & ChannelMax
	}
	f.setFlags(w[flagsIndex] & flagsMask)
	return f, nil
}

// DecodeValidated is DecodeRaw followed by Validate. On error the returned
// frame is always the zero value.
func (c Codec) DecodeValidated(w WireFrame) (ChannelFrame, error) {
	f, err := c.DecodeRaw(w)
	if err != nil {
		return ChannelFrame{}, err
	}
	if err := c.Validate(&f); err != nil {
		return ChannelFrame{}, err
	}
	return f, nil
}

// Validate reports the first channel, in index order, outside the codec
// bounds.
func (c Codec) Validate(f *ChannelFrame) error {
	for i, v := range f.Channels {
		if v < c.min || v > c.max {
			return &ChannelOutOfRangeError{Index: i, Value: v, Min: c.min, Max: c.max}
		}
	}
	return nil
}

func checkFraming(w *WireFrame) error {
	if w[0] != StartByte || w[FrameSize-1] != EndByte {
		return ErrInvalidFraming
	}
	return nil
}
