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
	"errors"
	"fmt"
)

var (
	// ErrInvalidFraming indicates the start or end marker is wrong. The
	// stream has to be resynchronised before the next decode.
	ErrInvalidFraming = errors.New("sbus: invalid frame markers")
	// ErrChannelOutOfRange matches any *ChannelOutOfRangeError.
	ErrChannelOutOfRange = errors.New("sbus: channel out of range")
	// ErrFrameLength indicates a buffer that is not FrameSize bytes long.
	ErrFrameLength = errors.New("sbus: wrong frame length")
)

// ChannelOutOfRangeError reports the first channel outside the codec bounds.
type ChannelOutOfRangeError struct {
	Index int
	Value uint16
	Min   uint16
	Max   uint16
}

// Error implements error.
func (e *ChannelOutOfRangeError) Error() string {
	return fmt.Sprintf("sbus: channel %d value %d outside [%d, %d]", e.Index, e.Value, e.Min, e.Max)
}

// Is lets errors.Is match ErrChannelOutOfRange.
func (e *ChannelOutOfRangeError) Is(target error) bool {
	return target == ErrChannelOutOfRange
}
