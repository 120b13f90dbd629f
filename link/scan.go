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
package link

import "github.com/robhaswell/sbuscli/sbus"

// ScanFrames is a split function for a bufio.Scanner that returns each
// 25-byte window starting with the SBUS start byte and ending with the end
// byte. Bytes that cannot begin such a window are skipped, so a scanner
// resynchronises one byte at a time after noise or a partial frame.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := 0
	for ; i+sbus.FrameSize <= len(data); i++ {
		if data[i] == sbus.StartByte && data[i+sbus.FrameSize-1] == sbus.EndByte {
			return i + sbus.FrameSize, data[i : i+sbus.FrameSize], nil
		}
	}
	if atEOF {
		// a trailing partial frame is dropped
		return len(data), nil, nil
	}
	// i is the first offset not yet checked; skip ahead to the next
	// candidate start byte and wait for more data.
	for ; i < len(data); i++ {
		if data[i] == sbus.StartByte {
			break
		}
	}
	return i, nil, nil
}
