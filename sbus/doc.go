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

// Package sbus encodes and decodes SBUS frames.
//
// An SBUS frame is 25 bytes long: a 0x0F start byte, sixteen 11-bit
// proportional channels packed LSB first into bytes 1 to 22, a flags byte
// and a 0x00 end byte.
//
//	byte 0      start marker 0x0F
//	bytes 1-22  channel i at bit offset 8+11*i
//	byte 23     bit0 ch17, bit1 ch18, bit2 lost frame, bit3 failsafe
//	byte 24     end marker 0x00
//
// The codec does no I/O. Reading frames off a serial line and keeping the
// stream aligned to frame boundaries is done by package link.
package sbus
