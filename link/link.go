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

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/robhaswell/sbuscli/sbus"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the SBUS line rate.
	DefaultBaudRate = 100000
)

var (
	// ErrReadTimeout is returned when the port read timeout expires before
	// a complete frame arrives.
	ErrReadTimeout = errors.New("link: read timeout")
	// ErrNoPorts is returned by LastPort when no serial port is present.
	ErrNoPorts = errors.New("link: no serial ports found")
)

// Options configures a serial SBUS link.
type Options struct {
	PortName string
	// BaudRate defaults to DefaultBaudRate. Inverted-UART adapters running
	// at a non-standard rate can override it.
	BaudRate int
	// ReadTimeout of zero blocks until data arrives.
	ReadTimeout time.Duration
}

// Link reads and writes SBUS frames over a byte stream. Frames read are
// aligned with ScanFrames; a Link is not safe for concurrent reads.
type Link struct {
	rw      io.ReadWriteCloser
	buf     []byte
	chunk   [4 * sbus.FrameSize]byte
	skipped atomic.Uint64
}

// Open opens the serial port in SBUS mode: 8 data bits, even parity and
// two stop bits.
func Open(opts Options) (*Link, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.TwoStopBits,
	}
	p, err := serial.Open(opts.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", opts.PortName, err)
	}
	var rw io.ReadWriteCloser = p
	if opts.ReadTimeout > 0 {
		if err := p.SetReadTimeout(opts.ReadTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("link: set read timeout: %w", err)
		}
		rw = timeoutPort{p}
	}
	return New(rw), nil
}

// New returns a Link over any byte stream, e.g. a TCP connection to a
// simulator.
func New(rw io.ReadWriteCloser) *Link {
	return &Link{rw: rw, buf: make([]byte, 0, 8*sbus.FrameSize)}
}

// next takes the next frame out of the buffered bytes, dropping what
// ScanFrames skips.
func (l *Link) next(atEOF bool) (sbus.WireFrame, bool) {
	for len(l.buf) > 0 {
		advance, token, _ := ScanFrames(l.buf, atEOF)
		if skipped := advance - len(token); skipped > 0 {
			l.skipped.Add(uint64(skipped))
		}
		var w sbus.WireFrame
		found := token != nil
		if found {
			copy(w[:], token)
		}
		l.buf = append(l.buf[:0], l.buf[advance:]...)
		if found {
			return w, true
		}
		if advance == 0 {
			break
		}
	}
	return sbus.WireFrame{}, false
}

// ReadFrame returns the next frame-aligned window from the stream. It
// returns io.EOF at the end of the stream. ErrReadTimeout keeps any partial
// frame buffered, so ReadFrame can be called again once the line is back.
func (l *Link) ReadFrame() (sbus.WireFrame, error) {
	for {
		if w, ok := l.next(false); ok {
			return w, nil
		}
		n, err := l.rw.Read(l.chunk[:])
		l.buf = append(l.buf, l.chunk[:n]...)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if w, ok := l.next(true); ok {
				return w, nil
			}
		}
		return sbus.WireFrame{}, err
	}
}

// WriteFrame writes one frame.
func (l *Link) WriteFrame(w sbus.WireFrame) error {
	_, err := w.WriteTo(l.rw)
	return err
}

// Skipped returns the number of bytes discarded while resynchronising.
func (l *Link) Skipped() uint64 {
	return l.skipped.Load()
}

// Close closes the underlying stream. A blocked ReadFrame returns.
func (l *Link) Close() error {
	return l.rw.Close()
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// LastPort returns the most recently enumerated serial port, which is
// usually the adapter that was plugged in last.
func LastPort() (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPorts
	}
	return ports[len(ports)-1], nil
}

// timeoutPort turns the (0, nil) read go.bug.st/serial returns on timeout
// into ErrReadTimeout.
type timeoutPort struct {
	serial.Port
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, ErrReadTimeout
	}
	return n, err
}
