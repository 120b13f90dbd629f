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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robhaswell/sbuscli/link"
	"github.com/robhaswell/sbuscli/logging"
	"github.com/robhaswell/sbuscli/metrics"
	"github.com/robhaswell/sbuscli/sbus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	cfgFile, logLevel, portName = "", "", ""
	encodeFlags.channel17, encodeFlags.channel18 = false, false
	encodeFlags.lostFrame, encodeFlags.failSafe, encodeFlags.raw = false, false, false
	decodeRaw = false
	monitorFlags.raw, monitorFlags.count = false, 0
	sendCount = 0
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(logging.EnvLogLevel, "off")
	resetFlags()
	t.Cleanup(resetFlags)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEncodeCommand(t *testing.T) {
	out, err := execute(t, "encode", "--ch17", "--failsafe", "172", "1811", "992")
	require.NoError(t, err)

	f := sbus.ChannelFrame{Channel17: true, FailSafe: true}
	for i := range f.Channels {
		f.Channels[i] = 991
	}
	f.Channels[0], f.Channels[1], f.Channels[2] = 172, 1811, 992
	expect := sbus.New(172, 1811).Encode(&f)
	require.Equal(t, expect.String(), out)
}

func TestEncodeCommandRange(t *testing.T) {
	_, err := execute(t, "encode", "100")
	require.ErrorIs(t, err, sbus.ErrChannelOutOfRange)

	out, err := execute(t, "encode", "--raw", "100")
	require.NoError(t, err)
	require.Len(t, out, 2*sbus.FrameSize)

	_, err = execute(t, "encode", "2048")
	require.Error(t, err)
	require.Contains(t, err.Error(), "channel 1")
}

func TestDecodeCommand(t *testing.T) {
	f := sbus.ChannelFrame{LostFrame: true}
	for i := range f.Channels {
		f.Channels[i] = uint16(200 + 100*i)
	}
	w := sbus.New(0, sbus.ChannelMax).Encode(&f)

	out, err := execute(t, "decode", w.String())
	require.NoError(t, err)
	require.Equal(t, f.String(), out)

	hexStr := w.String()
	out, err = execute(t, "decode", hexStr[:10], hexStr[10:20]+" "+hexStr[20:])
	require.NoError(t, err)
	require.Equal(t, f.String(), out)
}

func TestDecodeCommandErrors(t *testing.T) {
	var f sbus.ChannelFrame
	f.Channels[5] = sbus.ChannelMax
	w := sbus.New(0, sbus.ChannelMax).Encode(&f)

	_, err := execute(t, "decode", w.String())
	var rangeErr *sbus.ChannelOutOfRangeError
	require.True(t, errors.As(err, &rangeErr))
	require.Zero(t, rangeErr.Index)

	out, err := execute(t, "decode", "--raw", w.String())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "0 0 0 0 0 2047 "))

	bad := w
	bad[24] = 0x01
	_, err = execute(t, "decode", "--raw", bad.String())
	require.ErrorIs(t, err, sbus.ErrInvalidFraming)

	_, err = execute(t, "decode", "0f00")
	require.ErrorIs(t, err, sbus.ErrFrameLength)

	_, err = execute(t, "decode", "zz")
	require.Error(t, err)
}

func TestCommandsReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sbuscli.toml")
	require.NoError(t, os.WriteFile(path, []byte("[codec]\nchannel_min = 0\nchannel_max = 100\n"), 0644))

	out, err := execute(t, "--config", path, "encode", "100")
	require.NoError(t, err)

	_, err = execute(t, "--config", path, "decode", out)
	require.NoError(t, err)

	_, err = execute(t, "--config", path, "encode", "101")
	require.ErrorIs(t, err, sbus.ErrChannelOutOfRange)

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "encode")
	require.Error(t, err)
}

type nopCloser struct{ io.ReadWriter }

func (nopCloser) Close() error { return nil }

func TestRunMonitor(t *testing.T) {
	resetFlags()
	logger = zerolog.Nop()
	codec := sbus.New(172, 1811)

	good := sbus.ChannelFrame{}
	for i := range good.Channels {
		good.Channels[i] = 992
	}
	failsafe := good
	failsafe.FailSafe = true
	outOfRange := good
	outOfRange.Channels[7] = 10

	var stream bytes.Buffer
	stream.Write([]byte{0x55, 0xaa})
	for _, f := range []sbus.ChannelFrame{good, outOfRange, failsafe} {
		w := codec.Encode(&f)
		stream.Write(w[:])
	}

	m := metrics.New(prometheus.NewRegistry())
	var out bytes.Buffer
	err := runMonitor(context.Background(), &out, link.New(nopCloser{&stream}), codec, m)
	require.NoError(t, err)

	require.Equal(t, good.String()+"\n"+failsafe.String()+"\n", out.String())
	require.Equal(t, 2.0, testutil.ToFloat64(m.FramesDecoded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RangeErrors))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FailSafeFrames))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ResyncBytes))
}

func TestRunMonitorCountAndRaw(t *testing.T) {
	resetFlags()
	logger = zerolog.Nop()
	monitorFlags.raw, monitorFlags.count = true, 2
	codec := sbus.New(172, 1811)

	var stream bytes.Buffer
	for i := 0; i < 4; i++ {
		var f sbus.ChannelFrame
		f.Channels[0] = uint16(i)
		w := codec.Encode(&f)
		stream.Write(w[:])
	}

	m := metrics.New(prometheus.NewRegistry())
	var out bytes.Buffer
	err := runMonitor(context.Background(), &out, link.New(nopCloser{&stream}), codec, m)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out.String(), "\n"))
	require.Equal(t, 2.0, testutil.ToFloat64(m.FramesDecoded))
}

type recordingWriter struct {
	frames []sbus.WireFrame
	err    error
}

func (r *recordingWriter) WriteFrame(w sbus.WireFrame) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, w)
	return nil
}

func TestRunSend(t *testing.T) {
	resetFlags()
	sendCount = 3
	f := sbus.ChannelFrame{Channel18: true}
	frame := sbus.New(0, sbus.ChannelMax).Encode(&f)

	m := metrics.New(prometheus.NewRegistry())
	w := &recordingWriter{}
	sent, err := runSend(context.Background(), w, frame, time.Millisecond, m)
	require.NoError(t, err)
	require.Equal(t, 3, sent)
	require.Equal(t, []sbus.WireFrame{frame, frame, frame}, w.frames)
	require.Equal(t, 3.0, testutil.ToFloat64(m.FramesSent))
}

func TestRunSendStops(t *testing.T) {
	resetFlags()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := metrics.New(prometheus.NewRegistry())
	sent, err := runSend(ctx, &recordingWriter{}, sbus.WireFrame{}, time.Hour, m)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	failing := &recordingWriter{err: io.ErrClosedPipe}
	_, err = runSend(context.Background(), failing, sbus.WireFrame{}, time.Millisecond, m)
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

// quietThenFrames times out on its first Read, then streams its data.
type quietThenFrames struct {
	quiet bool
	data  *bytes.Buffer
}

func (q *quietThenFrames) Read(p []byte) (int, error) {
	if !q.quiet {
		q.quiet = true
		return 0, link.ErrReadTimeout
	}
	return q.data.Read(p)
}

func (q *quietThenFrames) Write(p []byte) (int, error) { return len(p), nil }
func (q *quietThenFrames) Close() error                { return nil }

func TestRunMonitorWaitsOutReadTimeout(t *testing.T) {
	resetFlags()
	logger = zerolog.Nop()
	codec := sbus.New(172, 1811)

	var stream bytes.Buffer
	var f sbus.ChannelFrame
	for i := range f.Channels {
		f.Channels[i] = 992
	}
	for i := 0; i < 3; i++ {
		w := codec.Encode(&f)
		stream.Write(w[:])
	}

	m := metrics.New(prometheus.NewRegistry())
	var out bytes.Buffer
	err := runMonitor(context.Background(), &out, link.New(&quietThenFrames{data: &stream}), codec, m)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat(f.String()+"\n", 3), out.String())
	require.Equal(t, 3.0, testutil.ToFloat64(m.FramesDecoded))
}

func TestRunMonitorStopsOnCancelDuringTimeout(t *testing.T) {
	resetFlags()
	logger = zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := metrics.New(prometheus.NewRegistry())
	r := link.New(nopCloser{readWriter{readerFunc(func(p []byte) (int, error) { return 0, link.ErrReadTimeout })}})
	err := runMonitor(ctx, io.Discard, r, sbus.New(172, 1811), m)
	require.NoError(t, err)
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

type readWriter struct{ io.Reader }

func (readWriter) Write(p []byte) (int, error) { return len(p), nil }
