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

// Package metrics counts frames passing through the monitor and send
// commands and serves them to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robhaswell/sbuscli/sbus"
)

// Metrics contains the SBUS frame counters.
type Metrics struct {
	FramesDecoded  prometheus.Counter
	FramingErrors  prometheus.Counter
	RangeErrors    prometheus.Counter
	FramesSent     prometheus.Counter
	LostFrames     prometheus.Counter
	FailSafeFrames prometheus.Counter
	ResyncBytes    prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_frames_decoded_total",
			Help: "Total number of frames decoded successfully",
		}),
		FramingErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_framing_errors_total",
			Help: "Total number of frames rejected for bad start or end markers",
		}),
		RangeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_range_errors_total",
			Help: "Total number of frames with a channel outside the configured bounds",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_frames_sent_total",
			Help: "Total number of frames transmitted",
		}),
		LostFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_lost_frames_total",
			Help: "Total number of decoded frames with the lost frame flag set",
		}),
		FailSafeFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_failsafe_frames_total",
			Help: "Total number of decoded frames with the failsafe flag set",
		}),
		ResyncBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "sbus_resync_bytes_total",
			Help: "Total number of bytes skipped while resynchronising the stream",
		}),
	}
}

// ObserveDecode records the outcome of one decode call.
func (m *Metrics) ObserveDecode(f sbus.ChannelFrame, err error) {
	switch {
	case err == nil:
		m.FramesDecoded.Inc()
		if f.LostFrame {
			m.LostFrames.Inc()
		}
		if f.FailSafe {
			m.FailSafeFrames.Inc()
		}
	case errors.Is(err, sbus.ErrInvalidFraming):
		m.FramingErrors.Inc()
	case errors.Is(err, sbus.ErrChannelOutOfRange):
		m.RangeErrors.Inc()
	}
}

// Handler returns the /metrics handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
