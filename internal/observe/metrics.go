// Package observe provides Prometheus metrics for the recorder and chat shell.
package observe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mockinterview"

// Metrics holds all Prometheus instruments for the app.
type Metrics struct {
	registry *prometheus.Registry

	// Recorder
	RecordingsStarted prometheus.Counter
	RecordingsFailed  *prometheus.CounterVec
	RecordingsDone    *prometheus.CounterVec

	// Transcripts
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	TranscriptsLate    prometheus.Counter

	// Audio
	AudioChunksSent prometheus.Counter
	AudioBytesSent  prometheus.Counter

	// Chat
	ChatFramesReceived prometheus.Counter
	ChatFramesDropped  prometheus.Counter
	ChatMessagesSent   prometheus.Counter
}

// NewMetrics registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Recording attempts that acquired the microphone",
		}),
		RecordingsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_failed_total",
			Help:      "Recording attempts that failed before capture started",
		}, []string{"reason"}),
		RecordingsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorders_closed_total",
			Help:      "Recorder modals closed, by outcome",
		}, []string{"outcome"}),

		TranscriptsPartial: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Partial transcript events applied",
		}),
		TranscriptsFinal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Final transcript events appended to history",
		}),
		TranscriptsLate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_late_total",
			Help:      "Transcript events dropped because the draft was already taken",
		}),

		AudioChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Audio chunks forwarded to the transcription socket",
		}),
		AudioBytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Audio bytes forwarded to the transcription socket",
		}),

		ChatFramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_frames_received_total",
			Help:      "Frames received from the interviewer socket",
		}),
		ChatFramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_frames_dropped_total",
			Help:      "Interviewer frames dropped for a missing or unknown author tag",
		}),
		ChatMessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_sent_total",
			Help:      "Candidate messages sent to the interviewer",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
