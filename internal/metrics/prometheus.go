package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the analysis pipeline
type Metrics struct {
	ChunksReceived        prometheus.Counter
	ChunksRejectedSilence prometheus.Counter
	ChunksInvalidFormat   prometheus.Counter

	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	IrrelevantTranscripts prometheus.Counter

	ClassificationRequests prometheus.Counter
	ClassificationFailures prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_chunks_received_total",
			Help: "Total number of audio chunks received",
		}),
		ChunksRejectedSilence: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_chunks_rejected_silence_total",
			Help: "Chunks dropped by the silence gate before any provider call",
		}),
		ChunksInvalidFormat: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_chunks_invalid_format_total",
			Help: "Chunks rejected for a malformed WAV container",
		}),
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_transcription_requests_total",
			Help: "Total number of transcription provider calls",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_transcription_failures_total",
			Help: "Transcription provider calls that failed",
		}),
		IrrelevantTranscripts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_irrelevant_transcripts_total",
			Help: "Transcripts discarded as captioning noise or too short",
		}),
		ClassificationRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_classification_requests_total",
			Help: "Total number of classification provider calls",
		}),
		ClassificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_classification_failures_total",
			Help: "Classification provider calls that failed",
		}),
	}
}
