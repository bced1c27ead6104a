package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fraudwatch/server/domain/entities"
	"github.com/fraudwatch/server/domain/repositories"
	"github.com/fraudwatch/server/internal/audio"
	"github.com/fraudwatch/server/internal/metrics"
	"github.com/fraudwatch/server/internal/risk"
	"github.com/fraudwatch/server/internal/scratch"
)

// Usecase errors surfaced to the transport layer.
var (
	// ErrEmptyText is returned when the text path receives nothing to
	// classify.
	ErrEmptyText = errors.New("texto vacío")
	// ErrClassification wraps classifier provider failures. These are
	// user-visible and never retried beyond the adapter's own policy.
	ErrClassification = errors.New("classification provider failed")
)

// Known provenance labels.
const (
	OriginManual      = "manual"
	OriginAudioStream = "audio_stream"
)

// irrelevantTranscripts is the denylist of captioning boilerplate the
// transcription model hallucinates on near-silent audio.
var irrelevantTranscripts = []string{
	"Subtítulos realizados por la comunidad de Amara.org",
	"Subtitulado por la comunidad de Amara.org",
	"¡Gracias por ver el vídeo!",
	"No olvides suscribirte al canal",
	"Gracias por ver",
	"Gracias por ver el video",
	"¡Suscríbete y activa notificaciones!",
}

// Options carries the orchestrator's tunable policy.
type Options struct {
	Language        string
	ProviderTimeout time.Duration
	MinChunkBytes   int
	MinRMS          float64
}

// SilenceDecision records why a normalized chunk was accepted or dropped.
// It is a pure function of the normalized audio; thresholds are
// configuration, not dynamic state.
type SilenceDecision struct {
	Accept    bool
	ByteSize  int
	RMSEnergy float64
}

// ChunkResult is the orchestrator's answer for one audio chunk.
type ChunkResult struct {
	SessionID  string
	Transcript string
	// Result is the rendered verdict, nil when classification was
	// skipped (silence, irrelevance, empty merge, provider failure).
	Result     *string
	ScratchRef string
}

// StreamResult is the single message emitted per completed audio stream.
// RiskScore is always populated via the parser's fallback cascade.
type StreamResult struct {
	SessionID  string
	Transcript string
	Result     string
	RiskScore  int
}

// AnalysisService sequences normalize -> filter -> transcribe ->
// accumulate -> classify -> parse for each inbound chunk, and exposes the
// single-shot text-only path.
type AnalysisService struct {
	stt        repositories.SpeechToText
	classifier repositories.Classifier
	analyses   repositories.AnalysisRepository
	scratch    *scratch.Store
	sessions   *SessionStore
	metrics    *metrics.Metrics
	opts       Options
	logger     *zap.Logger
}

// NewAnalysisService creates the classification orchestrator. metrics may
// be nil (tests).
func NewAnalysisService(
	stt repositories.SpeechToText,
	classifier repositories.Classifier,
	analyses repositories.AnalysisRepository,
	scratchStore *scratch.Store,
	sessions *SessionStore,
	m *metrics.Metrics,
	opts Options,
	logger *zap.Logger,
) *AnalysisService {
	if opts.ProviderTimeout == 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	if opts.MinChunkBytes == 0 {
		opts.MinChunkBytes = 2000
	}
	if opts.MinRMS == 0 {
		opts.MinRMS = 10
	}
	if opts.Language == "" {
		opts.Language = "es-ES"
	}
	return &AnalysisService{
		stt:        stt,
		classifier: classifier,
		analyses:   analyses,
		scratch:    scratchStore,
		sessions:   sessions,
		metrics:    m,
		opts:       opts,
		logger:     logger,
	}
}

// ShouldAccept evaluates the silence gate against normalized audio.
func (s *AnalysisService) ShouldAccept(normalized []byte) SilenceDecision {
	decision := SilenceDecision{ByteSize: len(normalized)}
	samples, _, _, err := audio.Decode(normalized)
	if err == nil {
		decision.RMSEnergy = audio.RMS(samples)
	}
	decision.Accept = decision.ByteSize >= s.opts.MinChunkBytes && decision.RMSEnergy >= s.opts.MinRMS
	return decision
}

// IsIrrelevantTranscript reports whether a transcript is captioning noise
// rather than meaningful speech.
func IsIrrelevantTranscript(text string) bool {
	t := strings.TrimSpace(text)
	for _, phrase := range irrelevantTranscripts {
		if strings.EqualFold(t, phrase) {
			return true
		}
	}
	return len(strings.Fields(t)) <= 3
}

// HandleChunk runs the full audio pipeline for one chunk. accumulated is
// caller-supplied running context; when non-empty it takes precedence
// over anything the server accumulated for the session.
func (s *AnalysisService) HandleChunk(ctx context.Context, raw []byte, sessionID, accumulated, origin string, userID int64) (*ChunkResult, error) {
	s.countChunkReceived()

	if err := audio.ValidateHeader(raw); err != nil {
		s.countInvalidFormat()
		return nil, err
	}

	normalized, err := audio.Normalize(raw)
	if err != nil {
		s.countInvalidFormat()
		return nil, err
	}

	ref, cleanup, err := s.scratch.Put("stream_16k", normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to stage normalized audio: %w", err)
	}
	defer cleanup()

	result := &ChunkResult{SessionID: sessionID, ScratchRef: ref}

	decision := s.ShouldAccept(normalized)
	if !decision.Accept {
		// Primary cost control: no provider calls for silence.
		s.countSilenceReject()
		s.logger.Debug("Chunk rejected by silence gate",
			zap.Int("bytes", decision.ByteSize),
			zap.Float64("rms", decision.RMSEnergy))
		return result, nil
	}

	transcript, transcriptionFailed := s.transcribe(ctx, normalized)
	if !transcriptionFailed && IsIrrelevantTranscript(transcript) {
		s.countIrrelevant()
		s.logger.Debug("Irrelevant transcript discarded", zap.String("transcript", transcript))
		// Forced to empty rather than dropped so downstream can tell
		// "ran but empty" from "never ran".
		transcript = ""
	}
	result.Transcript = transcript

	if transcript != "" {
		s.sessions.Append(sessionID, transcript)
	}

	textToClassify := s.merge(sessionID, accumulated, transcript)

	if textToClassify != "" && !transcriptionFailed {
		rendering, err := s.classify(ctx, textToClassify)
		if err != nil {
			return nil, err
		}
		result.Result = &rendering
	}

	if err := s.record(ctx, userID, textToClassify, result.Result, sessionID, origin); err != nil {
		return nil, err
	}

	return result, nil
}

// HandleText classifies caller-supplied text directly, skipping every
// audio stage.
func (s *AnalysisService) HandleText(ctx context.Context, text, sessionID, origin string, userID int64) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if origin == "" {
		origin = OriginManual
	}

	rendering, err := s.classify(ctx, text)
	if err != nil {
		return "", err
	}

	if err := s.record(ctx, userID, text, &rendering, sessionID, origin); err != nil {
		return "", err
	}
	return rendering, nil
}

// Transcribe normalizes the audio and returns the transcript without
// classifying or persisting anything.
func (s *AnalysisService) Transcribe(ctx context.Context, raw []byte) (string, error) {
	normalized, err := audio.Normalize(raw)
	if err != nil {
		return "", err
	}

	s.countTranscriptionRequest()
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	transcript, err := s.stt.TranscribeAudio(ctx, normalized, s.audioConfig())
	if err != nil {
		s.countTranscriptionFailure()
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return transcript, nil
}

// AnalyzeStream runs the chunk pipeline over a completed audio stream and
// guarantees a numeric risk score in the answer.
func (s *AnalysisService) AnalyzeStream(ctx context.Context, raw []byte, sessionID string, userID int64) (*StreamResult, error) {
	chunk, err := s.HandleChunk(ctx, raw, sessionID, "", OriginAudioStream, userID)
	if err != nil {
		return nil, err
	}

	var rendering string
	if chunk.Result != nil {
		rendering = *chunk.Result
	}
	verdict := risk.Parse(rendering)

	return &StreamResult{
		SessionID:  sessionID,
		Transcript: chunk.Transcript,
		Result:     rendering,
		RiskScore:  verdict.RiskScore,
	}, nil
}

// transcribe calls the provider under a bounded timeout. Failures produce
// an empty transcript plus an explicit failed flag; the failure text is
// never forwarded into the classification path.
func (s *AnalysisService) transcribe(ctx context.Context, normalized []byte) (string, bool) {
	s.countTranscriptionRequest()
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	transcript, err := s.stt.TranscribeAudio(ctx, normalized, s.audioConfig())
	if err != nil {
		s.countTranscriptionFailure()
		s.logger.Warn("Transcription failed", zap.Error(err))
		return "", true
	}
	return transcript, false
}

// classify calls the provider under a bounded timeout and flattens the
// response into the labeled-line rendering.
func (s *AnalysisService) classify(ctx context.Context, text string) (string, error) {
	s.countClassificationRequest()
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	raw, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.countClassificationFailure()
		return "", fmt.Errorf("%w: %v", ErrClassification, err)
	}
	return risk.Flatten(raw), nil
}

// merge picks the text to classify: caller-supplied accumulated context
// wins, then the server-side session accumulation, then the fresh
// transcript alone.
func (s *AnalysisService) merge(sessionID, accumulated, fresh string) string {
	if accumulated != "" {
		return accumulated
	}
	if text := s.sessions.Text(sessionID); text != "" {
		return text
	}
	return fresh
}

func (s *AnalysisService) record(ctx context.Context, userID int64, text string, result *string, sessionID, origin string) error {
	analysis := &entities.Analysis{
		UserID:       userID,
		AnalyzedText: text,
		Result:       result,
	}
	if sessionID != "" {
		analysis.SessionID = &sessionID
	}
	if origin != "" {
		analysis.Origin = &origin
	}

	if err := s.analyses.Create(ctx, analysis); err != nil {
		return fmt.Errorf("failed to persist analysis: %w", err)
	}
	return nil
}

func (s *AnalysisService) audioConfig() repositories.AudioConfig {
	return repositories.AudioConfig{
		SampleRate: audio.SampleRate,
		Encoding:   "LINEAR16",
		Language:   s.opts.Language,
	}
}

func (s *AnalysisService) countChunkReceived() {
	if s.metrics != nil {
		s.metrics.ChunksReceived.Inc()
	}
}

func (s *AnalysisService) countInvalidFormat() {
	if s.metrics != nil {
		s.metrics.ChunksInvalidFormat.Inc()
	}
}

func (s *AnalysisService) countSilenceReject() {
	if s.metrics != nil {
		s.metrics.ChunksRejectedSilence.Inc()
	}
}

func (s *AnalysisService) countIrrelevant() {
	if s.metrics != nil {
		s.metrics.IrrelevantTranscripts.Inc()
	}
}

func (s *AnalysisService) countTranscriptionRequest() {
	if s.metrics != nil {
		s.metrics.TranscriptionRequests.Inc()
	}
}

func (s *AnalysisService) countTranscriptionFailure() {
	if s.metrics != nil {
		s.metrics.TranscriptionFailures.Inc()
	}
}

func (s *AnalysisService) countClassificationRequest() {
	if s.metrics != nil {
		s.metrics.ClassificationRequests.Inc()
	}
}

func (s *AnalysisService) countClassificationFailure() {
	if s.metrics != nil {
		s.metrics.ClassificationFailures.Inc()
	}
}
