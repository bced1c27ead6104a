package usecase

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fraudwatch/server/adapters/llm"
	"github.com/fraudwatch/server/adapters/stt"
	"github.com/fraudwatch/server/domain/entities"
	"github.com/fraudwatch/server/internal/audio"
	"github.com/fraudwatch/server/internal/risk"
	"github.com/fraudwatch/server/internal/scratch"
)

// memoryAnalysisRepository records created analyses in memory.
type memoryAnalysisRepository struct {
	mu      sync.Mutex
	records []*entities.Analysis
}

func (m *memoryAnalysisRepository) Create(ctx context.Context, analysis *entities.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	analysis.ID = int64(len(m.records) + 1)
	m.records = append(m.records, analysis)
	return nil
}

func (m *memoryAnalysisRepository) ListByUser(ctx context.Context, userID int64) ([]*entities.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.Analysis
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memoryAnalysisRepository) Delete(ctx context.Context, id, userID int64) error {
	return errors.New("not implemented")
}

func (m *memoryAnalysisRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memoryAnalysisRepository) last() *entities.Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return nil
	}
	return m.records[len(m.records)-1]
}

type fixture struct {
	service    *AnalysisService
	speech     *stt.MockSpeechToText
	classifier *llm.MockClassifier
	analyses   *memoryAnalysisRepository
	sessions   *SessionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	scratchStore, err := scratch.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	speech := stt.NewMockSpeechToText(logger)
	classifier := llm.NewMockClassifier()
	analyses := &memoryAnalysisRepository{}
	sessions := NewSessionStore(time.Hour, logger)

	service := NewAnalysisService(speech, classifier, analyses, scratchStore, sessions, nil, Options{}, logger)
	return &fixture{
		service:    service,
		speech:     speech,
		classifier: classifier,
		analyses:   analyses,
		sessions:   sessions,
	}
}

func speechWAV(t *testing.T, seconds float64) []byte {
	t.Helper()
	n := int(seconds * audio.SampleRate)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(5000 * math.Sin(2*math.Pi*float64(i)/80))
	}
	data, err := audio.Encode(samples, audio.SampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func silentWAV(t *testing.T) []byte {
	t.Helper()
	data, err := audio.Encode(make([]int16, audio.SampleRate), audio.SampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func TestHandleChunkSilenceMakesNoProviderCalls(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleChunk(context.Background(), silentWAV(t), "s1", "", OriginAudioStream, 1)
	if err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	if result.Transcript != "" {
		t.Errorf("Transcript = %q, want empty", result.Transcript)
	}
	if result.Result != nil {
		t.Errorf("Result = %v, want nil", *result.Result)
	}
	if f.speech.Calls() != 0 {
		t.Errorf("transcription calls = %d, want 0", f.speech.Calls())
	}
	if f.classifier.Calls() != 0 {
		t.Errorf("classification calls = %d, want 0", f.classifier.Calls())
	}
	if f.analyses.count() != 0 {
		t.Errorf("persisted records = %d, want 0", f.analyses.count())
	}
}

func TestHandleChunkTinyChunkRejected(t *testing.T) {
	f := newFixture(t)

	// 100 samples is well under the byte threshold even with full energy.
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = 20000
	}
	data, err := audio.Encode(samples, audio.SampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	result, err := f.service.HandleChunk(context.Background(), data, "", "", OriginAudioStream, 1)
	if err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}
	if result.Result != nil || f.speech.Calls() != 0 {
		t.Error("tiny chunk must be rejected without provider calls")
	}
}

func TestHandleChunkInvalidContainer(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleChunk(context.Background(), []byte("mp3 garbage data"), "", "", OriginAudioStream, 1)
	if !errors.Is(err, audio.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
	if f.speech.Calls() != 0 {
		t.Errorf("transcription calls = %d, want 0", f.speech.Calls())
	}
}

func TestHandleChunkNoScratchFileLeftBehind(t *testing.T) {
	logger := zap.NewNop()
	dir := t.TempDir()
	scratchStore, err := scratch.NewStore(dir, logger)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	service := NewAnalysisService(
		stt.NewMockSpeechToText(logger),
		llm.NewMockClassifier(),
		&memoryAnalysisRepository{},
		scratchStore,
		NewSessionStore(time.Hour, logger),
		nil, Options{}, logger,
	)

	if _, err := service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", "", OriginAudioStream, 1); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d scratch files persist past the request, want 0", len(entries))
	}
}

func TestHandleChunkHappyPath(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", "", OriginAudioStream, 7)
	if err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	if result.Transcript == "" {
		t.Error("expected a transcript")
	}
	if result.Result == nil {
		t.Fatal("expected a verdict rendering")
	}
	verdict := risk.Parse(*result.Result)
	if verdict.RiskScore != 90 {
		t.Errorf("RiskScore = %d, want 90", verdict.RiskScore)
	}
	if verdict.Diagnosis != entities.DiagnosisFraud {
		t.Errorf("Diagnosis = %q, want %q", verdict.Diagnosis, entities.DiagnosisFraud)
	}

	record := f.analyses.last()
	if record == nil {
		t.Fatal("expected a persisted record")
	}
	if record.UserID != 7 {
		t.Errorf("record.UserID = %d, want 7", record.UserID)
	}
	if record.Origin == nil || *record.Origin != OriginAudioStream {
		t.Error("record must carry the audio_stream origin tag")
	}
	if record.SessionID == nil || *record.SessionID != "s1" {
		t.Error("record must carry the session id")
	}
}

func TestHandleChunkAccumulatedTextTakesPrecedence(t *testing.T) {
	f := newFixture(t)

	accumulated := "texto acumulado de la sesión con suficiente contenido"
	_, err := f.service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", accumulated, OriginAudioStream, 1)
	if err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	record := f.analyses.last()
	if record == nil {
		t.Fatal("expected a persisted record")
	}
	if record.AnalyzedText != accumulated {
		t.Errorf("AnalyzedText = %q, want the caller-accumulated text", record.AnalyzedText)
	}
}

func TestHandleChunkTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.speech.Err = errors.New("provider unavailable")

	result, err := f.service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", "", OriginAudioStream, 1)
	if err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	if result.Transcript != "" {
		t.Errorf("Transcript = %q, want empty on provider failure", result.Transcript)
	}
	if result.Result != nil {
		t.Error("no verdict expected when transcription failed")
	}
	if f.classifier.Calls() != 0 {
		t.Errorf("classification calls = %d, want 0: a failed transcript must never be classified", f.classifier.Calls())
	}
}

func TestHandleChunkIrrelevantTranscript(t *testing.T) {
	f := newFixture(t)
	f.speech.Transcript = "Gracias por ver"

	result, err := f.service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", "", OriginAudioStream, 1)
	if err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	if result.Transcript != "" {
		t.Errorf("Transcript = %q, want empty for captioning noise", result.Transcript)
	}
	if result.Result != nil {
		t.Error("no verdict expected for irrelevant input")
	}
	if f.classifier.Calls() != 0 {
		t.Errorf("classification calls = %d, want 0", f.classifier.Calls())
	}

	// Ran-but-empty is still recorded, with a null result.
	record := f.analyses.last()
	if record == nil {
		t.Fatal("expected a persisted record")
	}
	if record.Result != nil {
		t.Error("record.Result must be nil when classification was skipped")
	}
}

func TestHandleChunkSessionAccumulation(t *testing.T) {
	f := newFixture(t)
	f.speech.Transcript = "primer fragmento de la conversación sospechosa"

	if _, err := f.service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", "", OriginAudioStream, 1); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	f.speech.Transcript = "segundo fragmento pidiendo datos bancarios urgentes"
	if _, err := f.service.HandleChunk(context.Background(), speechWAV(t, 1), "s1", "", OriginAudioStream, 1); err != nil {
		t.Fatalf("HandleChunk failed: %v", err)
	}

	record := f.analyses.last()
	if record == nil {
		t.Fatal("expected a persisted record")
	}
	want := "primer fragmento de la conversación sospechosa segundo fragmento pidiendo datos bancarios urgentes"
	if record.AnalyzedText != want {
		t.Errorf("AnalyzedText = %q, want the accumulated session text", record.AnalyzedText)
	}
}

func TestIsIrrelevantTranscript(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Gracias por ver", true},
		{"  Gracias por ver  ", true},
		{"gracias por ver", true},
		{"¡Suscríbete y activa notificaciones!", true},
		{"tres palabras solo", true},
		{"", true},
		{"este mensaje tiene contenido real y relevante", false},
		{"cuatro palabras ya bastan", false},
	}
	for _, tt := range tests {
		if got := IsIrrelevantTranscript(tt.text); got != tt.want {
			t.Errorf("IsIrrelevantTranscript(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestHandleTextEmpty(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.HandleText(context.Background(), "   ", "", "", 1); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
	if f.classifier.Calls() != 0 {
		t.Errorf("classification calls = %d, want 0", f.classifier.Calls())
	}
}

func TestHandleTextPersistsManualOrigin(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleText(context.Background(), "Esto es una prueba de estafa", "", "", 3)
	if err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}
	if result == "" {
		t.Error("expected a non-empty rendering")
	}

	record := f.analyses.last()
	if record == nil {
		t.Fatal("expected a persisted record")
	}
	if record.Origin == nil || *record.Origin != OriginManual {
		t.Error("record must default to the manual origin tag")
	}
	if record.Result == nil {
		t.Error("record.Result must be set on the text path")
	}
}

func TestHandleTextClassifierFailure(t *testing.T) {
	f := newFixture(t)
	f.classifier.Err = errors.New("quota exceeded")

	_, err := f.service.HandleText(context.Background(), "texto sospechoso", "", "", 1)
	if !errors.Is(err, ErrClassification) {
		t.Fatalf("err = %v, want ErrClassification", err)
	}
	if f.analyses.count() != 0 {
		t.Error("no record expected when classification failed")
	}
}

func TestAnalyzeStreamAlwaysReportsRisk(t *testing.T) {
	f := newFixture(t)

	// Silent stream: classification never runs, yet the risk score must
	// still be populated via the parser default.
	result, err := f.service.AnalyzeStream(context.Background(), silentWAV(t), "ws-1", 1)
	if err != nil {
		t.Fatalf("AnalyzeStream failed: %v", err)
	}
	if result.RiskScore != risk.DefaultRiskScore {
		t.Errorf("RiskScore = %d, want %d", result.RiskScore, risk.DefaultRiskScore)
	}

	// Speech stream: the score comes from the classifier output.
	result, err = f.service.AnalyzeStream(context.Background(), speechWAV(t, 1), "ws-2", 1)
	if err != nil {
		t.Fatalf("AnalyzeStream failed: %v", err)
	}
	if result.RiskScore != 90 {
		t.Errorf("RiskScore = %d, want 90", result.RiskScore)
	}
}
