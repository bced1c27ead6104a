package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultMaxTokens      = 512
	defaultTimeoutSeconds = 30
	maxAttempts           = 3
)

// GeminiConfig carries the classifier settings.
type GeminiConfig struct {
	APIKey string
	Model  string
	// PromptTemplate must contain one %s placeholder for the message
	// under analysis.
	PromptTemplate string
	TimeoutSeconds int
}

// GeminiClassifier implements the Classifier interface using Google's
// Gemini API.
type GeminiClassifier struct {
	client         *genai.Client
	logger         *zap.Logger
	model          string
	promptTemplate string
	timeout        time.Duration
}

// NewGeminiClassifier creates a new Gemini-backed fraud classifier.
func NewGeminiClassifier(config GeminiConfig, logger *zap.Logger) (*GeminiClassifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if config.PromptTemplate == "" {
		return nil, fmt.Errorf("prompt template is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiClassifier{
		client:         client,
		logger:         logger,
		model:          model,
		promptTemplate: config.PromptTemplate,
		timeout:        time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// Classify evaluates the text and returns the raw model output. The
// prompt asks for strict JSON but the caller must not trust compliance.
func (g *GeminiClassifier) Classify(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(g.promptTemplate, text)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	generationConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.2)),
		MaxOutputTokens: int32(defaultMaxTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, generationConfig)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("classifier returned no content")
	}

	var out string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			out += part.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("classifier returned empty response")
	}
	return out, nil
}
