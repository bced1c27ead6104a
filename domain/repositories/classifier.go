package repositories

import "context"

// Classifier abstracts the language-model provider that evaluates a text
// for fraud. The raw output is quasi-structured: the provider is asked for
// strict JSON but is not trusted to comply, so callers run the result
// through the risk parser.
type Classifier interface {
	// Classify sends the text for evaluation and returns the raw model output.
	Classify(ctx context.Context, text string) (string, error)
}
