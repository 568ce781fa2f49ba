package port

import "context"

// AIProvider abstracts the AI backend used by the matching pipeline.
// Implementations can target OpenAI or any API compatible with it.
type AIProvider interface {
	// EmbedModel returns the identifier of the embedding model in use.
	EmbedModel() string

	// ChatModel returns the identifier of the generative model in use.
	ChatModel() string

	// EmbedText generates a vector embedding for the given text.
	// Empty or whitespace-only text is a validation failure; a missing or
	// malformed vector in the response is an external-service failure.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// CompleteJSON sends a prompt to the generative model in structured
	// (JSON) output mode and returns the raw response document.
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}
