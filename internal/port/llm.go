package port

import "context"

// CompletionInput carries one chat-completion request. Options hold
// model-specific parameters (temperature, max tokens) passed through
// unmodified from prompt configuration.
type CompletionInput struct {
	Model   string
	System  string
	User    string
	Options map[string]interface{}
}

// Completer abstracts the chat-completion service.
type Completer interface {
	Complete(ctx context.Context, in CompletionInput) (string, error)
}

// Embedder abstracts text embedding for vector retrieval.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}
