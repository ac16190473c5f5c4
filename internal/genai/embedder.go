package genai

import "context"

// ModelEmbedder binds a Client to a single embedding model so callers can
// embed text without carrying the model name around.
type ModelEmbedder struct {
	client *Client
	model  string
}

// NewModelEmbedder creates a ModelEmbedder for the given model.
func NewModelEmbedder(client *Client, model string) *ModelEmbedder {
	return &ModelEmbedder{client: client, model: model}
}

// Embed returns the embedding vector for text using the bound model.
func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, text)
}
