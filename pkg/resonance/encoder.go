// Package resonance matches a formulated demand against the agent population:
// dense-vector encoding, cached profile embeddings, and cosine top-k selection.
package resonance

import "context"

// Encoder turns text into a dense vector. Implementations wrap an embedding
// model; tests inject deterministic fakes.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}
