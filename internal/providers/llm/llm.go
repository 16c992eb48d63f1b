package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by callers that hold no provider.
var ErrNotConfigured = errors.New("llm provider not configured")

// Request is a single prompt exchange.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
	// JSON asks the model for an application/json response.
	JSON bool
}

type Provider interface {
	// Generate returns the full text answer.
	Generate(ctx context.Context, req Request) (string, error)
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, req Request) (chunks <-chan string, errs <-chan error)
	// Embed returns a dense vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Close() error
}

// Collect drains a stream, calling onChunk for every piece, and returns the joined text.
func Collect(ctx context.Context, chunks <-chan string, errs <-chan error, onChunk func(string)) (string, error) {
	var out []byte
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return string(out), ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			out = append(out, c...)
			if onChunk != nil {
				onChunk(c)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return string(out), err
			}
		}
	}
	return string(out), nil
}
