package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

// VertexGemini serves generation through the Vertex AI SDK and delegates embeddings to a genai client.
type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
	embedder  *Gemini
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName, embeddingModel string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = defaultModel
	}

	emb, err := NewGeminiVertex(ctx, projectID, location, modelName, embeddingModel)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &VertexGemini{client: c, modelName: modelName, embedder: emb}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Model() string { return v.modelName }

// model builds a per-request handle so settings never leak between callers.
func (v *VertexGemini) model(req Request) *vertexgenai.GenerativeModel {
	m := v.client.GenerativeModel(v.modelName)
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}
	if s := strings.TrimSpace(req.System); s != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(s)}}
	}
	return m
}

func (v *VertexGemini) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := v.model(req).GenerateContent(ctx, vertexgenai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("vertex returned empty response")
	}
	return out, nil
}

func (v *VertexGemini) StreamAnswer(ctx context.Context, req Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model(req).GenerateContentStream(ctx, vertexgenai.Text(req.Prompt))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
						out <- string(t)
					}
				}
			}
		}
	}()

	return out, errs
}

func (v *VertexGemini) Embed(ctx context.Context, text string) ([]float32, error) {
	return v.embedder.Embed(ctx, text)
}
