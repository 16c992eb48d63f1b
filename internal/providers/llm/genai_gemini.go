package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	embeddingDimensions   = 768
)

// Gemini talks to the Gemini API (or Vertex when built with NewGeminiVertex) through google.golang.org/genai.
type Gemini struct {
	client         *genai.Client
	modelName      string
	embeddingModel string
}

// NewGemini creates a provider configured for the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model, embeddingModel string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	return newGemini(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}, model, embeddingModel)
}

// NewGeminiVertex creates a provider on the Vertex AI backend using application default credentials.
func NewGeminiVertex(ctx context.Context, project, location, model, embeddingModel string) (*Gemini, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("vertex project id is required")
	}
	return newGemini(ctx, &genai.ClientConfig{Project: project, Location: location, Backend: genai.BackendVertexAI}, model, embeddingModel)
}

func newGemini(ctx context.Context, cfg *genai.ClientConfig, model, embeddingModel string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if embeddingModel = strings.TrimSpace(embeddingModel); embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &Gemini{client: client, modelName: model, embeddingModel: embeddingModel}, nil
}

func (g *Gemini) Model() string { return g.modelName }

// Close is a no-op; the genai client holds no long-lived connections.
func (g *Gemini) Close() error { return nil }

func (g *Gemini) config(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(req.Temperature)}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if s := strings.TrimSpace(req.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	return cfg
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), g.config(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := strings.TrimSpace(joinText(resp))
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func (g *Gemini) StreamAnswer(ctx context.Context, req Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, genai.Text(req.Prompt), g.config(req)) {
			if err != nil {
				errs <- err
				return
			}
			if t := joinText(resp); t != "" {
				select {
				case out <- t:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errs
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input must not be empty")
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr[int32](embeddingDimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini api returned no embedding")
	}
	return resp.Embeddings[0].Values, nil
}

func joinText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
