package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

func newLimiter(requestsPerSecond int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond)
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating genai client")
	}
	return client, nil
}

// GeminiEmbedder produces embeddings through the Gemini API.
type GeminiEmbedder struct {
	models  *genai.Models
	model   string
	limiter *rate.Limiter
}

func NewGeminiEmbedder(ctx context.Context, apiKey string, cfg ProviderConfig) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{
		models:  client.Models,
		model:   cfg.Model,
		limiter: newLimiter(cfg.RequestsPerSecond),
	}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := g.models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType: string(task),
	})
	if err != nil {
		return nil, errors.Wrap(err, "embed content")
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// GeminiChatModel generates answers through the Gemini API.
type GeminiChatModel struct {
	models      *genai.Models
	model       string
	temperature float32
	limiter     *rate.Limiter
}

func NewGeminiChatModel(ctx context.Context, apiKey string, cfg ProviderConfig) (*GeminiChatModel, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiChatModel{
		models:      client.Models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg.RequestsPerSecond),
	}, nil
}

func (g *GeminiChatModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "rate limiter")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](g.temperature),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", errors.Wrap(err, "generate content")
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
		break
	}
	if b.Len() == 0 {
		return "", errors.New("model returned no text")
	}
	return b.String(), nil
}
