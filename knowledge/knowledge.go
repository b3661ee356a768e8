// Package knowledge indexes video transcripts and answers questions about
// them with retrieval-augmented generation.
package knowledge

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nijaru/yt-chat/config"
	"github.com/nijaru/yt-chat/db"
)

type DataType string

const DataTypeText DataType = "text"

type DocumentMetadata struct {
	Title string
	URL   string
}

type Document struct {
	Text     string
	Metadata DocumentMetadata
}

// Engine is a retrieval and chat backend bound to one storage location.
type Engine interface {
	Add(ctx context.Context, doc Document, dataType DataType) error
	Chat(ctx context.Context, prompt string) (string, error)
	Close() error
}

// EngineFactory builds an Engine from configuration and a caller credential.
type EngineFactory func(ctx context.Context, cfg Config, apiKey string) (Engine, error)

type ProviderConfig struct {
	Provider          string
	Model             string
	Temperature       float32
	RequestsPerSecond int
}

type StoreConfig struct {
	Provider string
	Dir      string
}

type Config struct {
	LLM          ProviderConfig
	VectorStore  StoreConfig
	Embedder     ProviderConfig
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// ConfigFrom maps application settings onto engine settings. The vector store
// directory is left empty and filled in per session.
func ConfigFrom(kc config.KnowledgeConfig) Config {
	return Config{
		LLM: ProviderConfig{
			Provider:          kc.LLMProvider,
			Model:             kc.LLMModel,
			Temperature:       float32(kc.LLMTemperature),
			RequestsPerSecond: kc.RequestsPerSecond,
		},
		VectorStore: StoreConfig{
			Provider: kc.VectorStoreProvider,
		},
		Embedder: ProviderConfig{
			Provider:          kc.EmbedderProvider,
			Model:             kc.EmbedderModel,
			RequestsPerSecond: kc.RequestsPerSecond,
		},
		ChunkSize:    kc.ChunkSize,
		ChunkOverlap: kc.ChunkOverlap,
		TopK:         kc.TopK,
	}
}

// NewEngine resolves the configured providers and returns a RAGEngine.
func NewEngine(ctx context.Context, cfg Config, apiKey string) (Engine, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	var embedder Embedder
	switch cfg.Embedder.Provider {
	case "gemini":
		e, err := NewGeminiEmbedder(ctx, apiKey, cfg.Embedder)
		if err != nil {
			return nil, err
		}
		embedder = e
	default:
		return nil, errors.Errorf("unknown embedder provider %q", cfg.Embedder.Provider)
	}

	var chat ChatModel
	switch cfg.LLM.Provider {
	case "gemini":
		c, err := NewGeminiChatModel(ctx, apiKey, cfg.LLM)
		if err != nil {
			return nil, err
		}
		chat = c
	default:
		return nil, errors.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	store, err := openStore(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	return NewRAGEngine(store, embedder, chat, cfg), nil
}

func openStore(sc StoreConfig) (*db.Store, error) {
	switch sc.Provider {
	case "sqlite":
		if sc.Dir == "" {
			return nil, errors.New("vector store directory is required")
		}
		store, err := db.Open(sc.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "error opening vector store")
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown vector store provider %q", sc.Provider)
	}
}
