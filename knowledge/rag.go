package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/db"
)

type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

const (
	embedBatchSize = 100
	historyTurns   = 5
)

type Embedder interface {
	Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
}

type ChatModel interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// VectorStore is the subset of db.Store the engine relies on.
type VectorStore interface {
	AddChunks(ctx context.Context, chunks []db.Chunk) error
	Search(ctx context.Context, query []float32, k int) ([]db.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type exchange struct {
	question string
	answer   string
}

type RAGEngine struct {
	store    VectorStore
	embedder Embedder
	chat     ChatModel
	cfg      Config

	mu      sync.Mutex
	history []exchange
}

const systemPrompt = `You are a helpful assistant that answers questions about YouTube videos using their transcripts.
Use the provided context to answer. If the context does not contain the answer, say so plainly.`

func NewRAGEngine(store VectorStore, embedder Embedder, chat ChatModel, cfg Config) *RAGEngine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &RAGEngine{
		store:    store,
		embedder: embedder,
		chat:     chat,
		cfg:      cfg,
	}
}

func (e *RAGEngine) Add(ctx context.Context, doc Document, dataType DataType) error {
	if dataType != DataTypeText {
		return errors.Errorf("unsupported data type %q", dataType)
	}

	texts := splitText(doc.Text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if len(texts) == 0 {
		return errors.New("document has no text")
	}

	docID := uuid.NewString()
	chunks := make([]db.Chunk, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vectors, err := e.embedder.Embed(ctx, texts[start:end], TaskRetrievalDocument)
		if err != nil {
			return errors.Wrap(err, "error embedding document")
		}
		if len(vectors) != end-start {
			return errors.Errorf("embedder returned %d vectors for %d chunks", len(vectors), end-start)
		}
		for i, v := range vectors {
			chunks = append(chunks, db.Chunk{
				ID:         uuid.NewString(),
				DocumentID: docID,
				Title:      doc.Metadata.Title,
				URL:        doc.Metadata.URL,
				Position:   start + i,
				Text:       texts[start+i],
				Embedding:  v,
			})
		}
	}

	if err := e.store.AddChunks(ctx, chunks); err != nil {
		return errors.Wrap(err, "error storing chunks")
	}

	logrus.WithFields(logrus.Fields{
		"document_id": docID,
		"title":       doc.Metadata.Title,
		"chunks":      len(chunks),
	}).Info("Document added to knowledge base")
	return nil
}

func (e *RAGEngine) Chat(ctx context.Context, prompt string) (string, error) {
	contexts, err := e.retrieve(ctx, prompt)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	history := append([]exchange(nil), e.history...)
	e.mu.Unlock()

	answer, err := e.chat.Generate(ctx, systemPrompt, buildPrompt(prompt, contexts, history))
	if err != nil {
		return "", errors.Wrap(err, "error generating answer")
	}

	e.mu.Lock()
	e.history = append(e.history, exchange{question: prompt, answer: answer})
	if len(e.history) > historyTurns {
		e.history = e.history[len(e.history)-historyTurns:]
	}
	e.mu.Unlock()

	return answer, nil
}

func (e *RAGEngine) retrieve(ctx context.Context, prompt string) ([]db.ScoredChunk, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error counting chunks")
	}
	if n == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.Embed(ctx, []string{prompt}, TaskRetrievalQuery)
	if err != nil {
		return nil, errors.Wrap(err, "error embedding query")
	}
	if len(vectors) != 1 {
		return nil, errors.Errorf("embedder returned %d vectors for query", len(vectors))
	}

	results, err := e.store.Search(ctx, vectors[0], e.cfg.TopK)
	if err != nil {
		return nil, errors.Wrap(err, "error searching knowledge base")
	}
	return results, nil
}

func (e *RAGEngine) Close() error {
	return e.store.Close()
}

func buildPrompt(question string, contexts []db.ScoredChunk, history []exchange) string {
	var b strings.Builder

	b.WriteString("Context information:\n")
	if len(contexts) == 0 {
		b.WriteString("(no transcripts have been added)\n")
	}
	for _, c := range contexts {
		fmt.Fprintf(&b, "---\nSource: %s (%s)\n%s\n", c.Title, c.URL, c.Text)
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "Human: %s\nAI: %s\n", h.question, h.answer)
		}
	}

	fmt.Fprintf(&b, "\nQuery: %s\nAnswer:", question)
	return b.String()
}
