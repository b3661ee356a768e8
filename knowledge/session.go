package knowledge

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type IngestionError struct {
	Title string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to add %q to the knowledge base: %v", e.Title, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

type QueryError struct {
	Question string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to answer question: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Session owns one engine and the private directory its vectors live in.
type Session struct {
	engine Engine
	dir    string
}

// NewSession creates a fresh storage directory under baseDir and builds an
// engine on it. An empty baseDir uses the system temp directory.
func NewSession(ctx context.Context, credential, baseDir string, cfg Config, factory EngineFactory) (*Session, error) {
	if factory == nil {
		factory = NewEngine
	}

	dir, err := os.MkdirTemp(baseDir, "kb-*")
	if err != nil {
		return nil, errors.Wrap(err, "error creating knowledge base directory")
	}

	cfg.VectorStore.Dir = dir
	engine, err := factory(ctx, cfg, credential)
	if err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrap(err, "error creating knowledge base engine")
	}

	logrus.WithField("dir", dir).Debug("Knowledge base session created")
	return &Session{engine: engine, dir: dir}, nil
}

func (s *Session) Dir() string {
	return s.dir
}

// Ingest adds text as a new document. Repeated calls with the same metadata
// add duplicate documents.
func (s *Session) Ingest(ctx context.Context, text string, md DocumentMetadata) error {
	err := s.engine.Add(ctx, Document{Text: text, Metadata: md}, DataTypeText)
	if err != nil {
		return &IngestionError{Title: md.Title, Err: err}
	}
	return nil
}

func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	answer, err := s.engine.Chat(ctx, question)
	if err != nil {
		return "", &QueryError{Question: question, Err: err}
	}
	return answer, nil
}

// Close shuts the engine down and deletes the storage directory.
func (s *Session) Close() error {
	err := s.engine.Close()
	if rmErr := os.RemoveAll(s.dir); rmErr != nil && err == nil {
		err = errors.Wrap(rmErr, "error removing knowledge base directory")
	}
	return err
}
