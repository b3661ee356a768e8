// Package metadata resolves a video's title and thumbnail from its URL.
package metadata

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const DefaultTitle = "Unknown Title"

type Metadata struct {
	Title        string
	ThumbnailURL string
}

// Provider looks up metadata for the raw, user supplied video URL.
type Provider interface {
	Lookup(ctx context.Context, rawURL string) (*Metadata, error)
}

// withDefaults fills missing fields with their sentinel values.
func withDefaults(title, thumbnail string) *Metadata {
	if title == "" {
		title = DefaultTitle
	}
	return &Metadata{Title: title, ThumbnailURL: thumbnail}
}

type Options struct {
	YTDLPPath   string
	HTTPTimeout time.Duration
}

// NewProvider returns the provider registered under name ("ytdlp" or "page").
func NewProvider(name string, opts Options) (Provider, error) {
	switch name {
	case "ytdlp":
		return NewYTDLPProvider(opts.YTDLPPath), nil
	case "page":
		return NewPageProvider(&http.Client{Timeout: opts.HTTPTimeout}), nil
	default:
		return nil, errors.Errorf("unknown metadata provider %q", name)
	}
}
