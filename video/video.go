// Package video resolves everything the chat flow needs to know about a
// submitted video: its title, thumbnail and transcript text.
package video

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/metadata"
	"github.com/nijaru/yt-chat/transcription"
	"github.com/nijaru/yt-chat/validation"
)

const (
	UnknownTitle = metadata.DefaultTitle
	NoTranscript = "No transcript available for this video."
)

// Data is the result of a fetch. Title, Transcript and ThumbnailURL are either
// all real values or all sentinels; Err carries the diagnostic in the latter case.
type Data struct {
	Title        string
	Transcript   string
	ThumbnailURL string
	Err          error
}

// Available reports whether Transcript holds real transcript text.
func (d Data) Available() bool {
	return d.Transcript != NoTranscript
}

func degraded(err error) Data {
	return Data{
		Title:        UnknownTitle,
		Transcript:   NoTranscript,
		ThumbnailURL: "",
		Err:          err,
	}
}

type MetadataFetchError struct {
	URL string
	Err error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("metadata lookup failed for %s: %v", e.URL, e.Err)
}

func (e *MetadataFetchError) Unwrap() error { return e.Err }

type TranscriptFetchError struct {
	VideoID string
	Err     error
}

func (e *TranscriptFetchError) Error() string {
	return fmt.Sprintf("transcript lookup failed for %s: %v", e.VideoID, e.Err)
}

func (e *TranscriptFetchError) Unwrap() error { return e.Err }

type Fetcher struct {
	Metadata    metadata.Provider
	Transcripts transcription.Provider
	logger      *logrus.Logger
}

func NewFetcher(md metadata.Provider, transcripts transcription.Provider) *Fetcher {
	return &Fetcher{
		Metadata:    md,
		Transcripts: transcripts,
		logger:      logrus.StandardLogger(),
	}
}

// Fetch never fails. If the URL is not a video link, or either lookup fails,
// the sentinel triple is returned and both lookups' results are discarded.
// The lookups run one after the other.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (data Data) {
	logger := f.logger.WithField("url", rawURL)

	defer func() {
		if r := recover(); r != nil {
			data = degraded(fmt.Errorf("unexpected failure: %v", r))
			logger.WithField("panic", r).Error("Video data fetch panicked")
		}
	}()

	ref, err := validation.NewVideoReference(rawURL)
	if err != nil {
		logger.WithError(err).Warn("Rejected video URL")
		return degraded(err)
	}
	logger = logger.WithField("video_id", ref.ID())

	md, err := f.Metadata.Lookup(ctx, ref.URL())
	if err != nil {
		logger.WithError(err).Error("Error fetching video metadata")
		return degraded(&MetadataFetchError{URL: ref.URL(), Err: err})
	}

	segments, err := f.Transcripts.Segments(ctx, ref.ID())
	if err != nil {
		logger.WithError(err).Error("Error fetching video transcript")
		return degraded(&TranscriptFetchError{VideoID: ref.ID(), Err: err})
	}

	title := md.Title
	if title == "" {
		title = UnknownTitle
	}

	logger.WithFields(logrus.Fields{
		"title":    title,
		"segments": len(segments),
	}).Info("Fetched video data")

	return Data{
		Title:        title,
		Transcript:   transcription.JoinSegments(segments),
		ThumbnailURL: md.ThumbnailURL,
	}
}
