// Package transcription fetches timed caption segments for YouTube videos.
package transcription

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var ErrNoCaptions = errors.New("no captions available for this video")

// Segment is one timed caption line. Start and Duration are in seconds.
type Segment struct {
	Text     string
	Start    float64
	Duration float64
}

type Provider interface {
	Segments(ctx context.Context, videoID string) ([]Segment, error)
}

// JoinSegments concatenates segment texts in their original order,
// separated by a single space.
func JoinSegments(segments []Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}
