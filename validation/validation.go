package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	watchMarker  = "youtube.com/watch?v="
	shortsMarker = "youtube.com/shorts/"

	MaxQuestionLength = 2000
)

// InvalidURLError reports a URL that matches neither the watch nor the shorts shape.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid YouTube URL %q: %s", e.URL, e.Reason)
}

// IsInvalidURL reports whether err is, or wraps, an *InvalidURLError.
func IsInvalidURL(err error) bool {
	var target *InvalidURLError
	return errors.As(err, &target)
}

// VideoReference pairs a submitted URL with the video id derived from it.
// The zero value is not a valid reference; use NewVideoReference.
type VideoReference struct {
	url string
	id  string
}

func NewVideoReference(rawURL string) (VideoReference, error) {
	id, err := ExtractVideoID(rawURL)
	if err != nil {
		return VideoReference{}, err
	}
	return VideoReference{url: rawURL, id: id}, nil
}

func (r VideoReference) URL() string { return r.url }
func (r VideoReference) ID() string  { return r.id }

// ExtractVideoID returns the video id embedded in a watch or shorts link.
//
// For watch links the id runs from the marker to the next '&'; for shorts
// links it runs to the next '?'. The input is not trimmed or case folded.
// An empty id is rejected.
func ExtractVideoID(rawURL string) (string, error) {
	var id string
	switch {
	case strings.Contains(rawURL, watchMarker):
		rest := rawURL[strings.Index(rawURL, watchMarker)+len(watchMarker):]
		id, _, _ = strings.Cut(rest, "&")
	case strings.Contains(rawURL, shortsMarker):
		rest := rawURL[strings.Index(rawURL, shortsMarker)+len(shortsMarker):]
		id, _, _ = strings.Cut(rest, "?")
	default:
		return "", &InvalidURLError{URL: rawURL, Reason: "not a watch or shorts link"}
	}

	if id == "" {
		return "", &InvalidURLError{URL: rawURL, Reason: "empty video id"}
	}
	return id, nil
}

// ValidateURL rejects blank input. The shape of the link is left to
// ExtractVideoID, so scheme-less links such as youtube.com/watch?v=id pass.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("URL is required")
	}
	return nil
}

func ValidateCredential(credential string) error {
	if strings.TrimSpace(credential) == "" {
		return errors.New("API key is required")
	}
	return nil
}

func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return errors.New("question is required")
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return errors.Errorf("question must be at most %d characters", MaxQuestionLength)
	}
	return nil
}
