package metadata

import (
	"context"
	"encoding/json"
	"os/exec"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CommandFunc runs an external program and returns its standard output.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// YTDLPProvider asks yt-dlp for the video's info JSON without downloading media.
type YTDLPProvider struct {
	Path        string
	CommandFunc CommandFunc
}

func NewYTDLPProvider(path string) *YTDLPProvider {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLPProvider{
		Path:        path,
		CommandFunc: runCommand,
	}
}

func (p *YTDLPProvider) Lookup(ctx context.Context, rawURL string) (*Metadata, error) {
	output, err := p.CommandFunc(ctx, p.Path,
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
		"--no-playlist",
		rawURL,
	)
	if err != nil {
		logrus.WithError(err).WithField("url", rawURL).Debug("yt-dlp lookup failed")
		return nil, err
	}
	return parseInfoJSON(output)
}

func parseInfoJSON(output []byte) (*Metadata, error) {
	var info struct {
		Title     string `json:"title"`
		Thumbnail string `json:"thumbnail"`
	}
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, "error parsing yt-dlp output")
	}
	return withDefaults(info.Title, info.Thumbnail), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, errors.Errorf("error executing %s: %v, stderr: %s", name, err, exitErr.Stderr)
		}
		return nil, errors.Wrapf(err, "error executing %s", name)
	}
	return output, nil
}
