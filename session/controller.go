// Package session drives one user's chat flow: credential, video submission
// and questions, each against that user's private knowledge base.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/knowledge"
	"github.com/nijaru/yt-chat/validation"
	"github.com/nijaru/yt-chat/video"
)

type State int

const (
	AwaitingCredential State = iota
	Idle
	VideoLoaded
	Chatting
)

func (s State) String() string {
	switch s {
	case AwaitingCredential:
		return "awaiting_credential"
	case Idle:
		return "idle"
	case VideoLoaded:
		return "video_loaded"
	case Chatting:
		return "chatting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notice struct {
	Level   Level
	Message string
}

// Result reports the outcome of one user action.
type Result struct {
	State   State
	Notices []Notice
	Answer  string
}

func (r *Result) add(level Level, format string, args ...any) {
	r.Notices = append(r.Notices, Notice{Level: level, Message: fmt.Sprintf(format, args...)})
}

// VideoFetcher resolves a submitted URL. It never fails; degraded results
// carry a diagnostic in Data.Err.
type VideoFetcher interface {
	Fetch(ctx context.Context, rawURL string) video.Data
}

type KnowledgeBase interface {
	Ingest(ctx context.Context, text string, md knowledge.DocumentMetadata) error
	Ask(ctx context.Context, question string) (string, error)
	Close() error
}

// KnowledgeFactory builds a fresh, empty knowledge base for a credential.
type KnowledgeFactory func(ctx context.Context, credential string) (KnowledgeBase, error)

// Video is the most recently submitted video. Ingested reports whether its
// own transcript made it into the knowledge base.
type Video struct {
	URL          string
	Title        string
	ThumbnailURL string
	Ingested     bool
}

type Turn struct {
	Question string
	Answer   string
}

// View is a read-only copy of the controller for rendering.
type View struct {
	State         State
	HasCredential bool
	// HasKnowledge is true once any transcript has been ingested into the
	// current knowledge base, not only the current video's.
	HasKnowledge bool
	Documents    int
	Video        *Video
	Notices      []Notice
	Turns        []Turn
}

type Controller struct {
	fetcher    VideoFetcher
	newKB      KnowledgeFactory
	logger     *logrus.Entry
	mu         sync.Mutex
	credential string
	kb         KnowledgeBase
	video      *Video
	state      State
	notices    []Notice
	turns      []Turn
	documents  int
	lastUsed   atomic.Int64
}

func NewController(id string, fetcher VideoFetcher, factory KnowledgeFactory) *Controller {
	c := &Controller{
		fetcher: fetcher,
		newKB:   factory,
		logger:  logrus.WithField("session_id", id),
		state:   AwaitingCredential,
	}
	c.touch()
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCredential installs the provider credential. A different credential
// replaces the knowledge base with a new empty one and clears the video.
func (c *Controller) SetCredential(ctx context.Context, credential string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	var res Result
	if err := validation.ValidateCredential(credential); err != nil {
		res.add(LevelWarning, "Please enter your API key to continue.")
		return c.finish(res)
	}
	if c.kb != nil && credential == c.credential {
		res.add(LevelInfo, "API key is already set.")
		return c.finish(res)
	}

	kb, err := c.newKB(ctx, credential)
	if err != nil {
		c.logger.WithError(err).Error("Error creating knowledge base")
		res.add(LevelError, "Error setting up the knowledge base: %v", err)
		return c.finish(res)
	}

	if c.kb != nil {
		if err := c.kb.Close(); err != nil {
			c.logger.WithError(err).Warn("Error closing previous knowledge base")
		}
	}

	c.credential = credential
	c.kb = kb
	c.video = nil
	c.turns = nil
	c.documents = 0
	c.state = Idle
	c.logger.Info("Credential set, knowledge base ready")
	res.add(LevelSuccess, "API key set. Paste a YouTube URL to get started.")
	return c.finish(res)
}

// SubmitURL fetches the video and adds its transcript to the knowledge base
// when one exists. Earlier videos stay in the knowledge base.
func (c *Controller) SubmitURL(ctx context.Context, rawURL string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	var res Result
	if c.kb == nil {
		res.add(LevelWarning, "Please enter your API key to continue.")
		return c.finish(res)
	}
	if err := validation.ValidateURL(rawURL); err != nil {
		res.add(LevelWarning, "Please enter a YouTube URL.")
		return c.finish(res)
	}

	logger := c.logger.WithField("url", rawURL)
	data := c.fetcher.Fetch(ctx, rawURL)
	if validation.IsInvalidURL(data.Err) {
		res.add(LevelError, "Invalid URL: %v", data.Err)
		return c.finish(res)
	}
	if data.Err != nil {
		res.add(LevelError, "Error fetching video data: %v", data.Err)
	}

	v := &Video{URL: rawURL, Title: data.Title, ThumbnailURL: data.ThumbnailURL}
	if data.Transcript == video.NoTranscript {
		res.add(LevelWarning, "No transcript available for '%s'. Cannot add to knowledge base.", data.Title)
	} else if err := c.kb.Ingest(ctx, data.Transcript, knowledge.DocumentMetadata{Title: data.Title, URL: rawURL}); err != nil {
		logger.WithError(err).Error("Error adding transcript to knowledge base")
		res.add(LevelWarning, "Could not add '%s' to the knowledge base: %v", data.Title, err)
	} else {
		v.Ingested = true
		c.documents++
		logger.WithField("title", data.Title).Info("Video added to knowledge base")
		res.add(LevelSuccess, "'%s' has been added to the knowledge base!", data.Title)
	}

	c.video = v
	c.state = VideoLoaded
	return c.finish(res)
}

// Ask answers a question against everything ingested so far. The answer is
// returned exactly as the knowledge base produced it.
func (c *Controller) Ask(ctx context.Context, question string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	var res Result
	if c.kb == nil {
		res.add(LevelWarning, "Please enter your API key to continue.")
		return c.finish(res)
	}
	if c.video == nil {
		res.add(LevelWarning, "Load a video before asking questions.")
		return c.finish(res)
	}
	if err := validation.ValidateQuestion(question); err != nil {
		res.add(LevelWarning, "Invalid question: %v", err)
		return c.finish(res)
	}

	answer, err := c.kb.Ask(ctx, question)
	if err != nil {
		c.logger.WithError(err).Error("Error answering question")
		res.add(LevelError, "Error answering question: %v", err)
		return c.finish(res)
	}

	c.turns = append(c.turns, Turn{Question: question, Answer: answer})
	c.state = Chatting
	res.Answer = answer
	return c.finish(res)
}

// Snapshot returns the current view and clears pending notices.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:         c.state,
		HasCredential: c.kb != nil,
		HasKnowledge:  c.documents > 0,
		Documents:     c.documents,
		Notices:       c.notices,
		Turns:         append([]Turn(nil), c.turns...),
	}
	if c.video != nil {
		cp := *c.video
		v.Video = &cp
	}
	c.notices = nil
	return v
}

func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kb == nil {
		return nil
	}
	err := c.kb.Close()
	c.kb = nil
	c.credential = ""
	c.video = nil
	c.documents = 0
	c.state = AwaitingCredential
	return err
}

func (c *Controller) idleSince() time.Time {
	return time.Unix(0, c.lastUsed.Load())
}

func (c *Controller) touch() {
	c.lastUsed.Store(time.Now().UnixNano())
}

func (c *Controller) finish(res Result) Result {
	res.State = c.state
	c.notices = append(c.notices, res.Notices...)
	return res
}
