package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-chat/knowledge"
	"github.com/nijaru/yt-chat/validation"
	"github.com/nijaru/yt-chat/video"
)

type stubFetcher struct {
	results map[string]video.Data
	calls   []string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) video.Data {
	s.calls = append(s.calls, rawURL)
	if d, ok := s.results[rawURL]; ok {
		return d
	}
	if _, err := validation.ExtractVideoID(rawURL); err != nil {
		return video.Data{Title: video.UnknownTitle, Transcript: video.NoTranscript, Err: err}
	}
	return video.Data{Title: video.UnknownTitle, Transcript: video.NoTranscript, Err: errors.New("lookup failed")}
}

type ingested struct {
	text string
	md   knowledge.DocumentMetadata
}

type stubKB struct {
	credential string
	ingests    []ingested
	questions  []string
	ingestErr  error
	askErr     error
	answer     string
	closed     bool
}

func (s *stubKB) Ingest(_ context.Context, text string, md knowledge.DocumentMetadata) error {
	if s.ingestErr != nil {
		return &knowledge.IngestionError{Title: md.Title, Err: s.ingestErr}
	}
	s.ingests = append(s.ingests, ingested{text: text, md: md})
	return nil
}

func (s *stubKB) Ask(_ context.Context, question string) (string, error) {
	s.questions = append(s.questions, question)
	if s.askErr != nil {
		return "", &knowledge.QueryError{Question: question, Err: s.askErr}
	}
	return s.answer, nil
}

func (s *stubKB) Close() error {
	s.closed = true
	return nil
}

type kbRecorder struct {
	built []*stubKB
	err   error
}

func (r *kbRecorder) factory(_ context.Context, credential string) (KnowledgeBase, error) {
	if r.err != nil {
		return nil, r.err
	}
	kb := &stubKB{credential: credential, answer: "This video is about Go."}
	r.built = append(r.built, kb)
	return kb, nil
}

const (
	goURL     = "https://www.youtube.com/watch?v=abc&x=1"
	shortsURL = "https://www.youtube.com/shorts/def?y=2"
	silentURL = "https://www.youtube.com/watch?v=silent"
)

func newTestController() (*Controller, *stubFetcher, *kbRecorder) {
	fetcher := &stubFetcher{results: map[string]video.Data{
		goURL:     {Title: "Go Tour", Transcript: "welcome to go", ThumbnailURL: "https://i.ytimg.com/vi/abc/hq.jpg"},
		shortsURL: {Title: "Short", Transcript: "a short about channels", ThumbnailURL: "https://i.ytimg.com/vi/def/hq.jpg"},
		silentURL: {Title: video.UnknownTitle, Transcript: video.NoTranscript, Err: errors.New("no captions")},
	}}
	rec := &kbRecorder{}
	return NewController("test", fetcher, rec.factory), fetcher, rec
}

func lastNotice(t *testing.T, res Result) Notice {
	t.Helper()
	require.NotEmpty(t, res.Notices)
	return res.Notices[len(res.Notices)-1]
}

func TestControllerRequiresCredential(t *testing.T) {
	ctx := context.Background()
	c, fetcher, rec := newTestController()
	assert.Equal(t, AwaitingCredential, c.State())

	res := c.SubmitURL(ctx, goURL)
	assert.Equal(t, AwaitingCredential, res.State)
	assert.Equal(t, LevelWarning, lastNotice(t, res).Level)
	assert.Empty(t, fetcher.calls)

	res = c.Ask(ctx, "hello?")
	assert.Equal(t, AwaitingCredential, res.State)

	res = c.SetCredential(ctx, "   ")
	assert.Equal(t, AwaitingCredential, res.State)
	assert.Equal(t, LevelWarning, lastNotice(t, res).Level)
	assert.Empty(t, rec.built)
}

func TestControllerSetCredential(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()

	res := c.SetCredential(ctx, "key-1")
	assert.Equal(t, Idle, res.State)
	require.Len(t, rec.built, 1)
	assert.Equal(t, "key-1", rec.built[0].credential)

	res = c.SetCredential(ctx, "key-1")
	assert.Equal(t, Idle, res.State)
	assert.Len(t, rec.built, 1)

	c.SubmitURL(ctx, goURL)
	res = c.SetCredential(ctx, "key-2")
	assert.Equal(t, Idle, res.State)
	require.Len(t, rec.built, 2)
	assert.True(t, rec.built[0].closed)
	assert.Nil(t, c.Snapshot().Video)
}

func TestControllerCredentialFactoryFailure(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	rec.err = errors.New("disk full")

	res := c.SetCredential(ctx, "key")
	assert.Equal(t, AwaitingCredential, res.State)
	assert.Equal(t, LevelError, lastNotice(t, res).Level)
}

func TestControllerSubmitURLIngestsTranscript(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")

	res := c.SubmitURL(ctx, goURL)
	assert.Equal(t, VideoLoaded, res.State)
	assert.Equal(t, Notice{Level: LevelSuccess, Message: "'Go Tour' has been added to the knowledge base!"}, lastNotice(t, res))

	kb := rec.built[0]
	require.Len(t, kb.ingests, 1)
	assert.Equal(t, "welcome to go", kb.ingests[0].text)
	assert.Equal(t, knowledge.DocumentMetadata{Title: "Go Tour", URL: goURL}, kb.ingests[0].md)

	view := c.Snapshot()
	require.NotNil(t, view.Video)
	assert.True(t, view.Video.Ingested)
	assert.Equal(t, "https://i.ytimg.com/vi/abc/hq.jpg", view.Video.ThumbnailURL)
}

func TestControllerSubmitURLWithoutTranscript(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")

	res := c.SubmitURL(ctx, silentURL)
	assert.Equal(t, VideoLoaded, res.State)
	require.Len(t, res.Notices, 2)
	assert.Equal(t, LevelError, res.Notices[0].Level)
	assert.Equal(t, Notice{Level: LevelWarning, Message: "No transcript available for 'Unknown Title'. Cannot add to knowledge base."}, res.Notices[1])
	assert.Empty(t, rec.built[0].ingests)

	view := c.Snapshot()
	require.NotNil(t, view.Video)
	assert.False(t, view.Video.Ingested)

	// chat still works against the empty knowledge base
	res = c.Ask(ctx, "What is this about?")
	assert.Equal(t, Chatting, res.State)
	assert.Equal(t, "This video is about Go.", res.Answer)
}

func TestControllerSubmitInvalidURL(t *testing.T) {
	ctx := context.Background()
	c, fetcher, rec := newTestController()
	c.SetCredential(ctx, "key")

	res := c.SubmitURL(ctx, "https://example.com/video")
	assert.Equal(t, Idle, res.State)
	assert.Equal(t, LevelError, lastNotice(t, res).Level)
	assert.Contains(t, lastNotice(t, res).Message, "Invalid URL")
	assert.Empty(t, rec.built[0].ingests)

	res = c.SubmitURL(ctx, "  ")
	assert.Equal(t, Idle, res.State)
	assert.Equal(t, LevelWarning, lastNotice(t, res).Level)
	assert.Equal(t, []string{"https://example.com/video"}, fetcher.calls)
}

func TestControllerIngestionFailure(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")
	rec.built[0].ingestErr = errors.New("quota exceeded")

	res := c.SubmitURL(ctx, goURL)
	assert.Equal(t, VideoLoaded, res.State)
	assert.Equal(t, LevelWarning, lastNotice(t, res).Level)
	assert.Contains(t, lastNotice(t, res).Message, "quota exceeded")

	view := c.Snapshot()
	require.NotNil(t, view.Video)
	assert.Equal(t, "Go Tour", view.Video.Title)
	assert.False(t, view.Video.Ingested)
}

func TestControllerAcceptsSchemelessURLs(t *testing.T) {
	ctx := context.Background()
	c, fetcher, rec := newTestController()
	fetcher.results["youtube.com/watch?v=abc"] = video.Data{Title: "Go Tour", Transcript: "welcome to go"}
	fetcher.results["www.youtube.com/shorts/def?y=2"] = video.Data{Title: "Short", Transcript: "channels"}
	c.SetCredential(ctx, "key")

	for _, u := range []string{"youtube.com/watch?v=abc", "www.youtube.com/shorts/def?y=2"} {
		res := c.SubmitURL(ctx, u)
		assert.Equal(t, VideoLoaded, res.State, u)
		assert.Equal(t, LevelSuccess, lastNotice(t, res).Level, u)
	}

	assert.Equal(t, []string{"youtube.com/watch?v=abc", "www.youtube.com/shorts/def?y=2"}, fetcher.calls)
	require.Len(t, rec.built[0].ingests, 2)
	assert.Equal(t, "youtube.com/watch?v=abc", rec.built[0].ingests[0].md.URL)
}

func TestControllerKnowledgeSurvivesVideoWithoutTranscript(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")

	c.SubmitURL(ctx, goURL)
	c.SubmitURL(ctx, silentURL)

	view := c.Snapshot()
	require.NotNil(t, view.Video)
	assert.False(t, view.Video.Ingested)
	assert.True(t, view.HasKnowledge)
	assert.Equal(t, 1, view.Documents)
	assert.Len(t, rec.built[0].ingests, 1)

	c.SetCredential(ctx, "other-key")
	view = c.Snapshot()
	assert.False(t, view.HasKnowledge)
	assert.Equal(t, 0, view.Documents)
}

func TestControllerVideosAreAdditive(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")

	c.SubmitURL(ctx, goURL)
	c.SubmitURL(ctx, shortsURL)
	c.SubmitURL(ctx, goURL)

	assert.Len(t, rec.built, 1)
	assert.Len(t, rec.built[0].ingests, 3)
	assert.Equal(t, 3, c.Snapshot().Documents)
	assert.Equal(t, "Go Tour", c.Snapshot().Video.Title)
}

func TestControllerAsk(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")

	res := c.Ask(ctx, "What is this about?")
	assert.Equal(t, Idle, res.State)
	assert.Equal(t, LevelWarning, lastNotice(t, res).Level)

	c.SubmitURL(ctx, goURL)

	res = c.Ask(ctx, "")
	assert.Equal(t, VideoLoaded, res.State)
	assert.Empty(t, rec.built[0].questions)

	res = c.Ask(ctx, "What is this about?")
	assert.Equal(t, Chatting, res.State)
	assert.Equal(t, "This video is about Go.", res.Answer)

	res = c.Ask(ctx, "Anything else?")
	assert.Equal(t, Chatting, res.State)

	view := c.Snapshot()
	assert.Equal(t, []Turn{
		{Question: "What is this about?", Answer: "This video is about Go."},
		{Question: "Anything else?", Answer: "This video is about Go."},
	}, view.Turns)
}

func TestControllerAskFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	c.SetCredential(ctx, "key")
	c.SubmitURL(ctx, goURL)
	rec.built[0].askErr = errors.New("invalid api key")

	res := c.Ask(ctx, "What is this about?")
	assert.Equal(t, VideoLoaded, res.State)
	assert.Equal(t, LevelError, lastNotice(t, res).Level)
	assert.Empty(t, c.Snapshot().Turns)
	assert.Len(t, rec.built[0].ingests, 1)

	rec.built[0].askErr = nil
	res = c.Ask(ctx, "What is this about?")
	assert.Equal(t, Chatting, res.State)
}

func TestSnapshotClearsNotices(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController()
	c.SetCredential(ctx, "key")

	assert.NotEmpty(t, c.Snapshot().Notices)
	assert.Empty(t, c.Snapshot().Notices)
}

func TestControllerClose(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestController()
	require.NoError(t, c.Close())

	c.SetCredential(ctx, "key")
	require.NoError(t, c.Close())
	assert.True(t, rec.built[0].closed)
	assert.Equal(t, AwaitingCredential, c.State())
}
