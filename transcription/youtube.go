package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/utils"
)

const (
	defaultWatchURL      = "https://www.youtube.com/watch?v="
	defaultInnertubeURL  = "https://www.youtube.com/youtubei/v1/"
	playerResponseMarker = "ytInitialPlayerResponse = "
	userAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	webClientVersion     = "2.20250222.10.00"
	androidClientVersion = "20.10.38"
	androidUserAgent     = "com.google.android.youtube/" + androidClientVersion + " (Linux; U; Android 11) gzip"
)

// YouTubeProvider fetches captions without an API key. It tries the caption
// tracks advertised on the watch page first, then the transcript engagement
// panel, then the tracks returned to the Android player.
type YouTubeProvider struct {
	HTTPClient   *http.Client
	Langs        []string
	WatchURL     string
	InnertubeURL string
	Retry        RetryPolicy
}

func NewYouTubeProvider(client *http.Client, langs []string) *YouTubeProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &YouTubeProvider{
		HTTPClient:   client,
		Langs:        langs,
		WatchURL:     defaultWatchURL,
		InnertubeURL: defaultInnertubeURL,
		Retry:        DefaultRetryPolicy,
	}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (pr playerResponse) tracks() ([]captionTrack, error) {
	if pr.Captions == nil || len(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return nil, errors.Wrap(ErrNoCaptions, pr.PlayabilityStatus.Reason)
		}
		return nil, ErrNoCaptions
	}
	return pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

type transcriptResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *struct {
											StartMs string `json:"startMs"`
											EndMs   string `json:"endMs"`
											Snippet struct {
												Runs []struct {
													Text string `json:"text"`
												} `json:"runs"`
											} `json:"snippet"`
										} `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

var transcriptParamsRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

type strategy struct {
	name  string
	fetch func(ctx context.Context, videoID string) ([]Segment, error)
}

func (p *YouTubeProvider) Segments(ctx context.Context, videoID string) ([]Segment, error) {
	logger := logrus.WithField("video_id", videoID)

	strategies := []strategy{
		{"watch_page", p.segmentsFromWatchPage},
		{"engagement_panel", p.segmentsFromEngagementPanel},
		{"player", p.segmentsFromPlayer},
	}

	var cause error
	for _, s := range strategies {
		segments, err := s.fetch(ctx, videoID)
		if err == nil && len(segments) == 0 {
			err = errors.Wrap(ErrNoCaptions, "transcript is empty")
		}
		if err == nil {
			logger.WithFields(logrus.Fields{
				"strategy": s.name,
				"segments": len(segments),
			}).Info("Transcript fetched")
			return segments, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		logger.WithError(err).WithField("strategy", s.name).Warn("Transcript strategy failed")
		if cause == nil || (errors.Is(err, ErrNoCaptions) && !errors.Is(cause, ErrNoCaptions)) {
			cause = err
		}
	}

	return nil, errors.Wrap(cause, "all transcript strategies failed")
}

func (p *YouTubeProvider) segmentsFromWatchPage(ctx context.Context, videoID string) ([]Segment, error) {
	page, err := p.get(ctx, p.WatchURL+videoID)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching watch page")
	}

	tracks, err := captionTracks(page)
	if err != nil {
		return nil, err
	}
	return p.segmentsFromTracks(ctx, videoID, tracks)
}

// segmentsFromEngagementPanel asks /next for the transcript panel token and
// exchanges it at /get_transcript.
func (p *YouTubeProvider) segmentsFromEngagementPanel(ctx context.Context, videoID string) ([]Segment, error) {
	visitorData := newVisitorData()
	client := map[string]any{
		"clientName":    "WEB",
		"clientVersion": webClientVersion,
		"visitorData":   visitorData,
		"hl":            "en",
		"gl":            "US",
	}
	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("X-Youtube-Client-Name", "1")
	header.Set("X-Youtube-Client-Version", webClientVersion)
	header.Set("X-Goog-Visitor-Id", visitorData)
	header.Set("Origin", "https://www.youtube.com")
	header.Set("Referer", "https://www.youtube.com/")

	next, err := p.post(ctx, "next", map[string]any{
		"videoId": videoID,
		"context": map[string]any{"client": client},
	}, header)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching engagement panels")
	}

	params, err := transcriptParams(next)
	if err != nil {
		return nil, err
	}

	body, err := p.post(ctx, "get_transcript", map[string]any{
		"params":  params,
		"context": map[string]any{"client": client},
	}, header)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching transcript panel")
	}

	var resp transcriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "error decoding transcript panel")
	}
	return panelSegments(resp), nil
}

// segmentsFromPlayer reads caption tracks from the Android client's player
// response, which often lists tracks the web page withholds.
func (p *YouTubeProvider) segmentsFromPlayer(ctx context.Context, videoID string) ([]Segment, error) {
	header := http.Header{}
	header.Set("User-Agent", androidUserAgent)
	header.Set("X-Youtube-Client-Name", "3")
	header.Set("X-Youtube-Client-Version", androidClientVersion)

	body, err := p.post(ctx, "player", map[string]any{
		"videoId": videoID,
		"context": map[string]any{
			"client": map[string]any{
				"clientName":        "ANDROID",
				"clientVersion":     androidClientVersion,
				"androidSdkVersion": 30,
				"hl":                "en",
				"gl":                "US",
			},
		},
		"racyCheckOk":    true,
		"contentCheckOk": true,
	}, header)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching player response")
	}

	var pr playerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, errors.Wrap(err, "error decoding player response")
	}
	tracks, err := pr.tracks()
	if err != nil {
		return nil, err
	}
	return p.segmentsFromTracks(ctx, videoID, tracks)
}

func (p *YouTubeProvider) segmentsFromTracks(ctx context.Context, videoID string, tracks []captionTrack) ([]Segment, error) {
	track, ok := pickBestTrack(tracks, p.Langs)
	if !ok {
		return nil, errors.Wrap(ErrNoCaptions, "all caption tracks require a browser token")
	}
	logrus.WithFields(logrus.Fields{
		"video_id": videoID,
		"lang":     track.LanguageCode,
		"kind":     track.Kind,
	}).Debug("Selected caption track")

	doc, err := p.get(ctx, track.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching timedtext")
	}
	return parseTimedText(doc)
}

func (p *YouTubeProvider) get(ctx context.Context, url string) ([]byte, error) {
	return p.Retry.do(ctx, url, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		return p.send(req)
	})
}

// post sends a JSON payload to an Innertube endpoint.
func (p *YouTubeProvider) post(ctx context.Context, endpoint string, payload any, header http.Header) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding request")
	}
	url := p.InnertubeURL + endpoint + "?prettyPrint=false"

	return p.Retry.do(ctx, url, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("Content-Type", "application/json")
		return p.send(req)
	})
}

func (p *YouTubeProvider) send(req *http.Request) ([]byte, error) {
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
}

func captionTracks(page []byte) ([]captionTrack, error) {
	idx := bytes.Index(page, []byte(playerResponseMarker))
	if idx < 0 {
		return nil, errors.New("player response not found in watch page")
	}

	raw := extractJSONObject(page[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("malformed player response in watch page")
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, errors.Wrap(err, "error decoding player response")
	}
	return pr.tracks()
}

// transcriptParams pulls the get_transcript token out of a raw /next
// response. The token is URL-encoded there but expected decoded.
func transcriptParams(next []byte) (string, error) {
	m := transcriptParamsRE.FindSubmatch(next)
	if len(m) < 2 {
		return "", errors.Wrap(ErrNoCaptions, "no transcript panel for this video")
	}
	params, err := url.QueryUnescape(string(m[1]))
	if err != nil {
		return string(m[1]), nil
	}
	return params, nil
}

func panelSegments(resp transcriptResponse) []Segment {
	var segments []Segment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		list := action.UpdateEngagementPanelAction.Content.TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.TranscriptSegmentListRenderer.InitialSegments
		for _, item := range list {
			seg := item.TranscriptSegmentRenderer
			if seg == nil {
				continue
			}
			runs := make([]string, 0, len(seg.Snippet.Runs))
			for _, run := range seg.Snippet.Runs {
				runs = append(runs, run.Text)
			}
			text := strings.Join(strings.Fields(strings.Join(runs, " ")), " ")
			if text == "" {
				continue
			}
			start, _ := strconv.ParseFloat(seg.StartMs, 64)
			end, _ := strconv.ParseFloat(seg.EndMs, 64)
			segments = append(segments, Segment{
				Text:     text,
				Start:    start / 1000,
				Duration: max(end-start, 0) / 1000,
			})
		}
	}
	return segments
}

func newVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return string(b)
}

// extractJSONObject returns the balanced {...} object at the start of data,
// or nil when data does not start with a complete object.
func extractJSONObject(data []byte) []byte {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}

	depth := 0
	inString := false
	escaped := false
	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data[:i+1]
			}
		}
	}
	return nil
}

// needsPoToken reports whether a track URL can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers a manual track in one of langs, then an
// auto-generated one, then any English track, then the first usable track.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

func parseTimedText(doc []byte) ([]Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(doc, &tt); err != nil {
		return nil, errors.Wrap(err, "error parsing timedtext XML")
	}

	segments := make([]Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := utils.CleanCaption(line.Text)
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		segments = append(segments, Segment{Text: text, Start: start, Duration: dur})
	}
	return segments, nil
}
