package metadata

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// PageProvider reads Open Graph tags from the video's watch page.
type PageProvider struct {
	HTTPClient *http.Client
}

func NewPageProvider(client *http.Client) *PageProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &PageProvider{HTTPClient: client}
}

func (p *PageProvider) Lookup(ctx context.Context, rawURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error building request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching watch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("watch page returned status code %d", resp.StatusCode)
	}

	return parsePage(io.LimitReader(resp.Body, 6*1024*1024))
}

func parsePage(r io.Reader) (*Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing watch page")
	}

	title := metaContent(doc, "og:title")
	if title == "" {
		title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), "- YouTube"))
	}
	thumbnail := metaContent(doc, "og:image")

	return withDefaults(title, thumbnail), nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}
