package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// ErrUnsupportedURL is returned for reference URLs that are not http(s).
var ErrUnsupportedURL = errors.New("reference url must be http or https")

// Reference is reference material pulled from a URL for question generation.
type Reference struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// FetchReference downloads a page and reduces it to Markdown capped at MaxContentChars.
// Plain-text responses are returned as-is. Results are cached by URL.
func FetchReference(ctx context.Context, rawURL string) (ref Reference, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	rawURL = u.String()

	key := CacheKey("ref", rawURL)
	if cached, ok := CacheLoadJSON[Reference](ctx, key); ok {
		return cached, nil
	}

	metrics.FetchRequests.Add(1)
	defer func() {
		if err != nil {
			metrics.FetchErrors.Add(1)
		}
	}()

	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	resp, err := fetchWithRetry(ctx, rawURL)
	if err != nil {
		return Reference{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := readResponseBody(resp)
	if err != nil {
		return Reference{}, fmt.Errorf("read %s: %w", rawURL, err)
	}

	ref = Reference{URL: rawURL}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		ref.Content = capContent(string(body))
	} else {
		ref.Title, ref.Content, err = htmlToReference(string(body))
		if err != nil {
			return Reference{}, fmt.Errorf("parse %s: %w", rawURL, err)
		}
	}

	CacheStoreJSON(ctx, key, ref)
	return ref, nil
}

// htmlToReference strips page chrome with goquery and converts the main content to Markdown.
func htmlToReference(page string) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").First().Attr("content")
	}

	removeSelectors := []string{
		"script", "style", "noscript", "iframe", "svg", "form",
		"header", "footer", "nav", "aside",
		".advertisement", ".ad", ".sidebar", ".comments",
		"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	}
	doc.Find(strings.Join(removeSelectors, ", ")).Remove()

	sel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	inner, err := goquery.OuterHtml(sel)
	if err != nil {
		return title, "", err
	}

	md, err := htmltomarkdown.ConvertString(inner)
	if err != nil {
		// Fall back to the text nodes.
		md = sel.Text()
	}
	return title, capContent(md), nil
}

func capContent(s string) string {
	s = strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
	if cfg.MaxContentChars > 0 {
		s = TruncateRunes(s, cfg.MaxContentChars, "...")
	}
	return s
}
