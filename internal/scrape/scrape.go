package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (compatible; NewsBot/1.0)"

// ErrUnexpectedStatus marks a page that answered but not with 200 OK.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client fetches article pages and probes image URLs.
type Client struct {
	httpClient   *http.Client
	pageTimeout  time.Duration
	probeTimeout time.Duration
}

func New(httpClient *http.Client, pageTimeout, probeTimeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient:   httpClient,
		pageTimeout:  pageTimeout,
		probeTimeout: probeTimeout,
	}
}

// Document downloads and parses the page at pageURL.
func (c *Client) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if c.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pageTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// Probe reports whether a HEAD request to target answers 200 OK.
func (c *Client) Probe(ctx context.Context, target string) bool {
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Paragraphs joins the visible text of the first n <p> elements.
func Paragraphs(doc *goquery.Document, n int) string {
	parts := make([]string, 0, n)
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if len(parts) >= n {
			return false
		}
		parts = append(parts, strings.TrimSpace(p.Text()))
		return true
	})
	return strings.Join(parts, " ")
}

// ImageSources lists absolute URLs of every <img src> in document order.
// Relative sources are resolved against the page URL.
func ImageSources(doc *goquery.Document) []string {
	var out []string
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		if doc.Url != nil {
			ref = doc.Url.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		out = append(out, ref.String())
	})
	return out
}
