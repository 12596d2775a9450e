package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

const SourceID = "newsapi"

// Config holds NewsAPI client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Categories     []string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client queries the top-headlines endpoint with retry and backoff.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	categories     []string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		categories:     cfg.Categories,
		maxAttempts:    attempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// Partition returns the per-country slice of this client.
func (c *Client) Partition(country string) *Partition {
	return &Partition{client: c, country: country}
}

// Probe issues a single unretried request, used by the connectivity check.
func (c *Client) Probe(ctx context.Context, country string) error {
	category := "science"
	if len(c.categories) > 0 {
		category = c.categories[0]
	}
	resp, err := c.doRequest(ctx, c.headlinesURL(country, category))
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("news api status %q: %s", resp.Status, resp.Message)
	}
	return nil
}

// Partition fetches every configured category for one country.
type Partition struct {
	client  *Client
	country string
}

func (p *Partition) Name() string {
	return SourceID + "/" + p.country
}

// Fetch runs one query per category. A transport or decode failure in any
// query fails the whole partition; a non-ok status only drops that category.
func (p *Partition) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	var out []domain.RawArticle

	for _, category := range p.client.categories {
		resp, err := p.client.fetch(ctx, p.client.headlinesURL(p.country, category))
		if err != nil {
			return nil, fmt.Errorf("fetch %s/%s: %w", p.country, category, err)
		}

		if resp.Status != "ok" {
			p.client.logger.Warn("news api returned non-ok status",
				"country", p.country,
				"category", category,
				"status", resp.Status,
				"code", resp.Code,
				"message", resp.Message,
			)
			continue
		}

		out = append(out, p.client.transform(resp.Articles, p.Name())...)
	}

	return out, nil
}

func (c *Client) headlinesURL(country, category string) string {
	q := url.Values{}
	q.Set("country", country)
	q.Set("category", category)
	return c.baseURL + "/top-headlines?" + q.Encode()
}

func (c *Client) fetch(ctx context.Context, target string) (*Response, error) {
	var resp *Response
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err = c.doRequest(ctx, target)
		if err == nil {
			return resp, nil
		}

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

type statusError struct {
	code int
	body Response
}

func (e *statusError) Error() string {
	if e.body.Message != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.code, e.body.Message)
	}
	return fmt.Sprintf("unexpected status: %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

func (c *Client) doRequest(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "NewsBot/1.0")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp Response
	if resp.StatusCode != http.StatusOK {
		// error bodies carry {status:"error", code, message}
		_ = json.NewDecoder(resp.Body).Decode(&apiResp)
		return nil, &statusError{code: resp.StatusCode, body: apiResp}
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &apiResp, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func (c *Client) transform(items []Article, partition string) []domain.RawArticle {
	articles := make([]domain.RawArticle, 0, len(items))

	for _, a := range items {
		raw := domain.RawArticle{
			Title:       a.Title,
			URL:         a.URL,
			Description: deref(a.Description),
			Content:     deref(a.Content),
			ImageURL:    deref(a.URLToImage),
			Partition:   partition,
		}

		if a.PublishedAt != "" {
			publishedAt, err := time.Parse(time.RFC3339, a.PublishedAt)
			if err != nil {
				c.logger.Debug("failed to parse date", "url", a.URL, "date", a.PublishedAt)
			} else {
				raw.PublishedAt = publishedAt
			}
		}

		articles = append(articles, raw)
	}

	return articles
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
