package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// Partition reads one RSS or Atom feed.
type Partition struct {
	name   string
	url    string
	parser *gofeed.Parser
}

func New(name, feedURL string, timeout time.Duration) *Partition {
	parser := gofeed.NewParser()
	parser.UserAgent = "NewsBot/1.0"
	parser.Client = &http.Client{Timeout: timeout}
	return &Partition{name: name, url: feedURL, parser: parser}
}

func (p *Partition) Name() string {
	return "feed/" + p.name
}

func (p *Partition) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	f, err := p.parser.ParseURLWithContext(p.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", p.url, err)
	}

	out := make([]domain.RawArticle, 0, len(f.Items))
	for _, item := range f.Items {
		raw := domain.RawArticle{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			Description: item.Description,
			Content:     item.Content,
			ImageURL:    itemImage(item),
			Partition:   p.Name(),
		}
		if item.PublishedParsed != nil {
			raw.PublishedAt = *item.PublishedParsed
		}
		out = append(out, raw)
	}
	return out, nil
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
