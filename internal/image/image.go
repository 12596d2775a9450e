package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dafidxcode/tehsainesia/internal/domain"
	"github.com/dafidxcode/tehsainesia/internal/scrape"
)

// ErrNotFound means a strategy had nothing usable; the next one is tried.
var ErrNotFound = errors.New("image not found")

// Strategy is one step of the image lookup chain.
type Strategy interface {
	Name() string
	Find(ctx context.Context, raw domain.RawArticle) (string, error)
}

// Prober reports whether an image URL is reachable.
type Prober interface {
	Probe(ctx context.Context, url string) bool
}

type PageFetcher interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

// Resolver runs its strategies in order and never fails.
type Resolver struct {
	strategies []Strategy
	generic    string
	logger     *slog.Logger
}

func NewResolver(strategies []Strategy, genericURL string, logger *slog.Logger) *Resolver {
	return &Resolver{
		strategies: strategies,
		generic:    genericURL,
		logger:     logger.With("component", "image"),
	}
}

// Default builds the source-image, page-scan, title-placeholder chain.
func Default(prober Prober, pages PageFetcher, placeholderURL, genericTopics string, logger *slog.Logger) *Resolver {
	return NewResolver([]Strategy{
		SourceImage{Prober: prober},
		PageImage{Pages: pages, Prober: prober},
		TitlePlaceholder{BaseURL: placeholderURL},
	}, placeholderURL+"?"+genericTopics, logger)
}

func (r *Resolver) Resolve(ctx context.Context, raw domain.RawArticle) string {
	for _, s := range r.strategies {
		found, err := s.Find(ctx, raw)
		if err == nil {
			r.logger.Debug("image resolved", "strategy", s.Name(), "url", found)
			return found
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		r.logger.Error("Error getting image", "strategy", s.Name(), "error", err)
		break
	}
	return r.generic
}

// SourceImage accepts the article's own image when it answers a HEAD probe.
type SourceImage struct {
	Prober Prober
}

func (SourceImage) Name() string { return "source" }

func (s SourceImage) Find(ctx context.Context, raw domain.RawArticle) (string, error) {
	if raw.ImageURL == "" || !s.Prober.Probe(ctx, raw.ImageURL) {
		return "", ErrNotFound
	}
	return raw.ImageURL, nil
}

// PageImage scans the source page for the first reachable content image.
type PageImage struct {
	Pages  PageFetcher
	Prober Prober
}

func (PageImage) Name() string { return "page" }

func (p PageImage) Find(ctx context.Context, raw domain.RawArticle) (string, error) {
	doc, err := p.Pages.Document(ctx, raw.URL)
	if errors.Is(err, scrape.ErrUnexpectedStatus) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load page: %w", err)
	}

	for _, src := range scrape.ImageSources(doc) {
		if decorative(src) {
			continue
		}
		if p.Prober.Probe(ctx, src) {
			return src, nil
		}
	}
	return "", ErrNotFound
}

func decorative(src string) bool {
	s := strings.ToLower(src)
	return strings.Contains(s, "icon") || strings.Contains(s, "logo") || strings.Contains(s, "avatar")
}

// TitlePlaceholder derives a stock-image URL from the first three title words.
type TitlePlaceholder struct {
	BaseURL string
}

func (TitlePlaceholder) Name() string { return "placeholder" }

func (t TitlePlaceholder) Find(_ context.Context, raw domain.RawArticle) (string, error) {
	words := strings.Fields(raw.Title)
	if len(words) == 0 {
		return "", ErrNotFound
	}
	if len(words) > 3 {
		words = words[:3]
	}
	for i, w := range words {
		words[i] = url.QueryEscape(w)
	}
	return t.BaseURL + "?" + strings.Join(words, "+"), nil
}
