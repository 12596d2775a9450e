package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/dafidxcode/tehsainesia/internal/domain"
	"github.com/dafidxcode/tehsainesia/internal/llm"
	"github.com/dafidxcode/tehsainesia/internal/scrape"
)

// Generator produces chat completions.
type Generator interface {
	Complete(ctx context.Context, r llm.Request) (string, error)
}

// PageFetcher downloads an article page.
type PageFetcher interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

type Config struct {
	MinContentLength   int
	FallbackParagraphs int
	BodyModel          string
	BodyMaxTokens      int
	SummaryModel       string
	SummaryMaxTokens   int
	Temperature        float64
}

// Transformer rewrites raw headlines into publishable articles.
type Transformer struct {
	cfg    Config
	llm    Generator
	pages  PageFetcher
	logger *slog.Logger
}

func New(cfg Config, gen Generator, pages PageFetcher, logger *slog.Logger) *Transformer {
	return &Transformer{
		cfg:    cfg,
		llm:    gen,
		pages:  pages,
		logger: logger.With("component", "transform"),
	}
}

// Rewrite returns an error when the article should be skipped. An empty
// summary is not an error; the article is published without one.
func (t *Transformer) Rewrite(ctx context.Context, raw domain.RawArticle) (*domain.PublishableArticle, error) {
	text := t.workingText(ctx, raw)

	body, err := t.llm.Complete(ctx, llm.Request{
		Model: t.cfg.BodyModel,
		Messages: []llm.Message{
			{Role: "system", Content: writerSystemPrompt},
			{Role: "user", Content: bodyPrompt(raw.Title, text, raw.URL)},
		},
		MaxTokens:   t.cfg.BodyMaxTokens,
		Temperature: t.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite body: %w", err)
	}
	body = stripFences(body)
	if body == "" {
		return nil, errors.New("rewrite body: empty completion")
	}

	headline := Headline(body)
	if headline == "" {
		headline = raw.Title
	}

	summary, err := t.llm.Complete(ctx, llm.Request{
		Model: t.cfg.SummaryModel,
		Messages: []llm.Message{
			{Role: "system", Content: seoSystemPrompt},
			{Role: "user", Content: summaryPrompt(headline)},
		},
		MaxTokens:   t.cfg.SummaryMaxTokens,
		Temperature: t.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	return &domain.PublishableArticle{
		Title:      headline,
		Body:       body,
		SourceURL:  raw.URL,
		SEOSummary: strings.Trim(strings.TrimSpace(summary), `"`),
	}, nil
}

func (t *Transformer) workingText(ctx context.Context, raw domain.RawArticle) string {
	text := raw.Description + " " + raw.Content
	if utf8.RuneCountInString(text) >= t.cfg.MinContentLength {
		return text
	}

	doc, err := t.pages.Document(ctx, raw.URL)
	if err != nil {
		t.logger.Warn("Could not fetch additional content", "url", raw.URL, "error", err)
		return text
	}
	return text + " " + scrape.Paragraphs(doc, t.cfg.FallbackParagraphs)
}

// Headline returns the text of the first <h1> in markup, or "".
func Headline(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
