package transform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dafidxcode/tehsainesia/internal/domain"
	"github.com/dafidxcode/tehsainesia/internal/llm"
)

type recorder struct {
	calls []string
}

type fakeLLM struct {
	rec      *recorder
	body     string
	summary  string
	bodyErr  error
	summErr  error
	requests []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, r llm.Request) (string, error) {
	f.rec.calls = append(f.rec.calls, "llm:"+r.Model)
	f.requests = append(f.requests, r)
	if r.Model == "body" {
		return f.body, f.bodyErr
	}
	return f.summary, f.summErr
}

type fakePages struct {
	rec  *recorder
	html string
	err  error
}

func (f *fakePages) Document(_ context.Context, url string) (*goquery.Document, error) {
	f.rec.calls = append(f.rec.calls, "page:"+url)
	if f.err != nil {
		return nil, f.err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

func newTransformer(gen Generator, pages PageFetcher) *Transformer {
	return New(Config{
		MinContentLength:   200,
		FallbackParagraphs: 5,
		BodyModel:          "body",
		BodyMaxTokens:      1500,
		SummaryModel:       "summary",
		SummaryMaxTokens:   100,
		Temperature:        0.7,
	}, gen, pages, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRewrite_ThinContentFetchesPageFirst(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "<h1>Stars Collide</h1><p>x</p>", summary: `"Two stars merge."`}
	pages := &fakePages{rec: rec, html: "<p>p1</p><p>p2</p>"}

	out, err := newTransformer(gen, pages).Rewrite(context.Background(), domain.RawArticle{
		Title:       "Neutron stars",
		URL:         "https://src.example/a",
		Description: "short",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"page:https://src.example/a", "llm:body", "llm:summary"}, rec.calls)
	assert.Contains(t, gen.requests[0].Messages[1].Content, "short  p1 p2")
	assert.Equal(t, 1500, gen.requests[0].MaxTokens)
	assert.Equal(t, 100, gen.requests[1].MaxTokens)
	assert.Contains(t, gen.requests[1].Messages[1].Content, "Stars Collide")

	assert.Equal(t, "Stars Collide", out.Title)
	assert.Equal(t, "<h1>Stars Collide</h1><p>x</p>", out.Body)
	assert.Equal(t, "https://src.example/a", out.SourceURL)
	assert.Equal(t, "Two stars merge.", out.SEOSummary)
}

func TestRewrite_LongContentSkipsPage(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "<p>no headline</p>", summary: "s"}

	out, err := newTransformer(gen, &fakePages{rec: rec}).Rewrite(context.Background(), domain.RawArticle{
		Title:   "Original",
		URL:     "https://src.example/b",
		Content: strings.Repeat("a", 250),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"llm:body", "llm:summary"}, rec.calls)
	assert.Equal(t, "Original", out.Title)
}

func TestRewrite_PageFailureContinues(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "<h1>T</h1>", summary: "s"}

	_, err := newTransformer(gen, &fakePages{rec: rec, err: errors.New("timeout")}).
		Rewrite(context.Background(), domain.RawArticle{Title: "t", URL: "u"})
	require.NoError(t, err)
	assert.Len(t, rec.calls, 3)
}

func TestRewrite_BodyFailure(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, bodyErr: errors.New("quota")}

	_, err := newTransformer(gen, &fakePages{rec: rec}).
		Rewrite(context.Background(), domain.RawArticle{Title: "t", URL: "u", Content: strings.Repeat("a", 300)})
	require.Error(t, err)
	assert.Equal(t, []string{"llm:body"}, rec.calls)
}

func TestRewrite_SummaryFailureSkipsArticle(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "<h1>T</h1>", summErr: errors.New("quota")}

	out, err := newTransformer(gen, &fakePages{rec: rec}).
		Rewrite(context.Background(), domain.RawArticle{Title: "t", URL: "u", Content: strings.Repeat("a", 300)})
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "<h1>A</h1>", stripFences("```html\n<h1>A</h1>\n```"))
	assert.Equal(t, "<h1>A</h1>", stripFences("  <h1>A</h1> "))
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "First", Headline("<h1> First </h1><h1>Second</h1>"))
	assert.Empty(t, Headline("<h2>none</h2>"))
}

func TestRewrite_MultibyteThinContentFetchesPage(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "<h1>T</h1>", summary: "s"}
	pages := &fakePages{rec: rec, html: "<p>p1</p>"}

	// 81 characters, 241 bytes.
	_, err := newTransformer(gen, pages).Rewrite(context.Background(), domain.RawArticle{
		Title:       "宇宙",
		URL:         "https://src.example/jp",
		Description: strings.Repeat("宇", 80),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"page:https://src.example/jp", "llm:body", "llm:summary"}, rec.calls)
}

func TestRewrite_EmptySummaryPublishesWithout(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "<h1>T</h1>", summary: "  "}

	out, err := newTransformer(gen, &fakePages{rec: rec}).
		Rewrite(context.Background(), domain.RawArticle{Title: "t", URL: "u", Content: strings.Repeat("a", 300)})
	require.NoError(t, err)
	assert.Equal(t, "T", out.Title)
	assert.Empty(t, out.SEOSummary)
}

func TestRewrite_EmptyBodySkipsArticle(t *testing.T) {
	rec := &recorder{}
	gen := &fakeLLM{rec: rec, body: "```html\n```", summary: "s"}

	_, err := newTransformer(gen, &fakePages{rec: rec}).
		Rewrite(context.Background(), domain.RawArticle{Title: "t", URL: "u", Content: strings.Repeat("a", 300)})
	require.Error(t, err)
	assert.Equal(t, []string{"llm:body"}, rec.calls)
}
