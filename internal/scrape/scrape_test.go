package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentAndParagraphs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<p> one </p><p>two</p><div><p>three</p></div><p>four</p>
		</body></html>`))
	}))
	defer server.Close()

	c := New(server.Client(), time.Second, time.Second)
	doc, err := c.Document(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "one two three", Paragraphs(doc, 3))
	assert.Equal(t, "one two three four", Paragraphs(doc, 10))
}

func TestDocument_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := New(server.Client(), time.Second, time.Second).Document(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/ok.jpg" {
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.Client(), time.Second, time.Second)
	assert.True(t, c.Probe(context.Background(), server.URL+"/ok.jpg"))
	assert.False(t, c.Probe(context.Background(), server.URL+"/missing.jpg"))
	assert.False(t, c.Probe(context.Background(), "http://127.0.0.1:1/unreachable.jpg"))
	assert.False(t, c.Probe(context.Background(), "::bad url"))
}

func TestImageSources_ResolvesRelative(t *testing.T) {
	html := `<img src="/a.png"><img src="https://cdn.example.com/b.jpg"><img src="data:image/png;base64,xx"><img src="">`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	doc.Url, err = url.Parse("https://news.example.com/story/1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://news.example.com/a.png",
		"https://cdn.example.com/b.jpg",
	}, ImageSources(doc))
}
