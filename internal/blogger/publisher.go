package blogger

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	bloggerapi "google.golang.org/api/blogger/v3"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// Publisher posts rewritten articles in two phases: create, then enrich the
// created post with the SEO summary.
type Publisher struct {
	client *Client
	author string
	labels []string
	logger *slog.Logger
}

func NewPublisher(client *Client, author string, labels []string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		author: author,
		labels: labels,
		logger: logger.With("component", "blogger"),
	}
}

// Publish succeeds iff the post was created. A failed enrichment is only
// reported through Post.Enriched.
func (p *Publisher) Publish(ctx context.Context, article *domain.PublishableArticle, imageURL string) (*domain.Post, error) {
	created, err := p.client.InsertPost(ctx, &bloggerapi.Post{
		Kind:    "blogger#post",
		Title:   article.Title,
		Content: Markup(article, imageURL),
		Labels:  p.labels,
		Author:  &bloggerapi.PostAuthor{DisplayName: p.author},
	})
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:    created.Id,
		URL:   created.Url,
		Title: article.Title,
	}

	if article.SEOSummary == "" {
		return post, nil
	}

	enriched := *created
	enriched.Content = fmt.Sprintf("<!-- meta-description: %s -->\n%s", commentSafe(article.SEOSummary), created.Content)
	if _, err := p.client.UpdatePost(ctx, &enriched); err != nil {
		p.logger.Warn("post created but meta description update failed",
			"post_id", created.Id,
			"error", err,
		)
		return post, nil
	}

	post.Enriched = true
	return post, nil
}

// Markup wraps the article body with the lead image and source attribution.
func Markup(article *domain.PublishableArticle, imageURL string) string {
	title := html.EscapeString(article.Title)
	return fmt.Sprintf(
		"<div class=\"post-image\"><img src=\"%s\" alt=\"%s\" title=\"%s\" /></div>\n%s\n"+
			"<p class=\"source\">Source: <a href=\"%s\" target=\"_blank\" rel=\"nofollow\">Original Article</a></p>",
		html.EscapeString(imageURL), title, title,
		article.Body,
		html.EscapeString(article.SourceURL),
	)
}

// HTML comments must not contain "--".
func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}
