package blogger

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	bloggerapi "google.golang.org/api/blogger/v3"
	"google.golang.org/api/option"
)

// Client wraps the Blogger v3 service for a single blog. Authorization is
// carried by the supplied http.Client.
type Client struct {
	svc    *bloggerapi.Service
	blogID string
}

// NewClient builds the service over httpClient. An empty endpoint keeps the
// library default.
func NewClient(ctx context.Context, httpClient *http.Client, endpoint, blogID string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(endpoint, "/")+"/"))
	}

	svc, err := bloggerapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create blogger service: %w", err)
	}
	return &Client{svc: svc, blogID: blogID}, nil
}

func (c *Client) InsertPost(ctx context.Context, p *bloggerapi.Post) (*bloggerapi.Post, error) {
	out, err := c.svc.Posts.Insert(c.blogID, p).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return out, nil
}

func (c *Client) UpdatePost(ctx context.Context, p *bloggerapi.Post) (*bloggerapi.Post, error) {
	out, err := c.svc.Posts.Update(c.blogID, p.Id, p).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", p.Id, err)
	}
	return out, nil
}

// Blog fetches the configured blog; used to verify credentials.
func (c *Client) Blog(ctx context.Context) (*bloggerapi.Blog, error) {
	out, err := c.svc.Blogs.Get(c.blogID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get blog: %w", err)
	}
	return out, nil
}
