package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dafidxcode/tehsainesia/internal/events"
	"github.com/dafidxcode/tehsainesia/internal/healthcheck"
	"github.com/dafidxcode/tehsainesia/internal/llm"
)

var checkFlags struct {
	timeout time.Duration
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test connectivity to the language model, news API, blog and dedup store",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkFlags.timeout, "timeout", 30*time.Second, "per-check timeout")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	checks := []healthcheck.Check{
		{Name: "language model", Run: a.checkLLM},
		{Name: "news api", Run: a.checkNewsAPI},
		{Name: "blogger", Run: a.checkBlogger},
		{Name: "dedup store", Run: a.checkStore},
	}
	if a.cfg.RabbitMQ.Enabled {
		checks = append(checks, healthcheck.Check{Name: "rabbitmq", Run: a.checkRabbitMQ})
	}

	results := healthcheck.RunAll(cmd.Context(), checkFlags.timeout, checks...)

	t := newTable(cmd)
	t.AppendHeader(table.Row{"Check", "Status", "Detail", "Took"})
	for _, r := range results {
		detail := r.Detail
		if r.Err != nil {
			detail = r.Err.Error()
		}
		t.AppendRow(table.Row{r.Name, mark(r.OK()), detail, r.Duration.Round(time.Millisecond)})
	}
	t.Render()

	if !healthcheck.Healthy(results) {
		return errors.New("one or more checks failed")
	}
	return nil
}

func (a *app) checkLLM(ctx context.Context) (string, error) {
	if a.cfg.LLM.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is not set")
	}
	return a.llmClient().Complete(ctx, llm.Request{
		Model: a.cfg.LLM.SummaryModel,
		Messages: []llm.Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Say hello!"},
		},
		MaxTokens: 10,
	})
}

func (a *app) checkNewsAPI(ctx context.Context) (string, error) {
	if a.cfg.NewsAPI.APIKey == "" {
		return "", errors.New("NEWS_API_KEY is not set")
	}
	country := "us"
	if len(a.cfg.NewsAPI.Countries) > 0 {
		country = a.cfg.NewsAPI.Countries[0]
	}
	if err := a.newsClient().Probe(ctx, country); err != nil {
		return "", err
	}
	return "top headlines reachable", nil
}

func (a *app) checkBlogger(ctx context.Context) (string, error) {
	client, err := a.bloggerClient(ctx)
	if err != nil {
		return "", err
	}
	blog, err := client.Blog(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", blog.Name, blog.Url), nil
}

func (a *app) checkStore(ctx context.Context) (string, error) {
	store, _, err := a.fingerprintStore(ctx)
	if err != nil {
		return "", err
	}
	n, err := store.Count(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s backend, %d fingerprints", a.cfg.Dedup.Backend, n), nil
}

func (a *app) checkRabbitMQ(context.Context) (string, error) {
	pub, err := events.NewRabbitMQ(events.Config{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		RoutingKey: a.cfg.RabbitMQ.RoutingKey,
		QueueName:  a.cfg.RabbitMQ.QueueName,
	}, a.logger)
	if err != nil {
		return "", err
	}
	_ = pub.Close()
	return "exchange " + a.cfg.RabbitMQ.Exchange + " declared", nil
}
