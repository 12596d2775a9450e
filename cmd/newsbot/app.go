package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dafidxcode/tehsainesia/internal/blogger"
	"github.com/dafidxcode/tehsainesia/internal/config"
	"github.com/dafidxcode/tehsainesia/internal/dedup"
	"github.com/dafidxcode/tehsainesia/internal/events"
	"github.com/dafidxcode/tehsainesia/internal/image"
	"github.com/dafidxcode/tehsainesia/internal/llm"
	"github.com/dafidxcode/tehsainesia/internal/logging"
	"github.com/dafidxcode/tehsainesia/internal/scrape"
	"github.com/dafidxcode/tehsainesia/internal/service"
	"github.com/dafidxcode/tehsainesia/internal/source"
	"github.com/dafidxcode/tehsainesia/internal/source/feed"
	"github.com/dafidxcode/tehsainesia/internal/source/newsapi"
	"github.com/dafidxcode/tehsainesia/internal/storage/postgres"
	"github.com/dafidxcode/tehsainesia/internal/transform"
)

// app holds the loaded configuration and everything that must be closed on exit.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
	db      *sqlx.DB
}

// newApp loads the config and sets up logging. Commands that only inspect
// state pass eventLog=false so they do not write to the event log.
func newApp(eventLog bool) (*app, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}

	if eventLog {
		w, closer, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closer)
		a.logger = logging.New(cfg.LogLevel, w)
	} else {
		a.logger = logging.New(cfg.LogLevel, os.Stderr)
	}

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *app) database(ctx context.Context) (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", a.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.logger.Info("connected to database")

	a.db = db
	a.closers = append(a.closers, db)
	return db, nil
}

// dedupStore is what every dedup backend offers the commands.
type dedupStore interface {
	service.FingerprintStore
	Count(ctx context.Context) (int, error)
}

// fingerprintStore returns the configured dedup backend. The cycle recorder
// is only available with the postgres backend and is nil otherwise.
func (a *app) fingerprintStore(ctx context.Context) (dedupStore, service.CycleRecorder, error) {
	switch a.cfg.Dedup.Backend {
	case "postgres":
		db, err := a.database(ctx)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewFingerprintStore(db), postgres.NewCycleStateStore(db), nil
	default:
		return dedup.NewFileStore(a.cfg.Dedup.Path), nil, nil
	}
}

// cycleHistory is nil unless the postgres backend records cycles.
func (a *app) cycleHistory(ctx context.Context) (*postgres.CycleStateStore, error) {
	if a.cfg.Dedup.Backend != "postgres" {
		return nil, nil
	}
	db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.NewCycleStateStore(db), nil
}

func (a *app) newsClient() *newsapi.Client {
	c := a.cfg.NewsAPI
	return newsapi.New(newsapi.Config{
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		Categories:     c.Categories,
		Timeout:        c.Timeout,
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
	}, a.logger)
}

func (a *app) source() *source.Aggregator {
	var partitions []source.Partition

	if a.cfg.NewsAPI.APIKey != "" {
		news := a.newsClient()
		for _, country := range a.cfg.NewsAPI.Countries {
			partitions = append(partitions, news.Partition(country))
		}
	}
	for _, f := range a.cfg.Feeds {
		partitions = append(partitions, feed.New(f.Name, f.URL, a.cfg.NewsAPI.Timeout))
	}

	return source.NewAggregator(partitions, a.cfg.Source.PartitionDelay, a.logger)
}

func (a *app) llmClient() *llm.Client {
	return llm.NewClient(llm.Config{
		Endpoint: a.cfg.LLM.Endpoint,
		APIKey:   a.cfg.LLM.APIKey,
		Timeout:  a.cfg.LLM.Timeout,
	})
}

func (a *app) oauthConfig() blogger.OAuthConfig {
	b := a.cfg.Blogger
	return blogger.OAuthConfig{
		ClientID:     b.ClientID,
		ClientSecret: b.ClientSecret,
		AuthURL:      b.AuthURL,
		TokenURL:     b.TokenURL,
		RedirectURL:  b.RedirectURL,
	}
}

// bloggerClient fails with blogger.ErrCredentialsUnavailable when no token
// has been stored yet.
func (a *app) bloggerClient(ctx context.Context) (*blogger.Client, error) {
	hc, err := blogger.HTTPClient(ctx, a.oauthConfig().OAuth2(), blogger.NewTokenFile(a.cfg.Blogger.TokenFile))
	if err != nil {
		return nil, err
	}
	return blogger.NewClient(ctx, hc, a.cfg.Blogger.BaseURL, a.cfg.Blogger.BlogID)
}

func (a *app) eventPublisher() (service.EventPublisher, error) {
	r := a.cfg.RabbitMQ
	if !r.Enabled {
		return nil, nil
	}

	pub, err := events.NewRabbitMQ(events.Config{
		URL:        r.URL,
		Exchange:   r.Exchange,
		RoutingKey: r.RoutingKey,
		QueueName:  r.QueueName,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub)
	return pub, nil
}

// cycleService wires the full publishing pipeline.
func (a *app) cycleService(ctx context.Context) (*service.CycleService, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	eviction, err := dedup.EvictionByName(a.cfg.Dedup.Eviction)
	if err != nil {
		return nil, err
	}

	client, err := a.bloggerClient(ctx)
	if errors.Is(err, blogger.ErrCredentialsUnavailable) {
		return nil, fmt.Errorf("%w (run `newsbot auth` first)", err)
	}
	if err != nil {
		return nil, err
	}

	store, recorder, err := a.fingerprintStore(ctx)
	if err != nil {
		return nil, err
	}

	eventPub, err := a.eventPublisher()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	pages := scrape.New(httpClient, a.cfg.Transform.PageTimeout, a.cfg.Image.ProbeTimeout)
	imagePages := scrape.New(httpClient, a.cfg.Image.PageTimeout, a.cfg.Image.ProbeTimeout)

	transformer := newTransformer(a.cfg, a.llmClient(), pages, a.logger)
	images := image.Default(imagePages, imagePages, a.cfg.Image.PlaceholderURL, a.cfg.Image.GenericTopics, a.logger)
	publisher := blogger.NewPublisher(client, a.cfg.Blogger.Author, a.cfg.Blogger.Labels, a.logger)

	return service.NewCycleService(
		a.source(),
		store,
		transformer,
		images,
		publisher,
		eventPub,
		recorder,
		a.logger,
		service.Options{
			MaxPosts:  a.cfg.Cycle.MaxPosts,
			PostDelay: a.cfg.Cycle.PostDelay,
			Retention: a.cfg.Dedup.Retention,
			Eviction:  eviction,
		},
	), nil
}

func newTransformer(cfg *config.Config, gen transform.Generator, pages transform.PageFetcher, logger *slog.Logger) *transform.Transformer {
	return transform.New(transform.Config{
		MinContentLength:   cfg.Transform.MinContentLength,
		FallbackParagraphs: cfg.Transform.FallbackParagraphs,
		BodyModel:          cfg.LLM.BodyModel,
		BodyMaxTokens:      cfg.LLM.BodyTokens,
		SummaryModel:       cfg.LLM.SummaryModel,
		SummaryMaxTokens:   cfg.LLM.SummaryToken,
		Temperature:        cfg.LLM.Temperature,
	}, gen, pages, logger)
}
