package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dafidxcode/tehsainesia/internal/dedup"
	"github.com/dafidxcode/tehsainesia/internal/domain"
)

type Options struct {
	MaxPosts  int
	PostDelay time.Duration
	Retention int
	Eviction  dedup.Eviction
}

type CycleService struct {
	source      Source
	store       FingerprintStore
	transformer Transformer
	images      ImageResolver
	publisher   Publisher
	events      EventPublisher
	recorder    CycleRecorder
	logger      *slog.Logger
	opts        Options

	wait func(ctx context.Context, d time.Duration) error
	now  func() time.Time
}

// NewCycleService wires the pipeline. events and recorder may be nil.
func NewCycleService(
	source Source,
	store FingerprintStore,
	transformer Transformer,
	images ImageResolver,
	publisher Publisher,
	events EventPublisher,
	recorder CycleRecorder,
	logger *slog.Logger,
	opts Options,
) *CycleService {
	return &CycleService{
		source:      source,
		store:       store,
		transformer: transformer,
		images:      images,
		publisher:   publisher,
		events:      events,
		recorder:    recorder,
		logger:      logger.With("component", "cycle"),
		opts:        opts,
		wait:        sleep,
		now:         time.Now,
	}
}

// Run executes one fetch-rewrite-publish cycle. Per-article failures are
// counted and skipped; persistence and credential failures end the cycle.
func (s *CycleService) Run(ctx context.Context) (*domain.CycleStats, error) {
	startTime := s.now()
	s.logger.Info("Starting news processing cycle")

	known, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	seen := dedup.NewSet(s.opts.Retention, s.opts.Eviction, known...)

	candidates, err := s.source.FetchCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	s.logger.Info("Fetched articles", "count", len(candidates), "known", seen.Len())

	stats := &domain.CycleStats{Fetched: len(candidates)}

	for _, raw := range candidates {
		if raw.Title == "" || raw.URL == "" {
			stats.Invalid++
			continue
		}

		fp := dedup.Fingerprint(raw)
		if seen.Contains(fp) {
			stats.Duplicates++
			continue
		}

		post, err := s.process(ctx, raw)
		if errors.Is(err, domain.ErrCredentialsUnavailable) {
			return stats, fmt.Errorf("publish %q: %w", raw.Title, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			s.logger.Error("Failed to process article", "title", raw.Title, "url", raw.URL, "error", err)
			continue
		}

		seen.Add(fp)
		if err := s.store.Save(ctx, seen.Items()); err != nil {
			return stats, fmt.Errorf("save fingerprints: %w", err)
		}
		stats.Published++

		s.logger.Info("Posted article", "title", post.Title, "post_id", post.ID, "enriched", post.Enriched)
		s.announce(ctx, fp, raw, post)

		if s.opts.MaxPosts > 0 && stats.Published >= s.opts.MaxPosts {
			break
		}

		if err := s.wait(ctx, s.opts.PostDelay); err != nil {
			return stats, err
		}
	}

	if trimmed := seen.Trim(); trimmed > 0 {
		if err := s.store.Save(ctx, seen.Items()); err != nil {
			return stats, fmt.Errorf("save trimmed fingerprints: %w", err)
		}
		stats.Trimmed = trimmed
	}

	stats.Duration = s.now().Sub(startTime)

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, *stats); err != nil {
			s.logger.Warn("failed to record cycle state", "error", err)
		}
	}

	s.logger.Info("Completed news processing cycle",
		"published", stats.Published,
		"fetched", stats.Fetched,
		"duplicates", stats.Duplicates,
		"invalid", stats.Invalid,
		"failed", stats.Failed,
		"trimmed", stats.Trimmed,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *CycleService) process(ctx context.Context, raw domain.RawArticle) (*domain.Post, error) {
	article, err := s.transformer.Rewrite(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	imageURL := s.images.Resolve(ctx, raw)

	post, err := s.publisher.Publish(ctx, article, imageURL)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return post, nil
}

func (s *CycleService) announce(ctx context.Context, fp domain.Fingerprint, raw domain.RawArticle, post *domain.Post) {
	if s.events == nil {
		return
	}
	err := s.events.PublishArticle(ctx, domain.PublishedEvent{
		Fingerprint: fp,
		Title:       post.Title,
		SourceURL:   raw.URL,
		PostID:      post.ID,
		PostURL:     post.URL,
		PublishedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish event", "post_id", post.ID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
