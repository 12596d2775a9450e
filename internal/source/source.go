package source

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// Partition is one independently fetched slice of the upstream news.
type Partition interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawArticle, error)
}

// Aggregator walks its partitions in order and concatenates what they return.
type Aggregator struct {
	partitions []Partition
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewAggregator builds an aggregator that waits at least delay between
// consecutive partition fetches.
func NewAggregator(partitions []Partition, delay time.Duration, logger *slog.Logger) *Aggregator {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Aggregator{
		partitions: partitions,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With("component", "source"),
	}
}

// FetchCandidates returns the candidates of every partition that succeeded.
// Failed partitions are logged and skipped; only cancellation is an error.
func (a *Aggregator) FetchCandidates(ctx context.Context) ([]domain.RawArticle, error) {
	var out []domain.RawArticle

	for _, p := range a.partitions {
		if err := a.limiter.Wait(ctx); err != nil {
			return out, err
		}

		articles, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			a.logger.Error("Error fetching news", "partition", p.Name(), "error", err)
			continue
		}

		a.logger.Debug("partition fetched", "partition", p.Name(), "articles", len(articles))
		out = append(out, articles...)
	}

	return out, nil
}
