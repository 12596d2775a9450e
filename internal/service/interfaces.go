package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

type Source interface {
	FetchCandidates(ctx context.Context) ([]domain.RawArticle, error)
}

type FingerprintStore interface {
	Load(ctx context.Context) ([]domain.Fingerprint, error)
	Save(ctx context.Context, fingerprints []domain.Fingerprint) error
}

type Transformer interface {
	Rewrite(ctx context.Context, raw domain.RawArticle) (*domain.PublishableArticle, error)
}

type ImageResolver interface {
	Resolve(ctx context.Context, raw domain.RawArticle) string
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.PublishableArticle, imageURL string) (*domain.Post, error)
}

type EventPublisher interface {
	PublishArticle(ctx context.Context, event domain.PublishedEvent) error
}

type CycleRecorder interface {
	Record(ctx context.Context, stats domain.CycleStats) error
}
