package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/dafidxcode/tehsainesia/internal/dedup"
	"github.com/dafidxcode/tehsainesia/internal/domain"
	"github.com/dafidxcode/tehsainesia/internal/service/mocks"
)

type CycleServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source      *mocks.MockSource
	store       *mocks.MockFingerprintStore
	transformer *mocks.MockTransformer
	images      *mocks.MockImageResolver
	publisher   *mocks.MockPublisher
	events      *mocks.MockEventPublisher
	recorder    *mocks.MockCycleRecorder

	service *CycleService
	opts    Options
	logger  *slog.Logger
	waits   []time.Duration
}

func (s *CycleServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.store = mocks.NewMockFingerprintStore(s.ctrl)
	s.transformer = mocks.NewMockTransformer(s.ctrl)
	s.images = mocks.NewMockImageResolver(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.recorder = mocks.NewMockCycleRecorder(s.ctrl)

	s.opts = Options{
		MaxPosts:  3,
		PostDelay: 30 * time.Second,
		Retention: 1000,
		Eviction:  dedup.OldestFirst,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.service = s.newService(s.store)
}

func (s *CycleServiceTestSuite) newService(store FingerprintStore) *CycleService {
	svc := NewCycleService(
		s.source,
		store,
		s.transformer,
		s.images,
		s.publisher,
		s.events,
		s.recorder,
		s.logger,
		s.opts,
	)
	s.waits = nil
	svc.wait = func(_ context.Context, d time.Duration) error {
		s.waits = append(s.waits, d)
		return nil
	}
	return svc
}

func (s *CycleServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCycleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CycleServiceTestSuite))
}

func candidates(n int) []domain.RawArticle {
	out := make([]domain.RawArticle, n)
	for i := range out {
		out[i] = domain.RawArticle{
			Title: fmt.Sprintf("Article %d", i),
			URL:   fmt.Sprintf("https://news.example.com/%d", i),
		}
	}
	return out
}

// expectHappyPath lets every article through transform, image and publish.
func (s *CycleServiceTestSuite) expectHappyPath(times int) {
	s.transformer.EXPECT().Rewrite(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, raw domain.RawArticle) (*domain.PublishableArticle, error) {
			return &domain.PublishableArticle{Title: "New " + raw.Title, Body: "<p>b</p>", SourceURL: raw.URL, SEOSummary: "s"}, nil
		},
	).Times(times)
	s.images.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("https://img.example.com/a.jpg").Times(times)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), "https://img.example.com/a.jpg").DoAndReturn(
		func(_ context.Context, a *domain.PublishableArticle, _ string) (*domain.Post, error) {
			return &domain.Post{ID: "p-" + a.Title, Title: a.Title, Enriched: true}, nil
		},
	).Times(times)
	s.events.EXPECT().PublishArticle(gomock.Any(), gomock.Any()).Return(nil).Times(times)
}

func (s *CycleServiceTestSuite) TestRun_CapsPublishedPerCycle() {
	ctx := context.Background()
	articles := candidates(10)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.expectHappyPath(3)

	var saved [][]domain.Fingerprint
	s.store.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, fps []domain.Fingerprint) error {
			saved = append(saved, fps)
			return nil
		},
	).Times(3)
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(10, stats.Fetched)
	s.Equal(3, stats.Published)
	s.Equal(0, stats.Failed)

	s.Require().Len(saved, 3)
	s.Equal([]domain.Fingerprint{
		dedup.Fingerprint(articles[0]),
		dedup.Fingerprint(articles[1]),
		dedup.Fingerprint(articles[2]),
	}, saved[2])
	s.Len(saved[0], 1)

	// no delay after the post that reached the cap
	s.Equal([]time.Duration{30 * time.Second, 30 * time.Second}, s.waits)
}

func (s *CycleServiceTestSuite) TestRun_IsIdempotentAcrossCycles() {
	ctx := context.Background()
	store := dedup.NewFileStore(filepath.Join(s.T().TempDir(), "processed.json"))
	s.opts.MaxPosts = 5
	svc := s.newService(store)
	articles := candidates(2)

	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil).Times(2)
	s.expectHappyPath(2)
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(2)

	first, err := svc.Run(ctx)
	s.Require().NoError(err)
	s.Equal(2, first.Published)

	second, err := svc.Run(ctx)
	s.Require().NoError(err)
	s.Equal(0, second.Published)
	s.Equal(2, second.Duplicates)

	stored, err := store.Load(ctx)
	s.Require().NoError(err)
	s.Len(stored, 2)
}

func (s *CycleServiceTestSuite) TestRun_SkipsInvalidAndDuplicates() {
	ctx := context.Background()
	articles := candidates(3)
	articles[0].Title = ""
	articles[1].URL = ""

	s.store.EXPECT().Load(ctx).Return([]domain.Fingerprint{dedup.Fingerprint(articles[2])}, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.Invalid)
	s.Equal(1, stats.Duplicates)
	s.Equal(0, stats.Published)
	s.Empty(s.waits)
}

func (s *CycleServiceTestSuite) TestRun_TransformFailureSkipsArticle() {
	ctx := context.Background()
	articles := candidates(2)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)

	gomock.InOrder(
		s.transformer.EXPECT().Rewrite(ctx, articles[0]).Return(nil, errors.New("llm quota")),
		s.transformer.EXPECT().Rewrite(ctx, articles[1]).Return(&domain.PublishableArticle{Title: "ok", SourceURL: articles[1].URL}, nil),
	)
	s.images.EXPECT().Resolve(ctx, articles[1]).Return("img")
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), "img").Return(&domain.Post{ID: "1", Title: "ok"}, nil)
	s.events.EXPECT().PublishArticle(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.PublishedEvent) error {
			s.Equal(dedup.Fingerprint(articles[1]), e.Fingerprint)
			s.Equal(articles[1].URL, e.SourceURL)
			s.Equal("1", e.PostID)
			return nil
		},
	)
	s.store.EXPECT().Save(ctx, []domain.Fingerprint{dedup.Fingerprint(articles[1])}).Return(nil)
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Failed)
	s.Equal(1, stats.Published)
}

func (s *CycleServiceTestSuite) TestRun_PublishFailureLeavesArticleEligible() {
	ctx := context.Background()
	articles := candidates(1)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.transformer.EXPECT().Rewrite(ctx, articles[0]).Return(&domain.PublishableArticle{Title: "t"}, nil)
	s.images.EXPECT().Resolve(ctx, articles[0]).Return("img")
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), "img").Return(nil, errors.New("503"))
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Failed)
	s.Equal(0, stats.Published)
}

func (s *CycleServiceTestSuite) TestRun_CredentialsUnavailableAbortsCycle() {
	ctx := context.Background()
	articles := candidates(3)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.transformer.EXPECT().Rewrite(ctx, articles[0]).Return(&domain.PublishableArticle{Title: "t"}, nil)
	s.images.EXPECT().Resolve(ctx, articles[0]).Return("img")
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), "img").
		Return(nil, fmt.Errorf("insert post: %w", domain.ErrCredentialsUnavailable))

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.True(errors.Is(err, domain.ErrCredentialsUnavailable))
	s.Equal(0, stats.Published)
}

func (s *CycleServiceTestSuite) TestRun_SaveFailureIsFatal() {
	ctx := context.Background()
	articles := candidates(3)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.transformer.EXPECT().Rewrite(ctx, articles[0]).Return(&domain.PublishableArticle{Title: "t"}, nil)
	s.images.EXPECT().Resolve(ctx, articles[0]).Return("img")
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), "img").Return(&domain.Post{ID: "1"}, nil)
	s.store.EXPECT().Save(ctx, gomock.Any()).Return(errors.New("disk full"))

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.Contains(err.Error(), "disk full")
	s.Equal(0, stats.Published)
}

func (s *CycleServiceTestSuite) TestRun_LoadFailure() {
	ctx := context.Background()
	s.store.EXPECT().Load(ctx).Return(nil, errors.New("corrupt"))

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.Nil(stats)
}

func (s *CycleServiceTestSuite) TestRun_TrimsToRetention() {
	ctx := context.Background()
	known := make([]domain.Fingerprint, 1000)
	for i := range known {
		known[i] = domain.Fingerprint(fmt.Sprintf("%032d", i))
	}
	articles := candidates(1)
	s.opts.MaxPosts = 3
	s.service = s.newService(s.store)

	s.store.EXPECT().Load(ctx).Return(known, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.expectHappyPath(1)

	var saved [][]domain.Fingerprint
	s.store.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, fps []domain.Fingerprint) error {
			saved = append(saved, fps)
			return nil
		},
	).Times(2)
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Trimmed)
	s.Require().Len(saved, 2)
	s.Len(saved[0], 1001)
	s.Len(saved[1], 1000)
	s.Equal(known[1], saved[1][0])
	s.Equal(dedup.Fingerprint(articles[0]), saved[1][999])
}

func (s *CycleServiceTestSuite) TestRun_EventFailureIsNotFatal() {
	ctx := context.Background()
	articles := candidates(1)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.transformer.EXPECT().Rewrite(ctx, articles[0]).Return(&domain.PublishableArticle{Title: "t"}, nil)
	s.images.EXPECT().Resolve(ctx, articles[0]).Return("img")
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), "img").Return(&domain.Post{ID: "1"}, nil)
	s.store.EXPECT().Save(ctx, gomock.Any()).Return(nil)
	s.events.EXPECT().PublishArticle(ctx, gomock.Any()).Return(errors.New("broker down"))
	s.recorder.EXPECT().Record(ctx, gomock.Any()).Return(errors.New("db down"))

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Published)
}

func (s *CycleServiceTestSuite) TestRun_CancelledDuringDelay() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	articles := candidates(2)

	s.store.EXPECT().Load(ctx).Return(nil, nil)
	s.source.EXPECT().FetchCandidates(ctx).Return(articles, nil)
	s.expectHappyPath(1)
	s.store.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	s.service.wait = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	stats, err := s.service.Run(ctx)

	s.ErrorIs(err, context.Canceled)
	s.Equal(1, stats.Published)
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero delay: %v", err)
	}
}
