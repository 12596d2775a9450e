package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// CycleState is the single-row summary of the most recent cycle.
type CycleState struct {
	ID             int64     `db:"id"`
	LastCycleAt    time.Time `db:"last_cycle_at"`
	LastPublished  int       `db:"last_published"`
	LastFailed     int       `db:"last_failed"`
	TotalPublished int64     `db:"total_published"`
}

type CycleStateStore struct {
	db *sqlx.DB
}

func NewCycleStateStore(db *sqlx.DB) *CycleStateStore {
	return &CycleStateStore{db: db}
}

// Get returns a zero state before the first recorded cycle.
func (s *CycleStateStore) Get(ctx context.Context) (*CycleState, error) {
	var state CycleState
	query := `
		SELECT id, last_cycle_at, last_published, last_failed, total_published
		FROM cycle_state
		WHERE id = 1`

	err := s.db.GetContext(ctx, &state, query)
	if errors.Is(err, sql.ErrNoRows) {
		return &CycleState{ID: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle state: %w", err)
	}
	return &state, nil
}

// Record folds the stats of a finished cycle into the stored state.
func (s *CycleStateStore) Record(ctx context.Context, stats domain.CycleStats) error {
	query := `
		INSERT INTO cycle_state (id, last_cycle_at, last_published, last_failed, total_published)
		VALUES (1, $1, $2, $3, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_cycle_at = EXCLUDED.last_cycle_at,
			last_published = EXCLUDED.last_published,
			last_failed = EXCLUDED.last_failed,
			total_published = cycle_state.total_published + EXCLUDED.last_published`

	_, err := s.db.ExecContext(ctx, query,
		time.Now().UTC(),
		stats.Published,
		stats.Failed,
	)
	if err != nil {
		return fmt.Errorf("record cycle state: %w", err)
	}
	return nil
}
