package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

const fingerprintTable = "published_fingerprints"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// FingerprintStore keeps the dedup history in Postgres. Row ids preserve
// insertion order so oldest-first eviction survives restarts.
type FingerprintStore struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewFingerprintStore(db *sqlx.DB) *FingerprintStore {
	return &FingerprintStore{db: db, tx: NewTransactionManager(db)}
}

func (s *FingerprintStore) Load(ctx context.Context) ([]domain.Fingerprint, error) {
	query, args, err := psql.Select("fingerprint").
		From(fingerprintTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []string
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select fingerprints: %w", err)
	}

	out := make([]domain.Fingerprint, len(rows))
	for i, r := range rows {
		out[i] = domain.Fingerprint(r)
	}
	return out, nil
}

// Save makes the table hold exactly the given fingerprints in one transaction.
func (s *FingerprintStore) Save(ctx context.Context, fingerprints []domain.Fingerprint) error {
	values := make([]string, len(fingerprints))
	for i, fp := range fingerprints {
		values[i] = string(fp)
	}

	return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		del := psql.Delete(fingerprintTable)
		if len(values) > 0 {
			del = del.Where("NOT (fingerprint = ANY(?))", pq.Array(values))
		}
		query, args, err := del.ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := exec.ExecContext(txCtx, query, args...); err != nil {
			return fmt.Errorf("delete evicted fingerprints: %w", err)
		}

		if len(values) == 0 {
			return nil
		}

		insert := psql.Insert(fingerprintTable).Columns("fingerprint")
		for _, v := range values {
			insert = insert.Values(v)
		}
		query, args, err = insert.Suffix("ON CONFLICT (fingerprint) DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := exec.ExecContext(txCtx, query, args...); err != nil {
			return fmt.Errorf("insert fingerprints: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored fingerprints without loading them.
func (s *FingerprintStore) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(fingerprintTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &n, query, args...); err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return n, nil
}
