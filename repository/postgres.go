package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	db    *pgxpool.Pool
	retry RetryPolicy
}

var _ Store = (*PGStore)(nil)

// PGStoreOption is a functional option for PGStore
type PGStoreOption func(*PGStore)

// WithRetryPolicy overrides the transient-failure retry policy
func WithRetryPolicy(p RetryPolicy) PGStoreOption {
	return func(s *PGStore) {
		s.retry = p
	}
}

// NewPGStore creates a Postgres-backed store
func NewPGStore(db *pgxpool.Pool, opts ...PGStoreOption) *PGStore {
	s := &PGStore{db: db, retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx implements Store. The whole unit of work is replayed when it fails
// with a transient error, so fn must not have effects outside tx.
func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return withRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(ctx, newPGTx(tx)); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// View implements Store
func (s *PGStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return withRetry(ctx, s.retry, func() error {
		return fn(ctx, newPGTx(s.db))
	})
}

type pgTx struct {
	*DocumentRepository
	*CatalogRepository
	*SignerRepository
	*HistoryRepository
	*UserRepository
}

func newPGTx(q Querier) *pgTx {
	return &pgTx{
		DocumentRepository: NewDocumentRepository(q),
		CatalogRepository:  NewCatalogRepository(q),
		SignerRepository:   NewSignerRepository(q),
		HistoryRepository:  NewHistoryRepository(q),
		UserRepository:     NewUserRepository(q),
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
