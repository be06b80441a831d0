// Package postgres implements the storage contract on PostgreSQL using a
// pgx connection pool. Queries are built with goqu and executed either on
// the pool directly or on a transaction handed out by InTx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lending/internal/storage"
)

// Compile-time check that the engine satisfies the storage contract.
var _ storage.Store = (*Store)(nil)

const (
	dialectName = "postgres"

	tableBooks        = "books"
	tableMembers      = "members"
	tableTransactions = "transactions"
	tableFines        = "fines"

	// Constraint violation codes, see
	// https://www.postgresql.org/docs/current/errcodes-appendix.html
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Pool defaults.
const (
	defaultMaxConns          = int32(8)
	defaultMinConns          = int32(2)
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = 5 * time.Minute
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = 5 * time.Second
)

// querier is the subset of pgxpool.Pool and pgx.Tx the queries run on.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL storage engine.
type Store struct {
	pool *pgxpool.Pool // nil on transaction-bound instances
	q    querier
}

// NewStore connects to PostgreSQL and verifies the connection.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	cfg.MaxConns = defaultMaxConns
	cfg.MinConns = defaultMinConns
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	cfg.HealthCheckPeriod = defaultHealthCheckPeriod
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Store{pool: pool, q: pool}, nil
}

// InTx runs fn inside a single database transaction. fn receives a Store
// bound to that transaction; returning an error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.pool == nil {
		// Already transaction-bound, reuse the open transaction.
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// mapConstraintError translates Postgres constraint violations into the
// storage sentinel errors so callers never see driver error types.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, storage.ErrDuplicate)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, storage.ErrReferenced)
	}
	return err
}
