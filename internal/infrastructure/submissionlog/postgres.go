package submissionlog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendedor360/backend/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const insertRecordSQL = `
INSERT INTO submission_log
    (submitted_at, product_code, description, price, status_label, portal, opportunity_id, run_id)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`

// PostgresLog appends submission records to the submission_log table
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPool creates a small connection pool; the bidder writes one row at a time.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// RunMigrations applies the embedded schema migrations to databaseURL
func RunMigrations(databaseURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// NewPostgresLog migrates the schema and opens a pool to databaseURL
func NewPostgresLog(ctx context.Context, databaseURL string) (*PostgresLog, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &PostgresLog{pool: pool}, nil
}

// Append inserts one record
func (l *PostgresLog) Append(ctx context.Context, record domain.SubmissionRecord) error {
	_, err := l.pool.Exec(ctx, insertRecordSQL,
		record.Timestamp,
		record.ProductCode,
		record.Description,
		record.Price.String(),
		record.StatusLabel,
		record.Portal,
		record.OpportunityID,
		record.RunID,
	)
	if err != nil {
		return fmt.Errorf("insert submission record: %w", err)
	}
	return nil
}

// Close releases the pool
func (l *PostgresLog) Close() error {
	l.pool.Close()
	return nil
}
