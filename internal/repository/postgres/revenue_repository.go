// Package postgres archives the revenue log in Postgres.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS revenue_logs (
		seq           BIGSERIAL PRIMARY KEY,
		id            UUID NOT NULL UNIQUE,
		amount        DOUBLE PRECISION NOT NULL,
		service_type  TEXT,
		customer_name TEXT,
		logged_at_ms  BIGINT NOT NULL
	)
`

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgRevenueRepository struct {
	db DB
	l  logger.Logger
}

func NewRevenueRepository(db DB, l logger.Logger) repository.RevenueRepository {
	return &pgRevenueRepository{
		db: db,
		l:  l,
	}
}

// EnsureSchema creates the revenue table when it does not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create revenue_logs: %w", err)
	}
	return nil
}

func (r *pgRevenueRepository) Append(ctx context.Context, log *models.RevenueLog) (string, error) {
	id := uuid.NewString()

	_, err := r.db.Exec(ctx, `
		INSERT INTO revenue_logs (id, amount, service_type, customer_name, logged_at_ms)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
	`, id, log.Amount, string(log.ServiceType), log.CustomerName, log.Timestamp)
	if err != nil {
		r.l.Errorf(ctx, "pgRevenueRepository.Append: %v", err)
		return "", err
	}

	return id, nil
}

func (r *pgRevenueRepository) List(ctx context.Context) ([]models.RevenueLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, amount, COALESCE(service_type, ''), COALESCE(customer_name, ''), logged_at_ms
		FROM revenue_logs
		ORDER BY seq ASC
	`)
	if err != nil {
		r.l.Errorf(ctx, "pgRevenueRepository.List: %v", err)
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.RevenueLog, 0)
	for rows.Next() {
		var (
			log     models.RevenueLog
			service string
		)
		if err := rows.Scan(&log.ID, &log.Amount, &service, &log.CustomerName, &log.Timestamp); err != nil {
			r.l.Errorf(ctx, "pgRevenueRepository.List: %v", err)
			return nil, err
		}
		log.ServiceType = models.ServiceType(service)
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		r.l.Errorf(ctx, "pgRevenueRepository.List: %v", err)
		return nil, err
	}

	return logs, nil
}
