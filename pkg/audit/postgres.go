package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/complyra/ragsafe/internal/models"
)

// PostgresStore persists audit entries in an append-only table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(ctx context.Context, connString, table string) (*PostgresStore, error) {
	if table == "" {
		table = "audit_entries"
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{pool: pool, table: table}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			query TEXT NOT NULL,
			controls_used TEXT[] NOT NULL DEFAULT '{}',
			response_generated TEXT NOT NULL,
			verification_score DOUBLE PRECISION NOT NULL,
			human_reviewed BOOLEAN NOT NULL DEFAULT false,
			approved BOOLEAN NOT NULL
		)`, s.table)

	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry models.AuditEntry) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, created_at, query, controls_used, response_generated,
			verification_score, human_reviewed, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)

	_, err := s.pool.Exec(ctx, stmt,
		entry.ID, entry.Timestamp, entry.Query, entry.ControlsUsed,
		entry.ResponseGenerated, entry.VerificationScore,
		entry.HumanReviewed, entry.Approved)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.AuditEntry, error) {
	stmt := fmt.Sprintf(`
		SELECT id, created_at, query, controls_used, response_generated,
			verification_score, human_reviewed, approved
		FROM %s ORDER BY created_at`, s.table)

	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		err := rows.Scan(&e.ID, &e.Timestamp, &e.Query, &e.ControlsUsed,
			&e.ResponseGenerated, &e.VerificationScore, &e.HumanReviewed, &e.Approved)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) MarkReviewed(ctx context.Context, id string, approved bool) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET human_reviewed = true, approved = $2 WHERE id = $1`, s.table)

	tag, err := s.pool.Exec(ctx, stmt, id, approved)
	if err != nil {
		return fmt.Errorf("failed to update audit entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("audit entry %s not found", id)
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
