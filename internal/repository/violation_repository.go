package repository

import (
	"context"
	"fmt"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViolationRepository handles proctor_violations data access.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// CopyBatch bulk-loads violations with COPY. Any duplicate fails the whole
// batch.
func (r *ViolationRepository) CopyBatch(ctx context.Context, batch []model.ViolationEvent) error {
	rows := make([][]any, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, []any{
			ev.AttemptID, ev.ApplicantID, ev.TestName, string(ev.Kind), ev.Count, ev.RecordedAt,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_violations"},
		[]string{"attempt_id", "applicant_id", "test_name", "kind", "count", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy violations: %w", err)
	}
	return nil
}

// Insert writes one violation, ignoring a duplicate.
func (r *ViolationRepository) Insert(ctx context.Context, ev model.ViolationEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO proctor_violations (attempt_id, applicant_id, test_name, kind, count, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (attempt_id, count) DO NOTHING`,
		ev.AttemptID, ev.ApplicantID, ev.TestName, string(ev.Kind), ev.Count, ev.RecordedAt,
	)
	return err
}

// ListByAttempt returns the violations of an attempt in order.
func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ViolationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, applicant_id, test_name, kind, count, recorded_at
		 FROM proctor_violations
		 WHERE attempt_id = $1
		 ORDER BY count ASC`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ViolationEvent
	for rows.Next() {
		var ev model.ViolationEvent
		if err := rows.Scan(&ev.AttemptID, &ev.ApplicantID, &ev.TestName, &ev.Kind, &ev.Count, &ev.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
