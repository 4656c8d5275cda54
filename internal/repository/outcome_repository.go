package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// OutcomeRepository handles attempt_outcomes data access.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

// NewOutcomeRepository creates a new OutcomeRepository.
func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

const outcomeColumns = `attempt_id, applicant_id, test_name, score, status, trigger, violations, persisted, finished_at`

func scanOutcome(row pgx.Row, o *model.Outcome) error {
	return row.Scan(&o.AttemptID, &o.ApplicantID, &o.TestName, &o.Score, &o.Status,
		&o.Trigger, &o.Violations, &o.Persisted, &o.FinishedAt)
}

// UpsertBatch writes many outcomes in one statement using UNNEST. When an
// attempt appears more than once the last entry wins.
func (r *OutcomeRepository) UpsertBatch(ctx context.Context, batch []model.Outcome) error {
	batch = lastPerAttempt(batch)
	n := len(batch)
	if n == 0 {
		return nil
	}

	attemptIDs := make([]uuid.UUID, n)
	applicants := make([]int, n)
	testNames := make([]string, n)
	scores := make([]float64, n)
	statuses := make([]string, n)
	triggers := make([]string, n)
	violations := make([]int, n)
	persisted := make([]bool, n)
	finishedAts := make([]time.Time, n)

	for i, o := range batch {
		attemptIDs[i] = o.AttemptID
		applicants[i] = o.ApplicantID
		testNames[i] = o.TestName
		scores[i] = o.Score
		statuses[i] = string(o.Status)
		triggers[i] = string(o.Trigger)
		violations[i] = o.Violations
		persisted[i] = o.Persisted
		finishedAts[i] = o.FinishedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attempt_outcomes (`+outcomeColumns+`)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::text[],
			$4::float8[],
			$5::char(1)[],
			$6::text[],
			$7::int[],
			$8::bool[],
			$9::timestamptz[]
		)
		ON CONFLICT (attempt_id) DO UPDATE
		SET score = EXCLUDED.score,
		    status = EXCLUDED.status,
		    trigger = EXCLUDED.trigger,
		    violations = EXCLUDED.violations,
		    persisted = EXCLUDED.persisted,
		    finished_at = EXCLUDED.finished_at`,
		attemptIDs, applicants, testNames, scores, statuses, triggers, violations, persisted, finishedAts,
	)
	if err != nil {
		return fmt.Errorf("upsert outcomes: %w", err)
	}
	return nil
}

// Upsert writes a single outcome.
func (r *OutcomeRepository) Upsert(ctx context.Context, o model.Outcome) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_outcomes (`+outcomeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (attempt_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     status = EXCLUDED.status,
		     trigger = EXCLUDED.trigger,
		     violations = EXCLUDED.violations,
		     persisted = EXCLUDED.persisted,
		     finished_at = EXCLUDED.finished_at`,
		o.AttemptID, o.ApplicantID, o.TestName, o.Score, string(o.Status),
		string(o.Trigger), o.Violations, o.Persisted, o.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert outcome %s: %w", o.AttemptID, err)
	}
	return nil
}

// GetByAttempt returns the outcome of one attempt.
func (r *OutcomeRepository) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Outcome, error) {
	var o model.Outcome
	row := r.pool.QueryRow(ctx,
		`SELECT `+outcomeColumns+` FROM attempt_outcomes WHERE attempt_id = $1`, attemptID)
	if err := scanOutcome(row, &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// ListByApplicant returns a page of an applicant's outcomes, newest first,
// and the total count.
func (r *OutcomeRepository) ListByApplicant(ctx context.Context, applicantID, page, perPage int) ([]model.Outcome, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_outcomes WHERE applicant_id = $1`, applicantID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+outcomeColumns+`
		 FROM attempt_outcomes
		 WHERE applicant_id = $1
		 ORDER BY finished_at DESC
		 LIMIT $2 OFFSET $3`,
		applicantID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	outcomes := make([]model.Outcome, 0, perPage)
	for rows.Next() {
		var o model.Outcome
		if err := scanOutcome(rows, &o); err != nil {
			return nil, 0, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, total, rows.Err()
}

// lastPerAttempt keeps the final outcome of each attempt, in first-seen
// order. ON CONFLICT cannot touch the same row twice in one statement.
func lastPerAttempt(batch []model.Outcome) []model.Outcome {
	pos := make(map[uuid.UUID]int, len(batch))
	out := make([]model.Outcome, 0, len(batch))
	for _, o := range batch {
		if i, ok := pos[o.AttemptID]; ok {
			out[i] = o
			continue
		}
		pos[o.AttemptID] = len(out)
		out = append(out, o)
	}
	return out
}
