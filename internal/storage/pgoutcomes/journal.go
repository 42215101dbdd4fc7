package pgoutcomes

import (
	"context"
	"time"

	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const insertOutcome = `
INSERT INTO claim_outcomes (
  run_id, op, token, claim_id, new_claim_id, source,
  status, code, message, kind, ok, attempts, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`

func outcomeArgs(o outcome.Outcome) []any {
	at := o.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return []any{
		o.RunID, string(o.Op), o.Token, o.ClaimID, o.NewClaimID, o.Source,
		o.Status, o.Code, o.Message, string(o.Kind), o.OK, o.Attempts, at.UTC(),
	}
}

// Report implements outcome.Reporter.
func (j *Journal) Report(ctx context.Context, o outcome.Outcome) error {
	_, err := j.db.Exec(ctx, insertOutcome, outcomeArgs(o)...)
	return errors.Wrap(err, "insert outcome")
}

// ReportBatch writes outcomes in one round trip.
func (j *Journal) ReportBatch(ctx context.Context, outs []outcome.Outcome) error {
	if len(outs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, o := range outs {
		b.Queue(insertOutcome, outcomeArgs(o)...)
	}
	return errors.Wrap(j.db.SendBatch(ctx, b).Close(), "insert outcomes")
}

// ListRun returns the outcomes of one run in insertion order.
func (j *Journal) ListRun(ctx context.Context, runID string) ([]outcome.Outcome, error) {
	rows, err := j.db.Query(ctx, `
SELECT
  run_id, op, token, claim_id, new_claim_id, source,
  status, code, message, kind, ok, attempts, created_at
FROM claim_outcomes
WHERE run_id = $1
ORDER BY id
`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "select outcomes")
	}
	defer rows.Close()

	var out []outcome.Outcome
	for rows.Next() {
		var o outcome.Outcome
		var op, kind string
		if err := rows.Scan(
			&o.RunID, &op, &o.Token, &o.ClaimID, &o.NewClaimID, &o.Source,
			&o.Status, &o.Code, &o.Message, &kind, &o.OK, &o.Attempts, &o.At,
		); err != nil {
			return nil, errors.Wrap(err, "scan outcome")
		}
		o.Op, o.Kind = outcome.Op(op), outcome.Kind(kind)
		o.At = o.At.UTC()
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
