package pgoutcomes

import (
	"context"

	"github.com/pkg/errors"
)

func (j *Journal) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS claim_outcomes (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL,
  op TEXT NOT NULL,
  token TEXT NOT NULL,
  claim_id TEXT NOT NULL DEFAULT '',
  new_claim_id TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  code TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL DEFAULT '',
  ok BOOLEAN NOT NULL,
  attempts INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_claim_outcomes_run_id ON claim_outcomes(run_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_claim_outcomes_token ON claim_outcomes(token, created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := j.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
