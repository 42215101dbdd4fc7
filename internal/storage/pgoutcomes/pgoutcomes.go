package pgoutcomes

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Journal is an append-only audit log of claim outcomes. Nothing in a batch
// reads it back.
type Journal struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Journal, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	j := &Journal{db: db}
	if err := j.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Ping(ctx context.Context) error {
	return errors.Wrap(j.db.Ping(ctx), "ping pg")
}

func (j *Journal) Close() {
	if j.db != nil {
		j.db.Close()
	}
}
