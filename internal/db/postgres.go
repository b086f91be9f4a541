package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v4/stdlib" // Import Postgres driver.
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/determined-ai/hyperband/pkg/model"
)

const (
	maxOpenConns   = 8
	connectTimeout = time.Minute
)

// PgStore keeps search runs in Postgres.
type PgStore struct {
	db *bun.DB
}

// NewPgStore wraps an existing bun database.
func NewPgStore(db *bun.DB) *PgStore {
	return &PgStore{db: db}
}

// Connect connects to the database, retrying with exponential backoff until the database
// answers or a minute has passed. It does not create any tables.
func Connect(ctx context.Context, opts *Config) (*PgStore, error) {
	log.Infof("connecting to database %s:%s", opts.Host, opts.Port)
	sqlDB, err := sql.Open("pgx", opts.URL())
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectTimeout
	err = backoff.RetryNotify(
		func() error { return sqlDB.PingContext(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			log.WithError(err).Warnf("failed to connect to postgres, trying again in %s", wait)
		},
	)
	if err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "could not connect to database %s:%s", opts.Host, opts.Port)
	}

	db := bun.NewDB(sqlDB, pgdialect.New())
	if log.IsLevelEnabled(log.TraceLevel) {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return NewPgStore(db), nil
}

// Setup connects to the database and creates the hyperband tables if needed.
func Setup(ctx context.Context, opts *Config) (*PgStore, error) {
	s, err := Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// CreateSchema creates the schedule and result tables.
func (s *PgStore) CreateSchema(ctx context.Context) error {
	for _, m := range []interface{}{
		(*model.ScheduleEntry)(nil),
		(*model.ConfigurationResult)(nil),
	} {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "creating hyperband tables")
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*model.ConfigurationResult)(nil)).
		Index("hyperband_results_bracket_idx").
		IfNotExists().
		Column("run_id", "bracket").
		Exec(ctx)
	return errors.Wrap(err, "creating hyperband result index")
}

// Close closes the underlying connection pool.
func (s *PgStore) Close() error {
	return s.db.Close()
}

// PutSchedule implements searcher.ResultStore.
func (s *PgStore) PutSchedule(
	ctx context.Context, runID uuid.UUID, entries []model.ScheduleEntry,
) error {
	if len(entries) == 0 {
		return nil
	}
	rows := append([]model.ScheduleEntry(nil), entries...)
	for i := range rows {
		rows[i].RunID = runID
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*model.ScheduleEntry)(nil)).
			Where("run_id = ?", runID).
			Exec(ctx); err != nil {
			return errors.Wrapf(err, "clearing schedule of run %s", runID)
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return errors.Wrapf(err, "inserting schedule of run %s", runID)
		}
		return nil
	})
}

// GetSchedule implements searcher.ResultStore.
func (s *PgStore) GetSchedule(ctx context.Context, runID uuid.UUID) ([]model.ScheduleEntry, error) {
	var entries []model.ScheduleEntry
	if err := s.db.NewSelect().
		Model(&entries).
		Where("run_id = ?", runID).
		Order("bracket DESC", "round ASC").
		Scan(ctx); err != nil {
		return nil, errors.Wrapf(err, "loading schedule of run %s", runID)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// PutConfigurationResult implements searcher.ResultStore. All records are upserted in one
// transaction.
func (s *PgStore) PutConfigurationResult(
	ctx context.Context, runID uuid.UUID, records ...model.ConfigurationResult,
) error {
	if len(records) == 0 {
		return nil
	}
	rows := append([]model.ConfigurationResult(nil), records...)
	for i := range rows {
		rows[i].RunID = runID
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (run_id, mst_key) DO UPDATE").
			Set("bracket = EXCLUDED.bracket").
			Set("round = EXCLUDED.round").
			Set("iteration = EXCLUDED.iteration").
			Set("loss_history = EXCLUDED.loss_history").
			Set("metric_history = EXCLUDED.metric_history").
			Set("iterations = EXCLUDED.iterations").
			Set("final_loss = EXCLUDED.final_loss").
			Set("final_metric = EXCLUDED.final_metric").
			Set("elapsed = EXCLUDED.elapsed").
			Set("hyperparameters = EXCLUDED.hyperparameters").
			Exec(ctx)
		return errors.Wrapf(err, "upserting %d results of run %s", len(rows), runID)
	})
}

// GetBracketResults implements searcher.ResultStore.
func (s *PgStore) GetBracketResults(
	ctx context.Context, runID uuid.UUID, bracket int,
) ([]model.ConfigurationResult, error) {
	var records []model.ConfigurationResult
	if err := s.db.NewSelect().
		Model(&records).
		Where("run_id = ?", runID).
		Where("bracket = ?", bracket).
		Order("mst_key ASC").
		Scan(ctx); err != nil {
		return nil, errors.Wrapf(err, "loading bracket %d of run %s", bracket, runID)
	}
	return records, nil
}
