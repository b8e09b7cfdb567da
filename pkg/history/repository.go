package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	StoreRun(ctx context.Context, run Run) error
	// GetLastRuns returns up to limit runs, most recent first.
	GetLastRuns(ctx context.Context, limit int) ([]Run, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepo(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.withTx(ctx, func(txRepo *RepositoryImpl) error {
		return fn(txRepo)
	})
}

// withTx runs fn on a repository bound to a transaction, reusing the current
// one when r is already transactional.
func (r *RepositoryImpl) withTx(ctx context.Context, fn func(txRepo *RepositoryImpl) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&RepositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// StoreRun inserts the run and its failures atomically.
func (r *RepositoryImpl) StoreRun(ctx context.Context, run Run) error {
	return r.withTx(ctx, func(txRepo *RepositoryImpl) error {
		q := txRepo.getQueryer()
		query := `INSERT INTO sync_run (
                      id, started_at, finished_at, source, target, dry_run,
                      added, updated, removed, failed, error
				  ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))`
		_, err := q.Exec(ctx, query,
			run.ID,
			run.StartedAt,
			run.FinishedAt,
			run.Source,
			run.Target,
			run.DryRun,
			run.Added,
			run.Updated,
			run.Removed,
			run.Failed,
			run.Error,
		)
		if err != nil {
			err := fmt.Errorf("could not store sync run: %w", err)
			log.Error(err)
			return err
		}

		for _, f := range run.Failures {
			_, err := q.Exec(ctx,
				`INSERT INTO sync_run_failure (run_id, kind, event_id, summary, error) VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
				run.ID, f.Kind, f.EventID, f.Summary, f.Error)
			if err != nil {
				err := fmt.Errorf("could not store sync run failure: %w", err)
				log.Error(err)
				return err
			}
		}
		return nil
	})
}

func (r *RepositoryImpl) GetLastRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, source, target, dry_run,
                     added, updated, removed, failed, COALESCE(error, '')
              FROM sync_run ORDER BY started_at DESC LIMIT $1`
	rows, err := r.getQueryer().Query(ctx, query, limit)
	if err != nil {
		err := fmt.Errorf("could not query sync runs: %w", err)
		log.Error(err)
		return nil, err
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var run Run
		err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Source, &run.Target, &run.DryRun,
			&run.Added, &run.Updated, &run.Removed, &run.Failed, &run.Error)
		return run, err
	})
	if err != nil {
		err := fmt.Errorf("could not read sync runs: %w", err)
		log.Error(err)
		return nil, err
	}

	for i := range runs {
		failures, err := r.getFailures(ctx, runs[i])
		if err != nil {
			return nil, err
		}
		runs[i].Failures = failures
	}
	return runs, nil
}

func (r *RepositoryImpl) getFailures(ctx context.Context, run Run) ([]Failure, error) {
	if run.Failed == 0 {
		return nil, nil
	}
	rows, err := r.getQueryer().Query(ctx,
		`SELECT kind, COALESCE(event_id, ''), summary, error FROM sync_run_failure WHERE run_id = $1 ORDER BY id`, run.ID)
	if err != nil {
		err := fmt.Errorf("could not query sync run failures: %w", err)
		log.Error(err)
		return nil, err
	}
	failures, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Failure, error) {
		var f Failure
		err := row.Scan(&f.Kind, &f.EventID, &f.Summary, &f.Error)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("could not read sync run failures: %w", err)
	}
	return failures, nil
}
