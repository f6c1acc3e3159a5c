package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediaforge/internal/domain"
)

// LedgerRepositoryPG implements domain.LedgerStore. The conditional balance
// update and the transaction append run inside one database transaction; the
// version predicate on the UPDATE is the optimistic-concurrency guard.
type LedgerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository backed by PostgreSQL.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool}
}

// GetBalance reads the team's balance row.
func (r *LedgerRepositoryPG) GetBalance(ctx context.Context, teamID string) (*domain.Balance, error) {
	query := `
SELECT team_id, credits, total_credits, credits_consumed, version, updated_at
FROM balances
WHERE team_id = $1;
`
	row := r.pool.QueryRow(ctx, query, teamID)
	var bal domain.Balance
	if err := row.Scan(&bal.TeamID, &bal.Credits, &bal.TotalCredits, &bal.CreditsConsumed, &bal.Version, &bal.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &bal, nil
}

// CreateBalance inserts the first balance row for a team together with its
// opening transaction.
func (r *LedgerRepositoryPG) CreateBalance(ctx context.Context, bal *domain.Balance, tx *domain.CreditTransaction) error {
	return r.inTx(ctx, func(dbtx pgx.Tx) error {
		query := `
INSERT INTO balances (team_id, credits, total_credits, credits_consumed, version, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW());
`
		if _, err := dbtx.Exec(ctx, query, bal.TeamID, bal.Credits, bal.TotalCredits, bal.CreditsConsumed, bal.Version); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrVersionConflict
			}
			return err
		}
		return appendTransaction(ctx, dbtx, tx)
	})
}

// UpdateBalance writes the new balance values only if the row still carries
// expectedVersion, bumping the version and appending the transaction in the
// same database transaction.
func (r *LedgerRepositoryPG) UpdateBalance(ctx context.Context, bal *domain.Balance, expectedVersion int64, tx *domain.CreditTransaction) error {
	return r.inTx(ctx, func(dbtx pgx.Tx) error {
		query := `
UPDATE balances
SET credits = $2,
    total_credits = $3,
    credits_consumed = $4,
    version = version + 1,
    updated_at = NOW()
WHERE team_id = $1 AND version = $5;
`
		tag, err := dbtx.Exec(ctx, query, bal.TeamID, bal.Credits, bal.TotalCredits, bal.CreditsConsumed, expectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrVersionConflict
		}
		return appendTransaction(ctx, dbtx, tx)
	})
}

// ListTransactions returns the team's most recent ledger entries.
func (r *LedgerRepositoryPG) ListTransactions(ctx context.Context, teamID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, team_id, COALESCE(job_id, ''), type, amount, balance_before, balance_after, reason, created_at
FROM credit_transactions
WHERE team_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, teamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// TransactionsForJob returns every ledger entry referencing a job.
func (r *LedgerRepositoryPG) TransactionsForJob(ctx context.Context, jobID string) ([]domain.CreditTransaction, error) {
	query := `
SELECT id, team_id, COALESCE(job_id, ''), type, amount, balance_before, balance_after, reason, created_at
FROM credit_transactions
WHERE job_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *LedgerRepositoryPG) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	dbtx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(dbtx); err != nil {
		_ = dbtx.Rollback(ctx)
		return err
	}
	return dbtx.Commit(ctx)
}

func appendTransaction(ctx context.Context, dbtx pgx.Tx, tx *domain.CreditTransaction) error {
	query := `
INSERT INTO credit_transactions (id, team_id, job_id, type, amount, balance_before, balance_after, reason, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9);
`
	_, err := dbtx.Exec(ctx, query, tx.ID, tx.TeamID, tx.JobID, tx.Type, tx.Amount, tx.BalanceBefore, tx.BalanceAfter, tx.Reason, tx.CreatedAt)
	return err
}

func scanTransactions(rows pgx.Rows) ([]domain.CreditTransaction, error) {
	var out []domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		if err := rows.Scan(&tx.ID, &tx.TeamID, &tx.JobID, &tx.Type, &tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter, &tx.Reason, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

var _ domain.LedgerStore = (*LedgerRepositoryPG)(nil)
