package domain

import (
	"context"
	"time"
)

// JobStore persists job rows. Implementations map a missing row to
// ErrNotFound.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Job, error)
	ListStale(ctx context.Context, status JobStatus, olderThan time.Time, limit int) ([]Job, error)
	SetStatus(ctx context.Context, jobID string, status JobStatus, resultRef string) error
	SetMeta(ctx context.Context, jobID string, meta JobMeta) error
	Delete(ctx context.Context, jobID string) error
}

// LedgerStore is the balance row plus its transaction trail. UpdateBalance is
// the single conditional write the ledger relies on: the balance mutation and
// the transaction append land together, and the write fails with
// ErrVersionConflict when the row's version no longer matches
// expectedVersion.
type LedgerStore interface {
	GetBalance(ctx context.Context, teamID string) (*Balance, error)
	CreateBalance(ctx context.Context, bal *Balance, tx *CreditTransaction) error
	UpdateBalance(ctx context.Context, bal *Balance, expectedVersion int64, tx *CreditTransaction) error
	ListTransactions(ctx context.Context, teamID string, limit int) ([]CreditTransaction, error)
	TransactionsForJob(ctx context.Context, jobID string) ([]CreditTransaction, error)
}
