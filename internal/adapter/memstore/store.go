// Package memstore provides in-memory implementations of the domain stores.
// Used by tests and by development mode when no DATABASE_URL is configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediaforge/internal/domain"
)

// JobStore is a mutex-guarded map of job rows.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.Job)}
}

func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	stored := *job
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.jobs[stored.ID] = stored
	return nil
}

func (s *JobStore) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := job
	return &out, nil
}

func (s *JobStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) ListStale(ctx context.Context, status domain.JobStatus, olderThan time.Time, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status == status && job.UpdatedAt.Before(olderThan) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) SetStatus(ctx context.Context, jobID string, status domain.JobStatus, resultRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if resultRef != "" {
		job.ResultRef = resultRef
	}
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) SetMeta(ctx context.Context, jobID string, meta domain.JobMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Meta = meta
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

var _ domain.JobStore = (*JobStore)(nil)

// LedgerStore keeps balances and transactions under one mutex so the
// conditional update and the transaction append land atomically, matching
// the transactional behavior of the Postgres store.
type LedgerStore struct {
	mu       sync.Mutex
	balances map[string]domain.Balance
	txs      []domain.CreditTransaction
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{balances: make(map[string]domain.Balance)}
}

func (s *LedgerStore) GetBalance(ctx context.Context, teamID string) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal, ok := s.balances[teamID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := bal
	return &out, nil
}

func (s *LedgerStore) CreateBalance(ctx context.Context, bal *domain.Balance, tx *domain.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[bal.TeamID]; ok {
		return domain.ErrVersionConflict
	}
	s.balances[bal.TeamID] = *bal
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *LedgerStore) UpdateBalance(ctx context.Context, bal *domain.Balance, expectedVersion int64, tx *domain.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.balances[bal.TeamID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	next := *bal
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()
	s.balances[bal.TeamID] = next
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, teamID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CreditTransaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].TeamID == teamID {
			out = append(out, s.txs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *LedgerStore) TransactionsForJob(ctx context.Context, jobID string) ([]domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CreditTransaction
	for _, tx := range s.txs {
		if tx.JobID == jobID && jobID != "" {
			out = append(out, tx)
		}
	}
	return out, nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
