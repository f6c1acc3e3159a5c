// Package ledger owns every balance mutation. All writes go through a
// read-decide-write cycle guarded by the balance row's version, so two
// concurrent consumers can never both pass the sufficiency check against a
// stale balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra/metrics"
)

// maxAttempts bounds the CAS retry loop. Conflicts under normal load resolve
// within one or two retries; hitting the bound indicates pathological
// contention and is surfaced as an error.
const maxAttempts = 5

type Ledger struct {
	store  domain.LedgerStore
	logger zerolog.Logger
}

func New(store domain.LedgerStore, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger.With().Str("component", "ledger").Logger()}
}

// Consume decrements the team's balance by amount and appends a consume
// transaction referencing jobID. An insufficient balance is an expected
// business outcome and returns (false, nil); only systems faults return an
// error.
func (l *Ledger) Consume(ctx context.Context, teamID, jobID string, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("ledger: consume amount must be positive, got %d", amount)
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		bal, err := l.store.GetBalance(ctx, teamID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("ledger: read balance: %w", err)
		}
		if bal.Credits < amount {
			return false, nil
		}
		next := *bal
		next.Credits -= amount
		next.CreditsConsumed += amount
		tx := l.newTx(teamID, jobID, domain.TxConsume, -amount, bal.Credits, next.Credits, "job reservation")
		err = l.store.UpdateBalance(ctx, &next, bal.Version, tx)
		if err == nil {
			metrics.CreditsConsumed.Add(float64(amount))
			return true, nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.LedgerConflicts.Inc()
			l.logger.Debug().Str("team_id", teamID).Int("attempt", attempt+1).Msg("consume conflict, retrying")
			continue
		}
		return false, fmt.Errorf("ledger: consume: %w", err)
	}
	return false, fmt.Errorf("ledger: consume for team %s: %w", teamID, domain.ErrVersionConflict)
}

// Refund returns amount to the team's balance and appends a refund
// transaction. CreditsConsumed is untouched: consumption history reflects
// what was genuinely used, not later reversed.
func (l *Ledger) Refund(ctx context.Context, teamID, jobID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: refund amount must be positive, got %d", amount)
	}
	err := l.apply(ctx, teamID, func(bal *domain.Balance) *domain.CreditTransaction {
		before := bal.Credits
		bal.Credits += amount
		return l.newTx(teamID, jobID, domain.TxRefund, amount, before, bal.Credits, reason)
	})
	if err != nil {
		return err
	}
	metrics.CreditsRefunded.Add(float64(amount))
	return nil
}

// Charge grants amount credits to the team (subscription or bonus). It
// creates the balance row when the team has none yet.
func (l *Ledger) Charge(ctx context.Context, teamID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: charge amount must be positive, got %d", amount)
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		bal, err := l.store.GetBalance(ctx, teamID)
		if errors.Is(err, domain.ErrNotFound) {
			fresh := &domain.Balance{
				TeamID:       teamID,
				Credits:      amount,
				TotalCredits: amount,
				Version:      1,
				UpdatedAt:    time.Now().UTC(),
			}
			tx := l.newTx(teamID, "", domain.TxCharge, amount, 0, amount, reason)
			if err := l.store.CreateBalance(ctx, fresh, tx); err != nil {
				// Lost a race with a concurrent first charge; re-read.
				l.logger.Debug().Str("team_id", teamID).Err(err).Msg("balance create raced, retrying")
				continue
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("ledger: read balance: %w", err)
		}
		next := *bal
		next.Credits += amount
		next.TotalCredits += amount
		tx := l.newTx(teamID, "", domain.TxCharge, amount, bal.Credits, next.Credits, reason)
		err = l.store.UpdateBalance(ctx, &next, bal.Version, tx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.LedgerConflicts.Inc()
			continue
		}
		return fmt.Errorf("ledger: charge: %w", err)
	}
	return fmt.Errorf("ledger: charge for team %s: %w", teamID, domain.ErrVersionConflict)
}

// Balance returns the team's current balance row.
func (l *Ledger) Balance(ctx context.Context, teamID string) (*domain.Balance, error) {
	return l.store.GetBalance(ctx, teamID)
}

// Transactions lists the team's most recent ledger entries.
func (l *Ledger) Transactions(ctx context.Context, teamID string, limit int) ([]domain.CreditTransaction, error) {
	return l.store.ListTransactions(ctx, teamID, limit)
}

// TransactionsForJob lists every ledger entry referencing a job.
func (l *Ledger) TransactionsForJob(ctx context.Context, jobID string) ([]domain.CreditTransaction, error) {
	return l.store.TransactionsForJob(ctx, jobID)
}

// apply runs one mutation through the CAS retry loop. The balance must
// already exist.
func (l *Ledger) apply(ctx context.Context, teamID string, mutate func(*domain.Balance) *domain.CreditTransaction) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		bal, err := l.store.GetBalance(ctx, teamID)
		if err != nil {
			return fmt.Errorf("ledger: read balance: %w", err)
		}
		next := *bal
		tx := mutate(&next)
		err = l.store.UpdateBalance(ctx, &next, bal.Version, tx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.LedgerConflicts.Inc()
			continue
		}
		return fmt.Errorf("ledger: update balance: %w", err)
	}
	return fmt.Errorf("ledger: update for team %s: %w", teamID, domain.ErrVersionConflict)
}

func (l *Ledger) newTx(teamID, jobID string, typ domain.TxType, amount, before, after int, reason string) *domain.CreditTransaction {
	return &domain.CreditTransaction{
		ID:            uuid.NewString(),
		TeamID:        teamID,
		JobID:         jobID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        reason,
		CreatedAt:     time.Now().UTC(),
	}
}
