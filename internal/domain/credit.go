package domain

import "time"

// TxType represents the business reason for a ledger entry.
type TxType string

const (
	TxCharge  TxType = "charge"
	TxConsume TxType = "consume"
	TxRefund  TxType = "refund"
	TxBonus   TxType = "bonus"
)

// CreditTransaction is one immutable entry in a team's ledger. Amount is
// signed (negative for consume). For any entry
// BalanceBefore + Amount == BalanceAfter, and entries for a team chain:
// each BalanceBefore equals the previous entry's BalanceAfter.
type CreditTransaction struct {
	ID            string
	TeamID        string
	JobID         string // empty for grants with no associated job
	Type          TxType
	Amount        int
	BalanceBefore int
	BalanceAfter  int
	Reason        string
	CreatedAt     time.Time
}

// Balance is a team's current spendable credits plus lifetime counters.
// Mutated only inside a ledger operation; Version guards the
// read-decide-write cycle.
type Balance struct {
	TeamID          string
	Credits         int
	TotalCredits    int
	CreditsConsumed int
	Version         int64
	UpdatedAt       time.Time
}
