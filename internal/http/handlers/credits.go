package handlers

import (
	"errors"
	"net/http"

	"mediaforge/internal/domain"
)

// CreditsBalance returns the team's current balance and lifetime counters.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	bal, err := a.Ledger.Balance(r.Context(), id.TeamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{
				"team_id":          id.TeamID,
				"credits":          0,
				"total_credits":    0,
				"credits_consumed": 0,
			})
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"team_id":          bal.TeamID,
		"credits":          bal.Credits,
		"total_credits":    bal.TotalCredits,
		"credits_consumed": bal.CreditsConsumed,
		"updated_at":       bal.UpdatedAt,
	})
}

// CreditsTransactions returns the team's recent ledger entries.
func (a *App) CreditsTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	txs, err := a.Ledger.Transactions(r.Context(), id.TeamID, 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list transactions")
		return
	}
	items := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		item := map[string]any{
			"id":             tx.ID,
			"type":           tx.Type,
			"amount":         tx.Amount,
			"balance_before": tx.BalanceBefore,
			"balance_after":  tx.BalanceAfter,
			"reason":         tx.Reason,
			"created_at":     tx.CreatedAt,
		}
		if tx.JobID != "" {
			item["job_id"] = tx.JobID
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
