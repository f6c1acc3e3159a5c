// Command grantcredits tops up a team's credit balance. Intended for support
// and operations use; every grant is recorded as a charge transaction.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediaforge/internal/adapter/repo"
	"mediaforge/internal/infra"
	"mediaforge/internal/ledger"
)

func main() {
	var (
		teamFlag   string
		amountFlag int
		reasonFlag string
	)

	flag.StringVar(&teamFlag, "team", "", "team ID to credit")
	flag.IntVar(&amountFlag, "amount", 0, "number of credits to add (must be positive)")
	flag.StringVar(&reasonFlag, "reason", "manual grant", "reason recorded on the transaction")
	flag.Parse()

	teamID := strings.TrimSpace(teamFlag)
	if teamID == "" {
		exitWithError(errors.New("-team is required"))
	}
	if amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "grantcredits").Logger()
	creditLedger := ledger.New(repo.NewLedgerRepository(pool), logger)

	if err := creditLedger.Charge(ctx, teamID, amountFlag, reasonFlag); err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	bal, err := creditLedger.Balance(ctx, teamID)
	if err != nil {
		exitWithError(fmt.Errorf("granted, but failed to read balance back: %w", err))
	}

	fmt.Printf("Team %s credited with %d (%s)\n", teamID, amountFlag, reasonFlag)
	fmt.Printf("credits=%d total_credits=%d consumed=%d\n", bal.Credits, bal.TotalCredits, bal.CreditsConsumed)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
