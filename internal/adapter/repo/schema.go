package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL the repositories expect. Applied on startup when
// AUTO_MIGRATE is set.
const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id               UUID PRIMARY KEY,
    owner_id         TEXT NOT NULL,
    team_id          TEXT NOT NULL,
    kind             TEXT NOT NULL,
    status           TEXT NOT NULL,
    provider         TEXT NOT NULL DEFAULT '',
    input_json       JSONB,
    required_credits INT NOT NULL,
    result_ref       TEXT NOT NULL DEFAULT '',
    meta_json        JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_jobs_owner_created ON jobs (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs (status, updated_at);

CREATE TABLE IF NOT EXISTS balances (
    team_id          TEXT PRIMARY KEY,
    credits          INT NOT NULL,
    total_credits    INT NOT NULL,
    credits_consumed INT NOT NULL DEFAULT 0,
    version          BIGINT NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS credit_transactions (
    id             UUID PRIMARY KEY,
    team_id        TEXT NOT NULL,
    job_id         UUID,
    type           TEXT NOT NULL,
    amount         INT NOT NULL,
    balance_before INT NOT NULL,
    balance_after  INT NOT NULL,
    reason         TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_credit_tx_team_created ON credit_transactions (team_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_credit_tx_job ON credit_transactions (job_id) WHERE job_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_tx_job_refund ON credit_transactions (job_id) WHERE type = 'refund';
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
