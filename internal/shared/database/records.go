package database

import (
	"context"

	"github.com/costpilot/gateway/internal/shared/models"
)

// InsertRequestRecord appends one audit row for an inbound call.
func (db *DB) InsertRequestRecord(ctx context.Context, rec *models.RequestRecord) error {
	query := `
		INSERT INTO request_records (
			request_id, owner_id, credential_id, provider, model,
			tokens_used, cost_usd, savings_usd, latency_ms, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := db.conn.ExecContext(ctx,
		query,
		rec.RequestID,
		rec.OwnerID,
		rec.CredentialID,
		rec.Provider,
		rec.Model,
		rec.TokensUsed,
		rec.CostUSD,
		rec.SavingsUSD,
		rec.LatencyMs,
		rec.Status,
		rec.ErrorMessage,
	)

	return err
}
