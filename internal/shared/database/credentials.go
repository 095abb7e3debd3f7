package database

import (
	"context"
	"fmt"

	"github.com/costpilot/gateway/internal/shared/models"
)

// ListCredentials returns every stored credential. Secrets are stored
// encrypted, so resolving a bearer token requires decrypting and comparing
// each candidate; the scan is O(n) over this list.
func (db *DB) ListCredentials(ctx context.Context) ([]models.Credential, error) {
	query := `
		SELECT id, owner_id, provider, encrypted_secret, status, last_used_at, created_at
		FROM credentials
	`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Provider, &c.EncryptedSecret, &c.Status, &c.LastUsedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// UpdateCredentialLastUsed updates the last_used_at timestamp
func (db *DB) UpdateCredentialLastUsed(ctx context.Context, credentialID string) error {
	query := `UPDATE credentials SET last_used_at = NOW() WHERE id = $1`
	_, err := db.conn.ExecContext(ctx, query, credentialID)
	return err
}
