package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/costpilot/gateway/internal/shared/models"
)

// ListEnabledRules returns an account's enabled optimization rules ordered by
// stored priority. The result is the immutable snapshot the rule engine
// evaluates; it is fetched once per request and never re-read mid-evaluation.
func (db *DB) ListEnabledRules(ctx context.Context, ownerID string) ([]models.Rule, error) {
	query := `
		SELECT id, owner_id, source_model, target_model, conditions, enabled, priority, accumulated_savings
		FROM optimization_rules
		WHERE owner_id = $1 AND enabled = true
		ORDER BY priority ASC, created_at ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var r models.Rule
		var conditions []byte
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.SourceModel, &r.TargetModel, &conditions, &r.Enabled, &r.Priority, &r.AccumulatedSavings); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
				return nil, fmt.Errorf("invalid conditions for rule %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddRuleSavings credits savings to a rule's accumulator.
func (db *DB) AddRuleSavings(ctx context.Context, ruleID string, savings float64) error {
	query := `UPDATE optimization_rules SET accumulated_savings = accumulated_savings + $1 WHERE id = $2`
	_, err := db.conn.ExecContext(ctx, query, savings, ruleID)
	return err
}
