package database

import (
	"context"
	"fmt"

	"github.com/costpilot/gateway/internal/shared/models"
)

// ListActiveBudgets returns an account's budgets with status=active.
func (db *DB) ListActiveBudgets(ctx context.Context, ownerID string) ([]models.Budget, error) {
	query := `
		SELECT id, owner_id, limit_usd, alert_threshold, current_spend, status
		FROM budgets
		WHERE owner_id = $1 AND status = 'active'
	`

	rows, err := db.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var out []models.Budget
	for rows.Next() {
		var b models.Budget
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.LimitUSD, &b.AlertThreshold, &b.CurrentSpend, &b.Status); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddBudgetSpend atomically adds cost to a budget's spend and returns the new
// total. The single UPDATE avoids the lost-update race a read-then-write
// cycle would have under concurrent billing.
func (db *DB) AddBudgetSpend(ctx context.Context, budgetID string, cost float64) (float64, error) {
	query := `
		UPDATE budgets
		SET current_spend = current_spend + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING current_spend
	`

	var newSpend float64
	if err := db.conn.QueryRowContext(ctx, query, cost, budgetID).Scan(&newSpend); err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return newSpend, nil
}

// MarkBudgetExceeded flips a budget to exceeded. The transition is one-way;
// nothing in the gateway ever sets it back to active.
func (db *DB) MarkBudgetExceeded(ctx context.Context, budgetID string) error {
	query := `UPDATE budgets SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.conn.ExecContext(ctx, query, models.BudgetExceeded, budgetID)
	return err
}
