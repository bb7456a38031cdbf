package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fambudget/internal/core"
)

// CreateBudget inserts a monthly category limit and returns its id.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (family_id, category_id, year, month, limit_cents)
		VALUES (?, ?, ?, ?, ?)`,
		b.FamilyID, b.CategoryID, b.Year, b.Month, b.Limit.Cents)
	if err != nil {
		return 0, fmt.Errorf("insert budget: %w", err)
	}
	return res.LastInsertId()
}

// ListBudgets returns a family's budgets for one month.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, familyID int64, year, month int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family_id, category_id, year, month, limit_cents
		FROM budgets WHERE family_id = ? AND year = ? AND month = ? ORDER BY category_id`,
		familyID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.FamilyID, &b.CategoryID, &b.Year, &b.Month, &b.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// UpdateBudget changes the limit of an existing budget.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, familyID, id int64, limit core.Money) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET limit_cents = ? WHERE id = ? AND family_id = ?`,
		limit.Cents, id, familyID)
	if err != nil {
		return fmt.Errorf("update budget %d: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteBudget removes a budget.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return requireRow(res, id)
}

// CreateGoal inserts a savings goal and returns its id.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (family_id, name, target_cents, saved_cents, deadline)
		VALUES (?, ?, ?, ?, ?)`,
		g.FamilyID, g.Name, g.Target.Cents, g.Saved.Cents, dateString(g.Deadline))
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	return res.LastInsertId()
}

// GetGoal fetches a single goal within a family.
func (r *SQLiteRepository) GetGoal(ctx context.Context, familyID, id int64) (core.Goal, error) {
	var (
		g        core.Goal
		deadline sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, family_id, name, target_cents, saved_cents, deadline
		FROM goals WHERE id = ? AND family_id = ?`, id, familyID).
		Scan(&g.ID, &g.FamilyID, &g.Name, &g.Target.Cents, &g.Saved.Cents, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %d: %w", id, err)
	}
	if g.Deadline, err = scanDate(deadline); err != nil {
		return core.Goal{}, fmt.Errorf("parse goal deadline: %w", err)
	}
	return g, nil
}

// ListGoals returns a family's savings goals.
func (r *SQLiteRepository) ListGoals(ctx context.Context, familyID int64) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family_id, name, target_cents, saved_cents, deadline
		FROM goals WHERE family_id = ? ORDER BY id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		var (
			g        core.Goal
			deadline sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.FamilyID, &g.Name, &g.Target.Cents, &g.Saved.Cents, &deadline); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.Deadline, err = scanDate(deadline); err != nil {
			return nil, fmt.Errorf("parse goal deadline: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// AddToGoal adds a contribution to a goal's saved amount.
func (r *SQLiteRepository) AddToGoal(ctx context.Context, familyID, id int64, amount core.Money) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET saved_cents = saved_cents + ? WHERE id = ? AND family_id = ?`,
		amount.Cents, id, familyID)
	if err != nil {
		return fmt.Errorf("add to goal %d: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteGoal removes a goal.
func (r *SQLiteRepository) DeleteGoal(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	return requireRow(res, id)
}
