package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fambudget/internal/core"
)

const ruleColumns = `id, family_id, user_id, category_id, kind, amount_cents, description,
	frequency, start_date, end_date, next_occurrence, day_of_month, day_of_week, is_active`

// CreateRecurringRule inserts a rule and returns its id. NextOccurrence must
// already be computed by the caller.
func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules
			(family_id, user_id, category_id, kind, amount_cents, description,
			 frequency, start_date, end_date, next_occurrence, day_of_month, day_of_week, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.FamilyID, rule.UserID, rule.CategoryID, string(rule.Kind), rule.Amount.Cents,
		rule.Description, string(rule.Frequency), rule.StartDate.String(), dateString(rule.EndDate),
		rule.NextOccurrence.String(), anchorValue(rule.DayOfMonth, 1), anchorValue(rule.DayOfWeek, 0),
		rule.Active)
	if err != nil {
		return 0, fmt.Errorf("insert recurring rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring rule id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved",
		"id", id,
		"family_id", rule.FamilyID,
		"frequency", rule.Frequency,
		"next_occurrence", rule.NextOccurrence.String())

	return id, nil
}

// GetRecurringRule fetches a single rule by id within a family.
func (r *SQLiteRepository) GetRecurringRule(ctx context.Context, familyID, id int64) (core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ? AND family_id = ?`, id, familyID)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule %d: %w", id, err)
	}
	return rule, nil
}

// ListRecurringRules returns every rule (active or not) owned by a family.
func (r *SQLiteRepository) ListRecurringRules(ctx context.Context, familyID int64) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE family_id = ? ORDER BY next_occurrence, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListDueRules returns the active rules of a family whose next occurrence is
// on or before asOf and whose end date, when set, has not been passed by the
// pending occurrence.
func (r *SQLiteRepository) ListDueRules(ctx context.Context, familyID int64, asOf core.Date) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM recurring_rules
		WHERE family_id = ?
		  AND is_active = 1
		  AND next_occurrence <= ?
		  AND (end_date IS NULL OR end_date = '' OR end_date >= next_occurrence)
		ORDER BY id`, familyID, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// FamiliesWithDueRules returns the ids of families that have at least one due
// rule, for worker-driven batch processing.
func (r *SQLiteRepository) FamiliesWithDueRules(ctx context.Context, asOf core.Date) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT family_id FROM recurring_rules
		WHERE is_active = 1
		  AND next_occurrence <= ?
		  AND (end_date IS NULL OR end_date = '' OR end_date >= next_occurrence)
		ORDER BY family_id`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("families with due rules: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan family id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateRecurringRule overwrites a rule's mutable fields, including the
// recomputed next occurrence.
func (r *SQLiteRepository) UpdateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET
			category_id = ?, kind = ?, amount_cents = ?, description = ?,
			frequency = ?, start_date = ?, end_date = ?, next_occurrence = ?,
			day_of_month = ?, day_of_week = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND family_id = ?`,
		rule.CategoryID, string(rule.Kind), rule.Amount.Cents, rule.Description,
		string(rule.Frequency), rule.StartDate.String(), dateString(rule.EndDate),
		rule.NextOccurrence.String(), anchorValue(rule.DayOfMonth, 1), anchorValue(rule.DayOfWeek, 0),
		rule.Active, rule.ID, rule.FamilyID)
	if err != nil {
		return fmt.Errorf("update recurring rule %d: %w", rule.ID, err)
	}
	return requireRow(res, rule.ID)
}

// MaterializeRule inserts the ledger transaction for one due occurrence and
// advances the rule's schedule in a single database transaction. A failure of
// either write rolls back both, so the rule stays due with no orphaned ledger
// row.
func (r *SQLiteRepository) MaterializeRule(ctx context.Context, t core.Transaction, ruleID int64, next core.Date) (int64, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin materialize for rule %d: %w", ruleID, err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (family_id, user_id, category_id, kind, amount_cents, description, tx_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.FamilyID, t.UserID, t.CategoryID, string(t.Kind), t.Amount.Cents, t.Description, t.Date.String())
	if err != nil {
		return 0, fmt.Errorf("insert materialized transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("materialized transaction id: %w", err)
	}

	upd, err := dbTx.ExecContext(ctx, `
		UPDATE recurring_rules SET next_occurrence = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, next.String(), ruleID)
	if err != nil {
		return 0, fmt.Errorf("advance next occurrence for rule %d: %w", ruleID, err)
	}
	if err := requireRow(upd, ruleID); err != nil {
		return 0, err
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit materialize for rule %d: %w", ruleID, err)
	}

	slog.InfoContext(ctx, "Rule materialized",
		"rule_id", ruleID,
		"transaction_id", id,
		"date", t.Date.String(),
		"next_occurrence", next.String())

	return id, nil
}

// SetRuleActive toggles a rule without removing it from storage.
func (r *SQLiteRepository) SetRuleActive(ctx context.Context, familyID, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND family_id = ?`, active, id, familyID)
	if err != nil {
		return fmt.Errorf("set rule %d active=%t: %w", id, active, err)
	}
	return requireRow(res, id)
}

// DeleteRecurringRule removes a rule permanently. Deactivation is the normal
// lifecycle path; deletion is an explicit user action.
func (r *SQLiteRepository) DeleteRecurringRule(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_rules WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete recurring rule %d: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (core.RecurringRule, error) {
	var (
		rule              core.RecurringRule
		kind, frequency   string
		startDate         string
		endDate, nextDate sql.NullString
		dayMonth, dayWeek sql.NullInt64
	)
	err := row.Scan(&rule.ID, &rule.FamilyID, &rule.UserID, &rule.CategoryID, &kind,
		&rule.Amount.Cents, &rule.Description, &frequency, &startDate, &endDate,
		&nextDate, &dayMonth, &dayWeek, &rule.Active)
	if err != nil {
		return core.RecurringRule{}, err
	}

	rule.Kind = core.Kind(kind)
	rule.Frequency = core.Frequency(frequency)

	if rule.StartDate, err = core.ParseDate(startDate); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse start date: %w", err)
	}
	if rule.EndDate, err = scanDate(endDate); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse end date: %w", err)
	}
	if rule.NextOccurrence, err = scanDate(nextDate); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse next occurrence: %w", err)
	}

	rule.DayOfMonth = 0
	if dayMonth.Valid {
		rule.DayOfMonth = int(dayMonth.Int64)
	}
	rule.DayOfWeek = -1
	if dayWeek.Valid {
		rule.DayOfWeek = int(dayWeek.Int64)
	}

	return rule, nil
}

func collectRules(rows *sql.Rows) ([]core.RecurringRule, error) {
	var rules []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
