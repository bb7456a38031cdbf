package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fambudget/internal/core"
)

// CreateTransaction inserts a ledger entry and returns its id.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (family_id, user_id, category_id, kind, amount_cents, description, tx_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.FamilyID, t.UserID, t.CategoryID, string(t.Kind), t.Amount.Cents, t.Description, t.Date.String())
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"family_id", t.FamilyID,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())

	return id, nil
}

// GetTransaction fetches a single non-deleted transaction.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, familyID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, family_id, user_id, category_id, kind, amount_cents, description, tx_date
		FROM transactions WHERE id = ? AND family_id = ? AND deleted_at IS NULL`, id, familyID)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns a family's ledger for one calendar month.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, familyID int64, year, month int) ([]core.Transaction, error) {
	from := core.NewDate(year, month, 1)
	to := core.NewDate(year, month, core.LastDayOfMonth(year, month))

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family_id, user_id, category_id, kind, amount_cents, description, tx_date
		FROM transactions
		WHERE family_id = ? AND deleted_at IS NULL AND tx_date BETWEEN ? AND ?
		ORDER BY tx_date, id`, familyID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var ts []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

// SoftDeleteTransaction marks a ledger entry deleted without removing the row.
func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND family_id = ? AND deleted_at IS NULL`, id, familyID)
	if err != nil {
		return fmt.Errorf("soft delete transaction %d: %w", id, err)
	}
	return requireRow(res, id)
}

func scanTransaction(row ruleScanner) (core.Transaction, error) {
	var (
		t      core.Transaction
		kind   string
		txDate string
	)
	err := row.Scan(&t.ID, &t.FamilyID, &t.UserID, &t.CategoryID, &kind,
		&t.Amount.Cents, &t.Description, &txDate)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	if t.Date, err = core.ParseDate(txDate); err != nil {
		return core.Transaction{}, fmt.Errorf("parse tx date: %w", err)
	}
	return t, nil
}
