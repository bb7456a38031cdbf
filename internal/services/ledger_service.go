package services

import (
	"context"
	"fmt"

	"fambudget/internal/core"
)

// TransactionStore persists ledger entries.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	GetTransaction(ctx context.Context, familyID, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, familyID int64, year, month int) ([]core.Transaction, error)
	SoftDeleteTransaction(ctx context.Context, familyID, id int64) error
}

// LedgerService handles manual ledger entries. Materialized entries go through
// the same store but are created by the RecurringProcessor.
type LedgerService struct {
	store   TransactionStore
	catalog CategoryReader
}

func NewLedgerService(store TransactionStore, catalog CategoryReader) *LedgerService {
	return &LedgerService{store: store, catalog: catalog}
}

// CreateTransaction validates and persists a manual ledger entry.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	cat, err := s.catalog.GetCategory(ctx, t.FamilyID, t.CategoryID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("lookup category %d: %w", t.CategoryID, err)
	}
	if cat.Kind != t.Kind {
		return core.Transaction{}, fmt.Errorf("%w: transaction is %s, category %q is %s",
			core.ErrCategoryMismatch, t.Kind, cat.Name, cat.Kind)
	}

	id, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.ID = id
	return t, nil
}

// GetTransaction fetches a single ledger entry.
func (s *LedgerService) GetTransaction(ctx context.Context, familyID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, familyID, id)
}

// ListMonth returns a family's ledger for one calendar month.
func (s *LedgerService) ListMonth(ctx context.Context, familyID int64, year, month int) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, familyID, year, month)
}

// DeleteTransaction soft deletes a ledger entry.
func (s *LedgerService) DeleteTransaction(ctx context.Context, familyID, id int64) error {
	return s.store.SoftDeleteTransaction(ctx, familyID, id)
}
