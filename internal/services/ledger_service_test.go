package services

import (
	"context"
	"errors"
	"testing"

	"fambudget/internal/core"
)

type fakeTransactionStore struct {
	transactions map[int64]core.Transaction
	nextID       int64
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{transactions: make(map[int64]core.Transaction)}
}

func (s *fakeTransactionStore) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.nextID++
	t.ID = s.nextID
	s.transactions[t.ID] = t
	return t.ID, nil
}

func (s *fakeTransactionStore) GetTransaction(_ context.Context, familyID, id int64) (core.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok || t.FamilyID != familyID {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *fakeTransactionStore) ListTransactions(_ context.Context, familyID int64, year, month int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.FamilyID == familyID && t.Date.Year() == year && t.Date.Month() == month {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTransactionStore) SoftDeleteTransaction(_ context.Context, familyID, id int64) error {
	t, ok := s.transactions[id]
	if !ok || t.FamilyID != familyID {
		return core.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func testTransaction() core.Transaction {
	return core.Transaction{
		FamilyID:    1,
		UserID:      2,
		CategoryID:  10,
		Kind:        core.ExpenseKind,
		Amount:      core.Money{Cents: 4599},
		Description: "groceries",
		Date:        core.NewDate(2024, 3, 10),
	}
}

func TestLedgerService_CreateTransaction(t *testing.T) {
	store := newFakeTransactionStore()
	svc := NewLedgerService(store, testCatalog())

	created, err := svc.CreateTransaction(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected assigned id")
	}

	listed, err := svc.ListMonth(context.Background(), 1, 2024, 3)
	if err != nil {
		t.Fatalf("ListMonth: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed %d, want 1", len(listed))
	}
}

func TestLedgerService_CreateTransaction_CategoryMismatch(t *testing.T) {
	store := newFakeTransactionStore()
	svc := NewLedgerService(store, testCatalog())

	tx := testTransaction()
	tx.Kind = core.IncomeKind // expense category

	if _, err := svc.CreateTransaction(context.Background(), tx); !errors.Is(err, core.ErrCategoryMismatch) {
		t.Fatalf("got %v, want ErrCategoryMismatch", err)
	}
	if len(store.transactions) != 0 {
		t.Error("mismatched transaction must not be persisted")
	}
}

func TestLedgerService_CreateTransaction_Invalid(t *testing.T) {
	svc := NewLedgerService(newFakeTransactionStore(), testCatalog())

	tx := testTransaction()
	tx.Amount = core.Money{Cents: -5}

	if _, err := svc.CreateTransaction(context.Background(), tx); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
}

func TestLedgerService_DeleteTransaction(t *testing.T) {
	store := newFakeTransactionStore()
	svc := NewLedgerService(store, testCatalog())

	created, err := svc.CreateTransaction(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := svc.DeleteTransaction(context.Background(), 1, created.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := svc.GetTransaction(context.Background(), 1, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after delete", err)
	}
}
