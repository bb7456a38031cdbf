package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fambudget/internal/core"
)

// fakeDueStore filters due rules the same way storage does: active, next
// occurrence at or before asOf, and end date unset or not before the next
// occurrence. MaterializeRule is all-or-nothing like the SQLite version: a
// configured failure leaves neither the transaction nor the advance behind.
type fakeDueStore struct {
	mu           sync.Mutex
	rules        map[int64]core.RecurringRule
	transactions []core.Transaction
	nextID       int64

	failMaterialize map[int64]error
}

func newFakeDueStore(rules ...core.RecurringRule) *fakeDueStore {
	s := &fakeDueStore{
		rules:           make(map[int64]core.RecurringRule),
		failMaterialize: make(map[int64]error),
	}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *fakeDueStore) ListDueRules(_ context.Context, familyID int64, asOf core.Date) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []core.RecurringRule
	for _, r := range s.rules {
		if r.FamilyID != familyID || !r.Active {
			continue
		}
		if r.NextOccurrence.After(asOf) {
			continue
		}
		if !r.EndDate.IsEmpty() && r.EndDate.Before(r.NextOccurrence) {
			continue
		}
		due = append(due, r)
	}
	return due, nil
}

func (s *fakeDueStore) FamiliesWithDueRules(ctx context.Context, asOf core.Date) ([]int64, error) {
	s.mu.Lock()
	families := make(map[int64]bool)
	for _, r := range s.rules {
		families[r.FamilyID] = true
	}
	s.mu.Unlock()

	var out []int64
	for id := range families {
		due, err := s.ListDueRules(ctx, id, asOf)
		if err != nil {
			return nil, err
		}
		if len(due) > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeDueStore) MaterializeRule(_ context.Context, t core.Transaction, ruleID int64, next core.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failMaterialize[ruleID]; err != nil {
		return 0, err
	}
	r, ok := s.rules[ruleID]
	if !ok {
		return 0, core.ErrNotFound
	}
	s.nextID++
	t.ID = s.nextID
	s.transactions = append(s.transactions, t)
	r.NextOccurrence = next
	s.rules[ruleID] = r
	return t.ID, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (n *recordingNotifier) NotifyMaterialized(_ context.Context, _ core.Transaction, ruleID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, ruleID)
	return nil
}

func dueRule(id int64, next core.Date) core.RecurringRule {
	return core.RecurringRule{
		ID:             id,
		FamilyID:       1,
		UserID:         2,
		CategoryID:     10,
		Kind:           core.ExpenseKind,
		Amount:         core.Money{Cents: 5000},
		Description:    "subscription",
		Frequency:      core.Monthly,
		StartDate:      core.NewDate(2024, 1, 1),
		NextOccurrence: next,
		DayOfWeek:      -1,
		Active:         true,
	}
}

func TestProcessDueRules_MaterializesDueRule(t *testing.T) {
	store := newFakeDueStore(dueRule(1, core.NewDate(2024, 2, 1)))
	notifier := &recordingNotifier{}
	p := NewRecurringProcessor(store, notifier)

	result, err := p.ProcessDueRules(context.Background(), 1, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessDueRules() error = %v", err)
	}
	if result.CreatedCount != 1 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v, want exactly one creation", result)
	}

	tx := store.transactions[0]
	// Transaction is dated with the occurrence it covers, not the run date
	if want := core.NewDate(2024, 2, 1); !tx.Date.Equal(want) {
		t.Errorf("transaction date = %s, want %s", tx.Date, want)
	}
	if tx.Amount.Cents != 5000 || tx.Kind != core.ExpenseKind || tx.CategoryID != 10 {
		t.Errorf("transaction fields not copied from rule: %+v", tx)
	}

	// Schedule advanced exactly one period
	if want := core.NewDate(2024, 3, 1); !store.rules[1].NextOccurrence.Equal(want) {
		t.Errorf("next occurrence = %s, want %s", store.rules[1].NextOccurrence, want)
	}

	if len(notifier.calls) != 1 || notifier.calls[0] != 1 {
		t.Errorf("notifier calls = %v, want [1]", notifier.calls)
	}
}

func TestProcessDueRules_OnePeriodPerCall(t *testing.T) {
	// A rule overdue by several months catches up one period per invocation.
	store := newFakeDueStore(dueRule(1, core.NewDate(2024, 1, 1)))
	p := NewRecurringProcessor(store, nil)

	asOf := core.NewDate(2024, 4, 15)
	wantDates := []core.Date{
		core.NewDate(2024, 1, 1),
		core.NewDate(2024, 2, 1),
		core.NewDate(2024, 3, 1),
		core.NewDate(2024, 4, 1),
	}

	for i, want := range wantDates {
		result, err := p.ProcessDueRules(context.Background(), 1, asOf)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if result.CreatedCount != 1 {
			t.Fatalf("call %d: created %d, want 1", i+1, result.CreatedCount)
		}
		if !store.transactions[i].Date.Equal(want) {
			t.Fatalf("call %d: date %s, want %s", i+1, store.transactions[i].Date, want)
		}
	}

	// Fully caught up: next occurrence (2024-05-01) is past asOf
	result, err := p.ProcessDueRules(context.Background(), 1, asOf)
	if err != nil {
		t.Fatalf("final call: %v", err)
	}
	if result.CreatedCount != 0 {
		t.Errorf("caught-up rule created %d transactions", result.CreatedCount)
	}
}

func TestProcessDueRules_SkipsInactiveAndFuture(t *testing.T) {
	inactive := dueRule(1, core.NewDate(2024, 2, 1))
	inactive.Active = false
	future := dueRule(2, core.NewDate(2024, 6, 1))

	store := newFakeDueStore(inactive, future)
	p := NewRecurringProcessor(store, nil)

	result, err := p.ProcessDueRules(context.Background(), 1, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessDueRules() error = %v", err)
	}
	if result.CreatedCount != 0 {
		t.Errorf("created %d, want 0", result.CreatedCount)
	}
	if len(store.transactions) != 0 {
		t.Error("no transactions expected")
	}
}

func TestProcessDueRules_EndDateStopsRule(t *testing.T) {
	ended := dueRule(1, core.NewDate(2024, 2, 1))
	ended.EndDate = core.NewDate(2024, 1, 31) // before the pending occurrence

	stillRunning := dueRule(2, core.NewDate(2024, 2, 1))
	stillRunning.EndDate = core.NewDate(2024, 2, 1) // inclusive boundary

	store := newFakeDueStore(ended, stillRunning)
	p := NewRecurringProcessor(store, nil)

	result, err := p.ProcessDueRules(context.Background(), 1, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessDueRules() error = %v", err)
	}
	if result.CreatedCount != 1 {
		t.Fatalf("created %d, want 1", result.CreatedCount)
	}
	if len(store.transactions) != 1 || store.transactions[0].FamilyID != 1 {
		t.Fatal("expected one transaction")
	}
	if got := store.transactions[0].Description; got != "subscription" {
		t.Errorf("unexpected transaction %q", got)
	}
	// The ended rule must remain untouched
	if !store.rules[1].NextOccurrence.Equal(core.NewDate(2024, 2, 1)) {
		t.Error("ended rule's schedule was advanced")
	}
}

func TestProcessDueRules_FailureIsolation(t *testing.T) {
	bad := dueRule(1, core.NewDate(2024, 2, 1))
	good := dueRule(2, core.NewDate(2024, 2, 1))

	store := newFakeDueStore(bad, good)
	store.failMaterialize[1] = errors.New("category constraint")
	p := NewRecurringProcessor(store, nil)

	result, err := p.ProcessDueRules(context.Background(), 1, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessDueRules() error = %v", err)
	}
	if result.CreatedCount != 1 {
		t.Errorf("created %d, want 1", result.CreatedCount)
	}
	if len(result.Failed) != 1 || result.Failed[0].RuleID != 1 {
		t.Fatalf("failed = %+v, want rule 1", result.Failed)
	}
	// The failing rule stays due for the next run
	if !store.rules[1].NextOccurrence.Equal(core.NewDate(2024, 2, 1)) {
		t.Error("failed rule's schedule was advanced")
	}
	// The good rule advanced normally
	if !store.rules[2].NextOccurrence.Equal(core.NewDate(2024, 3, 1)) {
		t.Error("good rule's schedule was not advanced")
	}
}

func TestProcessDueRules_FailedMaterializeLeavesNoWrites(t *testing.T) {
	store := newFakeDueStore(dueRule(1, core.NewDate(2024, 2, 1)))
	store.failMaterialize[1] = errors.New("disk full")
	p := NewRecurringProcessor(store, nil)

	result, err := p.ProcessDueRules(context.Background(), 1, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessDueRules() error = %v", err)
	}
	if result.CreatedCount != 0 || len(result.Failed) != 1 {
		t.Fatalf("result = %+v, want one failure", result)
	}
	// The atomic materialize rolled back: no ledger row, rule still due.
	if len(store.transactions) != 0 {
		t.Error("no transaction may survive a failed materialization")
	}
	if !store.rules[1].NextOccurrence.Equal(core.NewDate(2024, 2, 1)) {
		t.Error("failed rule's schedule was advanced")
	}
}

func TestProcessDueRules_BadFrequencyFailsWithoutWrites(t *testing.T) {
	broken := dueRule(1, core.NewDate(2024, 2, 1))
	broken.Frequency = "hourly"

	store := newFakeDueStore(broken)
	p := NewRecurringProcessor(store, nil)

	result, err := p.ProcessDueRules(context.Background(), 1, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessDueRules() error = %v", err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("result = %+v, want one failure", result)
	}
	if len(store.transactions) != 0 {
		t.Error("malformed rule must not create transactions")
	}
	if !store.rules[1].NextOccurrence.Equal(core.NewDate(2024, 2, 1)) {
		t.Error("malformed rule's schedule was advanced")
	}
}

func TestProcessAllFamilies(t *testing.T) {
	family1 := dueRule(1, core.NewDate(2024, 2, 1))
	family2 := dueRule(2, core.NewDate(2024, 2, 1))
	family2.FamilyID = 7

	store := newFakeDueStore(family1, family2)
	p := NewRecurringProcessor(store, nil)

	count, err := p.ProcessAllFamilies(context.Background(), core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("ProcessAllFamilies() error = %v", err)
	}
	if count != 2 {
		t.Errorf("created %d, want 2", count)
	}
}

func TestProcessDueRules_ConcurrentCallsSerialized(t *testing.T) {
	store := newFakeDueStore(dueRule(1, core.NewDate(2024, 2, 1)))
	p := NewRecurringProcessor(store, nil)

	asOf := core.NewDate(2024, 2, 15)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.ProcessDueRules(context.Background(), 1, asOf)
		}()
	}
	wg.Wait()

	// Serialized calls see the advanced schedule, so the single due period
	// materializes exactly once.
	if len(store.transactions) != 1 {
		t.Errorf("created %d transactions, want 1", len(store.transactions))
	}
}
