package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fambudget/internal/core"
	"fambudget/internal/schedule"
)

// DueRuleStore is the store surface the processor needs: selecting due rules
// and materializing one occurrence. MaterializeRule must write the ledger
// transaction and the advanced next occurrence atomically, so a mid-rule
// failure leaves the rule due with no orphaned ledger row.
type DueRuleStore interface {
	ListDueRules(ctx context.Context, familyID int64, asOf core.Date) ([]core.RecurringRule, error)
	FamiliesWithDueRules(ctx context.Context, asOf core.Date) ([]int64, error)
	MaterializeRule(ctx context.Context, t core.Transaction, ruleID int64, next core.Date) (int64, error)
}

// RuleFailure reports one rule that could not be materialized in a batch.
type RuleFailure struct {
	RuleID int64  `json:"rule_id"`
	Error  string `json:"error"`
}

// ProcessResult summarizes one processing invocation.
type ProcessResult struct {
	CreatedCount          int           `json:"created_count"`
	CreatedTransactionIDs []int64       `json:"created_transaction_ids"`
	Failed                []RuleFailure `json:"failed,omitempty"`
}

// RecurringProcessor materializes due recurring rules into ledger
// transactions. Invocations for the same family are serialized by an
// in-process per-family lock: the processor assumes it is the only writer of
// next_occurrence, and two overlapping calls for one family would otherwise
// double-materialize rules read before either call advanced them.
type RecurringProcessor struct {
	rules    DueRuleStore
	notifier Notifier

	mu          sync.Mutex
	familyLocks map[int64]*sync.Mutex
}

// NewRecurringProcessor creates a processor. notifier may be nil when
// notifications are disabled entirely.
func NewRecurringProcessor(rules DueRuleStore, notifier Notifier) *RecurringProcessor {
	return &RecurringProcessor{
		rules:       rules,
		notifier:    notifier,
		familyLocks: make(map[int64]*sync.Mutex),
	}
}

// ProcessDueRules materializes every active due rule of one family as of the
// given date. Each rule advances exactly one period per invocation: a rule
// overdue by several periods stays due and catches up across repeated calls.
// Per-rule failures are collected in the result and never abort the batch.
//
// asOf is explicit so tests and backfills are deterministic; callers that
// want wall-clock behavior pass today's date.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, familyID int64, asOf core.Date) (ProcessResult, error) {
	lock := p.familyLock(familyID)
	lock.Lock()
	defer lock.Unlock()

	due, err := p.rules.ListDueRules(ctx, familyID, asOf)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("list due rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing due recurring rules",
		"family_id", familyID,
		"due", len(due),
		"as_of", asOf.String())

	var result ProcessResult
	for _, rule := range due {
		id, err := p.materialize(ctx, rule)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize rule",
				"rule_id", rule.ID,
				"family_id", familyID,
				"error", err)
			result.Failed = append(result.Failed, RuleFailure{RuleID: rule.ID, Error: err.Error()})
			continue
		}
		result.CreatedCount++
		result.CreatedTransactionIDs = append(result.CreatedTransactionIDs, id)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"family_id", familyID,
		"created", result.CreatedCount,
		"failed", len(result.Failed))

	return result, nil
}

// materialize turns one due rule into a ledger transaction and advances the
// rule's schedule by one period. The next occurrence is computed before any
// write so a malformed rule fails without side effects; the store performs
// both writes in one transaction, so a failed rule simply stays due.
func (p *RecurringProcessor) materialize(ctx context.Context, rule core.RecurringRule) (int64, error) {
	next, err := schedule.NextForRule(rule.NextOccurrence, rule)
	if err != nil {
		return 0, fmt.Errorf("advance schedule: %w", err)
	}

	tx := core.Transaction{
		FamilyID:    rule.FamilyID,
		UserID:      rule.UserID,
		CategoryID:  rule.CategoryID,
		Kind:        rule.Kind,
		Amount:      rule.Amount,
		Description: rule.Description,
		Date:        rule.NextOccurrence,
	}

	id, err := p.rules.MaterializeRule(ctx, tx, rule.ID, next)
	if err != nil {
		return 0, fmt.Errorf("materialize rule: %w", err)
	}
	tx.ID = id

	if p.notifier != nil {
		if err := p.notifier.NotifyMaterialized(ctx, tx, rule.ID); err != nil {
			slog.WarnContext(ctx, "Failed to publish materialization notification",
				"rule_id", rule.ID,
				"transaction_id", id,
				"error", err)
		}
	}

	return id, nil
}

// ProcessAllFamilies runs ProcessDueRules for every family with at least one
// due rule. Used by the worker tick; a failing family does not block others.
func (p *RecurringProcessor) ProcessAllFamilies(ctx context.Context, asOf core.Date) (int, error) {
	families, err := p.rules.FamiliesWithDueRules(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("families with due rules: %w", err)
	}

	created := 0
	for _, familyID := range families {
		result, err := p.ProcessDueRules(ctx, familyID, asOf)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process family",
				"family_id", familyID,
				"error", err)
			continue
		}
		created += result.CreatedCount
	}
	return created, nil
}

func (p *RecurringProcessor) familyLock(familyID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.familyLocks[familyID]
	if !ok {
		lock = &sync.Mutex{}
		p.familyLocks[familyID] = lock
	}
	return lock
}
