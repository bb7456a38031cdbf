// Package services provides business logic and orchestration for the family
// budget backend: recurring rule lifecycle, due-rule processing and ledger
// writes. Access control happens upstream; services trust the family id they
// are handed.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"fambudget/internal/core"
	"fambudget/internal/schedule"
)

// RuleStore persists recurring rules.
type RuleStore interface {
	CreateRecurringRule(ctx context.Context, rule core.RecurringRule) (int64, error)
	GetRecurringRule(ctx context.Context, familyID, id int64) (core.RecurringRule, error)
	ListRecurringRules(ctx context.Context, familyID int64) ([]core.RecurringRule, error)
	UpdateRecurringRule(ctx context.Context, rule core.RecurringRule) error
	SetRuleActive(ctx context.Context, familyID, id int64, active bool) error
	DeleteRecurringRule(ctx context.Context, familyID, id int64) error
}

// RuleService owns the recurring rule lifecycle: validation, the category
// kind check, and next-occurrence seeding on create and update.
type RuleService struct {
	store   RuleStore
	catalog CategoryReader
}

func NewRuleService(store RuleStore, catalog CategoryReader) *RuleService {
	return &RuleService{store: store, catalog: catalog}
}

// CreateRule validates a new rule, seeds next_occurrence with the first
// occurrence after the start date, and persists it. Rules are created active.
func (s *RuleService) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.checkCategory(ctx, rule); err != nil {
		return core.RecurringRule{}, err
	}

	next, err := schedule.NextForRule(rule.StartDate, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("seed next occurrence: %w", err)
	}
	rule.NextOccurrence = next
	rule.Active = true

	id, err := s.store.CreateRecurringRule(ctx, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", err)
	}
	rule.ID = id

	slog.InfoContext(ctx, "Recurring rule created",
		"id", id,
		"family_id", rule.FamilyID,
		"frequency", rule.Frequency,
		"next_occurrence", rule.NextOccurrence.String())

	return rule, nil
}

// UpdateRule replaces a rule's mutable fields and recalculates next_occurrence
// from the rule's current start date with the updated frequency and anchors.
// When the start date lies in the past this can move next_occurrence backwards
// relative to its pre-update value, making already-covered occurrences due
// again on the next processing call.
func (s *RuleService) UpdateRule(ctx context.Context, familyID, id int64, rule core.RecurringRule) (core.RecurringRule, error) {
	existing, err := s.store.GetRecurringRule(ctx, familyID, id)
	if err != nil {
		return core.RecurringRule{}, err
	}

	rule.ID = existing.ID
	rule.FamilyID = existing.FamilyID
	// The active flag changes only through SetActive; an edit must not
	// silently deactivate (or reactivate) the rule.
	rule.Active = existing.Active
	if rule.UserID == 0 {
		rule.UserID = existing.UserID
	}
	if rule.StartDate.IsEmpty() {
		rule.StartDate = existing.StartDate
	}

	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.checkCategory(ctx, rule); err != nil {
		return core.RecurringRule{}, err
	}

	next, err := schedule.NextForRule(rule.StartDate, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("recalculate next occurrence: %w", err)
	}
	rule.NextOccurrence = next

	if err := s.store.UpdateRecurringRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("update rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule updated",
		"id", rule.ID,
		"family_id", rule.FamilyID,
		"next_occurrence", rule.NextOccurrence.String())

	return rule, nil
}

// GetRule fetches a single rule.
func (s *RuleService) GetRule(ctx context.Context, familyID, id int64) (core.RecurringRule, error) {
	return s.store.GetRecurringRule(ctx, familyID, id)
}

// ListRules returns every rule owned by a family, active or not.
func (s *RuleService) ListRules(ctx context.Context, familyID int64) ([]core.RecurringRule, error) {
	return s.store.ListRecurringRules(ctx, familyID)
}

// SetActive toggles a rule. Deactivated rules stay in storage and are simply
// excluded from due-rule queries.
func (s *RuleService) SetActive(ctx context.Context, familyID, id int64, active bool) error {
	return s.store.SetRuleActive(ctx, familyID, id, active)
}

// DeleteRule removes a rule permanently.
func (s *RuleService) DeleteRule(ctx context.Context, familyID, id int64) error {
	return s.store.DeleteRecurringRule(ctx, familyID, id)
}

// InvalidateCategory drops a cached category entry after catalog mutations so
// subsequent kind checks see fresh data. No-op when the reader does not cache.
func (s *RuleService) InvalidateCategory(familyID, id int64) {
	if c, ok := s.catalog.(interface{ Invalidate(familyID, id int64) }); ok {
		c.Invalidate(familyID, id)
	}
}

// checkCategory enforces that the rule's kind matches the referenced
// category's kind.
func (s *RuleService) checkCategory(ctx context.Context, rule core.RecurringRule) error {
	cat, err := s.catalog.GetCategory(ctx, rule.FamilyID, rule.CategoryID)
	if err != nil {
		return fmt.Errorf("lookup category %d: %w", rule.CategoryID, err)
	}
	if cat.Kind != rule.Kind {
		return fmt.Errorf("%w: rule is %s, category %q is %s",
			core.ErrCategoryMismatch, rule.Kind, cat.Name, cat.Kind)
	}
	return nil
}
