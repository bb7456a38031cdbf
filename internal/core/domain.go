package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	ExpenseKind Kind = "expense"
	IncomeKind  Kind = "income"
)

type (
	// Frequency is how often a recurring rule fires.
	Frequency string

	// Kind distinguishes money leaving the family from money entering it.
	Kind string

	Money struct {
		Cents int64 `json:"cents"`
	}

	// Transaction is an immutable ledger entry. Materialized transactions carry
	// the originating rule's next_occurrence as their Date.
	Transaction struct {
		ID          int64  `json:"id"`
		FamilyID    int64  `json:"family_id"`
		UserID      int64  `json:"user_id"`
		CategoryID  int64  `json:"category_id"`
		Kind        Kind   `json:"kind"`
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
	}

	// RecurringRule is a template for generating future ledger transactions.
	// Exactly one of DayOfMonth/DayOfWeek is meaningful, selected by Frequency;
	// the other is ignored. Zero DayOfMonth and negative DayOfWeek mean unset.
	RecurringRule struct {
		ID             int64     `json:"id"`
		FamilyID       int64     `json:"family_id"`
		UserID         int64     `json:"user_id"`
		CategoryID     int64     `json:"category_id"`
		Kind           Kind      `json:"kind"`
		Amount         Money     `json:"amount"`
		Description    string    `json:"description"`
		Frequency      Frequency `json:"frequency"`
		StartDate      Date      `json:"start_date"`
		EndDate        Date      `json:"end_date"`
		NextOccurrence Date      `json:"next_occurrence"`
		DayOfMonth     int       `json:"day_of_month"`
		DayOfWeek      int       `json:"day_of_week"`
		Active         bool      `json:"is_active"`
	}

	Category struct {
		ID       int64  `json:"id"`
		FamilyID int64  `json:"family_id"`
		Name     string `json:"name"`
		Kind     Kind   `json:"kind"`
	}

	Family struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	User struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	Budget struct {
		ID         int64 `json:"id"`
		FamilyID   int64 `json:"family_id"`
		CategoryID int64 `json:"category_id"`
		Year       int   `json:"year"`
		Month      int   `json:"month"`
		Limit      Money `json:"limit"`
	}

	Goal struct {
		ID       int64  `json:"id"`
		FamilyID int64  `json:"family_id"`
		Name     string `json:"name"`
		Target   Money  `json:"target"`
		Saved    Money  `json:"saved"`
		Deadline Date   `json:"deadline"`
	}

	Notification struct {
		ID        int64     `json:"id"`
		FamilyID  int64     `json:"family_id"`
		UserID    int64     `json:"user_id"`
		Message   string    `json:"message"`
		Read      bool      `json:"is_read"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDayAnchor = errors.New("invalid day anchor")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrMissingField     = errors.New("missing required field")
	ErrEmptyName        = errors.New("empty name")

	// ErrCategoryMismatch is returned when a rule's or transaction's kind does
	// not match the kind of the referenced category.
	ErrCategoryMismatch = errors.New("category kind mismatch")

	// ErrNotFound is returned for operations on unknown identifiers.
	ErrNotFound = errors.New("not found")

	// ErrNotFamilyMember is returned when the acting user does not belong to
	// the family that owns the resource.
	ErrNotFamilyMember = errors.New("not a family member")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k Kind) Validate() error {
	switch k {
	case ExpenseKind, IncomeKind:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}

func (t Transaction) Validate() error {
	if t.FamilyID == 0 {
		return fmt.Errorf("%w: family_id", ErrMissingField)
	}
	if t.UserID == 0 {
		return fmt.Errorf("%w: user_id", ErrMissingField)
	}
	if t.CategoryID == 0 {
		return fmt.Errorf("%w: category_id", ErrMissingField)
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Date.Validate(); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if r.FamilyID == 0 {
		return fmt.Errorf("%w: family_id", ErrMissingField)
	}
	if r.UserID == 0 {
		return fmt.Errorf("%w: user_id", ErrMissingField)
	}
	if r.CategoryID == 0 {
		return fmt.Errorf("%w: category_id", ErrMissingField)
	}
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !r.EndDate.IsEmpty() && r.EndDate.Before(r.StartDate) {
		return errors.New("end date must not be before start date")
	}
	if r.Frequency == Monthly && r.DayOfMonth != 0 {
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("%w: day_of_month %d", ErrInvalidDayAnchor, r.DayOfMonth)
		}
	}
	if r.Frequency == Weekly && r.DayOfWeek >= 0 {
		if r.DayOfWeek > 6 {
			return fmt.Errorf("%w: day_of_week %d", ErrInvalidDayAnchor, r.DayOfWeek)
		}
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return errors.New("invalid email address")
	}
	return nil
}

func (c Category) Validate() error {
	if c.FamilyID == 0 {
		return fmt.Errorf("%w: family_id", ErrMissingField)
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return c.Kind.Validate()
}

func (b Budget) Validate() error {
	if b.FamilyID == 0 {
		return fmt.Errorf("%w: family_id", ErrMissingField)
	}
	if b.CategoryID == 0 {
		return fmt.Errorf("%w: category_id", ErrMissingField)
	}
	if b.Month < 1 || b.Month > 12 {
		return errors.New("month must be between 1 and 12")
	}
	if b.Year < 1970 {
		return errors.New("invalid year")
	}
	return b.Limit.Validate()
}

func (g Goal) Validate() error {
	if g.FamilyID == 0 {
		return fmt.Errorf("%w: family_id", ErrMissingField)
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.Saved.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
