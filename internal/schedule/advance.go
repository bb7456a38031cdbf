// Package schedule computes the next occurrence date for recurring rules.
//
// Each frequency type (daily, weekly, monthly, yearly) has its own advancer
// that encapsulates the rollover arithmetic for that frequency. Advancing is a
// pure function of the anchor date and the rule's day anchors: no wall clock,
// no timezone.
package schedule

import (
	"fmt"

	"fambudget/internal/core"
)

// Advancer is the strategy interface for computing the next occurrence of a
// recurring rule given its current anchor date.
type Advancer interface {
	// Next returns the next calendar date the rule should fire after anchor.
	// dayOfMonth (1-31, 0 = unset) applies only to monthly rules; dayOfWeek
	// (0=Sunday..6=Saturday, negative = unset) is stored for weekly rules but
	// never alters the rollover.
	Next(anchor core.Date, dayOfMonth, dayOfWeek int) core.Date
}

// DailyAdvancer fires every calendar day.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(anchor core.Date, _, _ int) core.Date {
	return anchor.AddDays(1)
}

// WeeklyAdvancer fires every seven days. The day-of-week anchor is purely
// informational: the rollover is additive, so a rule started on a Tuesday
// keeps firing on Tuesdays regardless of the stored anchor.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(anchor core.Date, _, _ int) core.Date {
	return anchor.AddDays(7)
}

// MonthlyAdvancer fires once per month. The target day is the day-of-month
// anchor when supplied, otherwise the anchor date's own day; either way it is
// clamped to the last day of the target month, never rolling into the month
// after (Jan 31 -> Feb 28/29 -> Mar 31 with anchor 31).
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(anchor core.Date, dayOfMonth, _ int) core.Date {
	year, month := anchor.Year(), anchor.Month()+1
	if month > 12 {
		month = 1
		year++
	}
	day := anchor.Day()
	if dayOfMonth >= 1 {
		day = dayOfMonth
	}
	if last := core.LastDayOfMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

// YearlyAdvancer fires once per year on the same month and day. Feb 29
// anchors clamp to Feb 28 in non-leap years.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(anchor core.Date, _, _ int) core.Date {
	year := anchor.Year() + 1
	day := anchor.Day()
	if last := core.LastDayOfMonth(year, anchor.Month()); day > last {
		day = last
	}
	return core.NewDate(year, anchor.Month(), day)
}

// advancers maps frequencies to their corresponding advancer.
var advancers = map[core.Frequency]Advancer{
	core.Daily:   DailyAdvancer{},
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetAdvancer returns the advancer for a frequency, or an error for
// frequencies outside the closed set.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	adv, ok := advancers[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return adv, nil
}

// NextOccurrence computes the next date a rule fires after anchor. Callers are
// expected to have validated the frequency; an unknown frequency is reported
// as an error rather than a panic so a malformed stored rule cannot take down
// a processing batch.
func NextOccurrence(anchor core.Date, frequency core.Frequency, dayOfMonth, dayOfWeek int) (core.Date, error) {
	adv, err := GetAdvancer(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return adv.Next(anchor, dayOfMonth, dayOfWeek), nil
}

// NextForRule advances a rule's schedule by one period from the given anchor.
func NextForRule(anchor core.Date, rule core.RecurringRule) (core.Date, error) {
	return NextOccurrence(anchor, rule.Frequency, rule.DayOfMonth, rule.DayOfWeek)
}
