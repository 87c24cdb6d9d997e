package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/splitweek/internal/model"
)

// Pattern assigns parents by weekday across one month. Week and
// AlternateWeek are indexed Monday first: index 0 is Monday and index 6 is
// Sunday. A zero id leaves that weekday untouched. When AlternateWeek is
// set, Week covers the Monday-anchored week containing the 1st and the two
// arrays swap every seven days from there, regardless of ISO week number.
type Pattern struct {
	Month         string    `json:"month"`
	Week          [7]int64  `json:"week"`
	AlternateWeek *[7]int64 `json:"alternate_week"`
}

// Expand turns the pattern into one entry per assigned day, in date order.
func (p Pattern) Expand() ([]Entry, error) {
	if !monthPattern.MatchString(p.Month) {
		return nil, model.Validation("month must be in YYYY-MM format")
	}
	first, err := time.Parse("2006-01", p.Month)
	if err != nil {
		return nil, model.Validation("month must be in YYYY-MM format")
	}

	anchor := weekStart(first)
	days := daysInMonth(first.Year(), first.Month())

	var entries []Entry
	for d := 0; d < days; d++ {
		day := first.AddDate(0, 0, d)
		week := p.Week
		if p.AlternateWeek != nil && (int(day.Sub(anchor).Hours()/24)/7)%2 == 1 {
			week = *p.AlternateWeek
		}
		parentID := week[weekdayIndex(day)]
		if parentID == 0 {
			continue
		}
		entries = append(entries, Entry{Date: day.Format("2006-01-02"), AssignedParentID: parentID})
	}
	return entries, nil
}

// ApplyPattern expands p and writes it through BulkUpsert.
func (m *Manager) ApplyPattern(ctx context.Context, actorID, childID int64, p Pattern) ([]Result, error) {
	if err := m.requireAccess(childID, actorID); err != nil {
		return nil, err
	}
	entries, err := p.Expand()
	if err != nil {
		return nil, err
	}
	results, err := m.BulkUpsert(ctx, actorID, childID, entries)
	if err != nil {
		return results, fmt.Errorf("apply pattern: %w", err)
	}
	return results, nil
}

// weekdayIndex maps Monday to 0 and Sunday to 6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func weekStart(t time.Time) time.Time {
	monday := t.AddDate(0, 0, -weekdayIndex(t))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
