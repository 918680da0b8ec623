package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the recurrence unit of a scheduled transfer series.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a supported frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

const timeOfDayLayout = "15:04"

// ScheduledTransfer is a recurring transfer definition.
//
// NextExecution is nil once the series has ended, otherwise strictly after
// LastExecution. Active=false is permanent.
type ScheduledTransfer struct {
	ID                  uuid.UUID       `json:"id"`
	SenderID            uuid.UUID       `json:"sender_id"`
	ReceiverID          uuid.UUID       `json:"receiver_id"`
	Amount              decimal.Decimal `json:"amount"`
	Frequency           Frequency       `json:"frequency"`
	StartDate           time.Time       `json:"start_date"` // midnight UTC
	EndDate             *time.Time      `json:"end_date,omitempty"`
	ExecutionTime       string          `json:"execution_time"` // HH:MM
	NextExecution       *time.Time      `json:"next_execution,omitempty"`
	LastExecution       *time.Time      `json:"last_execution,omitempty"`
	Active              bool            `json:"active"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ParseTimeOfDay parses an HH:MM string into hours and minutes.
func ParseTimeOfDay(s string) (int, int, error) {
	t, err := time.Parse(timeOfDayLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FirstExecution combines a start date and an HH:MM time of day.
func FirstExecution(startDate time.Time, timeOfDay string) (time.Time, error) {
	h, m, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	d := DateOnly(startDate)
	return d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// ShouldExecute reports whether the series is due at now.
func (s *ScheduledTransfer) ShouldExecute(now time.Time) bool {
	return s.Active && s.NextExecution != nil && !now.Before(*s.NextExecution)
}

// IsExpired reports whether the end date lies before today's date.
func (s *ScheduledTransfer) IsExpired(now time.Time) bool {
	return s.EndDate != nil && DateOnly(*s.EndDate).Before(DateOnly(now))
}

// IsDuplicateOf reports whether two definitions describe the same series.
func (s *ScheduledTransfer) IsDuplicateOf(o *ScheduledTransfer) bool {
	return s.SenderID == o.SenderID &&
		s.ReceiverID == o.ReceiverID &&
		s.Amount.Equal(o.Amount) &&
		DateOnly(s.StartDate).Equal(DateOnly(o.StartDate)) &&
		s.ExecutionTime == o.ExecutionTime
}

// nextOccurrence adds one frequency unit to prev. Monthly series stay on the
// start date's day of month, clamped to the last day of shorter months.
func (s *ScheduledTransfer) nextOccurrence(prev time.Time) time.Time {
	switch s.Frequency {
	case FrequencyDaily:
		return prev.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return prev.AddDate(0, 0, 7)
	default:
		anchor := s.StartDate.Day()
		y, m, _ := prev.Date()
		firstOfNext := time.Date(y, m+1, 1, prev.Hour(), prev.Minute(), 0, 0, time.UTC)
		day := anchor
		if last := daysIn(firstOfNext.Year(), firstOfNext.Month()); day > last {
			day = last
		}
		return firstOfNext.AddDate(0, 0, day-1)
	}
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MarkExecuted records a successful run of the due occurrence and advances
// NextExecution by one frequency unit. A series that fell behind stays due
// and pays one owed occurrence per run. When the next occurrence falls after
// EndDate the series ends.
func (s *ScheduledTransfer) MarkExecuted(now time.Time) {
	s.ConsecutiveFailures = 0
	s.UpdatedAt = now

	if s.NextExecution == nil {
		s.Active = false
		return
	}

	executed := *s.NextExecution
	s.LastExecution = &executed

	next := s.nextOccurrence(executed)
	if s.EndDate != nil && DateOnly(next).After(DateOnly(*s.EndDate)) {
		s.NextExecution = nil
		s.Active = false
		return
	}
	s.NextExecution = &next
}

// MarkUnderfunded records a skipped run. NextExecution is left untouched so
// the series retries at the same due time. With maxFailures > 0 the series is
// deactivated once that many consecutive runs were skipped; it returns true
// in that case.
func (s *ScheduledTransfer) MarkUnderfunded(now time.Time, maxFailures int) bool {
	s.ConsecutiveFailures++
	s.UpdatedAt = now
	if maxFailures > 0 && s.ConsecutiveFailures >= maxFailures {
		s.Active = false
		s.NextExecution = nil
		return true
	}
	return false
}

// Deactivate ends the series permanently.
func (s *ScheduledTransfer) Deactivate(now time.Time) {
	s.Active = false
	s.NextExecution = nil
	s.UpdatedAt = now
}
