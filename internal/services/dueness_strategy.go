// This file implements the Strategy Pattern for scheduled report dueness.
// Each frequency (daily, weekly, monthly) has its own strategy that decides
// whether a new statistics report is due.

package services

import (
	"fmt"
	"time"
)

// DuenessChecker is the strategy interface for checking if a scheduled report is due.
type DuenessChecker interface {
	// IsDue returns true if a report should be generated now, given when the
	// last scheduled report was generated and the configured report day.
	IsDue(lastRun, now time.Time, day int) bool
}

// DailyChecker implements DuenessChecker for daily reports.
type DailyChecker struct{}

// IsDue returns true if the last report was generated before today.
func (DailyChecker) IsDue(lastRun, now time.Time, _ int) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.Format(time.DateOnly) != now.Format(time.DateOnly)
}

// WeeklyChecker implements DuenessChecker for weekly reports. day is the
// weekday, 0 for Sunday.
type WeeklyChecker struct{}

// IsDue returns true if the most recent occurrence of the report weekday is
// after the last report. A missed weekday is caught up on the next check.
func (WeeklyChecker) IsDue(lastRun, now time.Time, day int) bool {
	if lastRun.IsZero() {
		return true
	}
	back := (int(now.Weekday()) - day + 7) % 7
	occurrence := startOfDay(now).AddDate(0, 0, -back)
	return startOfDay(lastRun).Before(occurrence)
}

// MonthlyChecker implements DuenessChecker for monthly reports. day is the
// day of the month.
type MonthlyChecker struct{}

// IsDue returns true if we're in a new month and have reached the target day.
func (MonthlyChecker) IsDue(lastRun, now time.Time, day int) bool {
	if lastRun.IsZero() {
		return true
	}

	// Already generated this month?
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}

	target := day
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if target > lastDayOfMonth {
		target = lastDayOfMonth
	}
	return now.Day() >= target
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// duenessStrategies maps report frequencies to their checkers.
var duenessStrategies = map[string]DuenessChecker{
	"daily":   DailyChecker{},
	"weekly":  WeeklyChecker{},
	"monthly": MonthlyChecker{},
}

// GetDuenessChecker returns the checker for a report frequency.
func GetDuenessChecker(frequency string) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown report frequency: %s", frequency)
	}
	return checker, nil
}
