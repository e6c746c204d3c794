// Package spacedrep schedules question reviews with exponentially growing
// intervals.
package spacedrep

import (
	"time"

	"github.com/prawko/prawko/internal/content"
)

// Entry is the learning state of one question. A zero Entry means the
// question has never been answered.
type Entry struct {
	LastAnswer    content.Answer `json:"lastAnswer,omitempty"`
	CorrectStreak int            `json:"correctStreak"`
	DueAt         *time.Time     `json:"dueAt,omitempty"`
}

// Seen reports whether an answer was ever recorded.
func (e Entry) Seen() bool { return e.LastAnswer != "" }

// IsDue returns true if the entry has a review date at or before now.
func (e Entry) IsDue(now time.Time) bool {
	return e.DueAt != nil && IsDue(*e.DueAt, now)
}

// IsDue returns true if dueAt is at or before now.
func IsDue(dueAt, now time.Time) bool {
	return !now.Before(dueAt)
}

// Next returns the entry after answering with a. A wrong answer resets
// the streak and makes the question due immediately; a correct one pushes
// the review out by IntervalDays of the new streak.
func Next(e Entry, a content.Answer, correct bool, now time.Time) Entry {
	e.LastAnswer = a
	if !correct {
		e.CorrectStreak = 0
		due := now
		e.DueAt = &due
		return e
	}
	e.CorrectStreak++
	due := now.AddDate(0, 0, IntervalDays(e.CorrectStreak))
	e.DueAt = &due
	return e
}

// DaysUntilReview returns the number of days until the next review.
// Returns 0 if already due or never scheduled.
func (e Entry) DaysUntilReview(now time.Time) int {
	if e.DueAt == nil || e.IsDue(now) {
		return 0
	}
	return int(e.DueAt.Sub(now).Hours()/24.0) + 1
}
