package checkin

import (
	"time"

	"nyraAPI/internal/achievement"
)

const DailyQuestion = "What's one thing you're grateful for today?"

type Request struct {
	Answer string `json:"answer"`
}

type Status struct {
	Question       string     `json:"question"`
	CheckedInToday bool       `json:"checkedInToday"`
	CheckInCount   int        `json:"checkInCount"`
	Streak         int        `json:"streak"`
	LastCheckInAt  *time.Time `json:"lastCheckInAt,omitempty"`
}

type Result struct {
	Status
	Unlocked []achievement.Achievement `json:"unlocked"`
}

// Day truncates to the UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextStreak extends the streak when the previous check-in was on the
// preceding UTC day, and restarts it otherwise.
func NextStreak(last *time.Time, streak int, now time.Time) int {
	if last == nil {
		return 1
	}
	if Day(*last).Equal(Day(now).AddDate(0, 0, -1)) {
		return streak + 1
	}
	if Day(*last).Equal(Day(now)) {
		return streak
	}
	return 1
}
