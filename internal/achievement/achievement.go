package achievement

import (
	"time"
)

type CriteriaType string

const (
	CriteriaMessages       CriteriaType = "messages"
	CriteriaCheckIns       CriteriaType = "check_ins"
	CriteriaFuelUsed       CriteriaType = "fuel_used"
	CriteriaAccountAgeDays CriteriaType = "account_age_days"
	CriteriaCheckedInToday CriteriaType = "checked_in_today"
)

// Criterion is a single threshold. An achievement with several criteria
// unlocks only when every one of them holds for the same snapshot.
type Criterion struct {
	Type  CriteriaType `json:"type"`
	Value int          `json:"value"`
}

type Achievement struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Criteria    []Criterion `json:"criteria"`
}

// UserProgress is the per-user snapshot the tracker evaluates.
// AsOf is the reference instant for the time based criteria. When it is zero
// no time based criterion can be met.
type UserProgress struct {
	MessageCount     int             `json:"message_count"`
	CheckInCount     int             `json:"check_in_count"`
	FuelUsed         int             `json:"fuel_used"`
	AccountCreatedAt time.Time       `json:"account_created_at"`
	LastCheckInAt    *time.Time      `json:"last_check_in_at,omitempty"`
	Achievements     map[string]bool `json:"achievements"`
	AsOf             time.Time       `json:"-"`
}

// Result of one evaluation. Unlocked keeps catalog order.
type Result struct {
	Achievements map[string]bool `json:"achievements"`
	Unlocked     []string        `json:"unlocked"`
}

type AchievementWithStatus struct {
	Achievement
	Unlocked bool `json:"unlocked"`
}

type Summary struct {
	Achievements  []AchievementWithStatus `json:"achievements"`
	UnlockedCount int                     `json:"unlocked_count"`
	TotalCount    int                     `json:"total_count"`
	MessageCount  int                     `json:"message_count"`
	CheckInCount  int                     `json:"check_in_count"`
	FuelUsed      int                     `json:"fuel_used"`
}

// NewSummary projects the catalog over an achievements mapping.
func NewSummary(p UserProgress) *Summary {
	s := &Summary{
		Achievements: make([]AchievementWithStatus, 0, len(catalog)),
		TotalCount:   len(catalog),
		MessageCount: p.MessageCount,
		CheckInCount: p.CheckInCount,
		FuelUsed:     p.FuelUsed,
	}
	for _, a := range catalog {
		unlocked := p.Achievements[a.ID]
		if unlocked {
			s.UnlockedCount++
		}
		s.Achievements = append(s.Achievements, AchievementWithStatus{Achievement: a, Unlocked: unlocked})
	}
	return s
}
