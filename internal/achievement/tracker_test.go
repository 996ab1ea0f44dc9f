package achievement

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fresh() UserProgress {
	return UserProgress{AccountCreatedAt: now, AsOf: now, Achievements: map[string]bool{}}
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	p := fresh()
	p.MessageCount = 9

	res, err := Evaluate(p)
	require.NoError(t, err)
	assert.NotContains(t, res.Unlocked, "2")
	assert.Equal(t, []string{"1"}, res.Unlocked)

	p.MessageCount = 10
	res, err = Evaluate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Unlocked, "2")
}

func TestEvaluate_Idempotent(t *testing.T) {
	p := fresh()
	p.MessageCount = 420
	p.CheckInCount = 12
	p.FuelUsed = 60
	p.AccountCreatedAt = now.Add(-100 * 24 * time.Hour)

	first, err := Evaluate(p)
	require.NoError(t, err)
	require.NotEmpty(t, first.Unlocked)

	p.Achievements = first.Achievements
	second, err := Evaluate(p)
	require.NoError(t, err)
	assert.Empty(t, second.Unlocked)
	assert.Equal(t, first.Achievements, second.Achievements)
}

func TestEvaluate_NeverRevokes(t *testing.T) {
	p := fresh()
	p.Achievements = map[string]bool{"8": true, "50": true, "custom": true}

	res, err := Evaluate(p)
	require.NoError(t, err)
	for id := range p.Achievements {
		assert.True(t, res.Achievements[id], id)
	}
	assert.NotContains(t, res.Unlocked, "8")
}

func TestEvaluate_FalseEntryCanUnlock(t *testing.T) {
	p := fresh()
	p.MessageCount = 1
	p.Achievements = map[string]bool{"1": false}

	res, err := Evaluate(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.Unlocked)
	assert.True(t, res.Achievements["1"])
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	p := fresh()
	p.MessageCount = 30
	before := map[string]bool{"9": true}
	p.Achievements = before

	_, err := Evaluate(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"9": true}, before)
}

func TestEvaluate_CompoundRequiresBothLegs(t *testing.T) {
	p := fresh()
	p.MessageCount = 150
	p.CheckInCount = 9

	res, err := Evaluate(p)
	require.NoError(t, err)
	assert.NotContains(t, res.Unlocked, "23")

	p.CheckInCount = 10
	res, err = Evaluate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Unlocked, "23")
}

func TestEvaluate_UnlockedInCatalogOrder(t *testing.T) {
	p := fresh()
	p.MessageCount = 5000
	p.CheckInCount = 50
	p.FuelUsed = 500
	p.AccountCreatedAt = now.Add(-700 * 24 * time.Hour)
	p.LastCheckInAt = &now

	res, err := Evaluate(p)
	require.NoError(t, err)
	require.Len(t, res.Unlocked, len(catalog))

	prev := 0
	for _, id := range res.Unlocked {
		n, err := strconv.Atoi(id)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestEvaluate_CheckedInTodayUsesUTCDate(t *testing.T) {
	p := fresh()
	yesterday := now.Add(-24 * time.Hour)
	p.LastCheckInAt = &yesterday

	res, err := Evaluate(p)
	require.NoError(t, err)
	assert.NotContains(t, res.Unlocked, "9")

	earlier := time.Date(2025, 6, 15, 0, 5, 0, 0, time.UTC)
	p.LastCheckInAt = &earlier
	res, err = Evaluate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Unlocked, "9")
}

func TestEvaluate_AccountAgeWholeDays(t *testing.T) {
	p := fresh()
	p.AccountCreatedAt = now.Add(-7*24*time.Hour + time.Minute)

	res, err := Evaluate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Unlocked, "31")
	assert.NotContains(t, res.Unlocked, "17")

	p.AccountCreatedAt = now.Add(-7 * 24 * time.Hour)
	res, err = Evaluate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Unlocked, "17")
	assert.Contains(t, res.Unlocked, "32")
}

func TestEvaluate_ZeroAsOfDisablesTimeCriteria(t *testing.T) {
	last := time.Now().UTC()
	p := UserProgress{
		AccountCreatedAt: last.Add(-400 * 24 * time.Hour),
		LastCheckInAt:    &last,
		Achievements:     map[string]bool{},
	}

	res, err := Evaluate(p)
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)
	assert.Zero(t, p.DaysSinceSignup())
	assert.False(t, p.CheckedInToday())

	p.AsOf = last
	res, err = Evaluate(p)
	require.NoError(t, err)
	assert.Contains(t, res.Unlocked, "22")
	assert.Contains(t, res.Unlocked, "9")
}

func TestEvaluate_MissingCountersAreZero(t *testing.T) {
	res, err := Evaluate(UserProgress{AsOf: now})
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)
	assert.NotNil(t, res.Achievements)
}

func TestEvaluate_RejectsNegativeCounters(t *testing.T) {
	p := fresh()
	p.FuelUsed = -1

	_, err := Evaluate(p)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fuel_used", verr.Field)
}

func TestCatalog_Shape(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, 50)

	seen := map[string]bool{}
	for i, a := range cat {
		assert.Equal(t, strconv.Itoa(i+1), a.ID)
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
		assert.NotEmpty(t, a.Title)
		assert.NotEmpty(t, a.Icon)
		assert.NotEmpty(t, a.Criteria)
	}

	got, ok := Lookup("23")
	require.True(t, ok)
	assert.Len(t, got.Criteria, 2)
}

func TestParseProgress(t *testing.T) {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(`{
		"message_count": 12,
		"check_in_count": null,
		"fuel_used": 3,
		"account_created_at": "2025-01-01T00:00:00Z",
		"achievements": {"1": true}
	}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&raw))

	p, err := ParseProgress(raw)
	require.NoError(t, err)
	assert.Equal(t, 12, p.MessageCount)
	assert.Equal(t, 0, p.CheckInCount)
	assert.Equal(t, 3, p.FuelUsed)
	assert.Nil(t, p.LastCheckInAt)
	assert.True(t, p.Achievements["1"])
}

func TestParseProgress_Malformed(t *testing.T) {
	cases := map[string]map[string]any{
		"string counter":     {"message_count": "ten"},
		"fractional counter": {"fuel_used": 1.5},
		"negative counter":   {"check_in_count": -2},
		"bad timestamp":      {"account_created_at": "yesterday"},
		"non-bool flag":      {"achievements": map[string]any{"1": "yes"}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProgress(raw)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestNewSummary(t *testing.T) {
	p := fresh()
	p.Achievements = map[string]bool{"1": true, "2": true, "3": false}

	s := NewSummary(p)
	assert.Equal(t, 50, s.TotalCount)
	assert.Equal(t, 2, s.UnlockedCount)
	assert.True(t, s.Achievements[0].Unlocked)
	assert.False(t, s.Achievements[2].Unlocked)
}
