package achievement

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ValidationError reports a counter that is not a non-negative integer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Evaluate walks the catalog once and returns the updated mapping together
// with the ids that turned true during this call. The input is not modified.
func Evaluate(p UserProgress) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}

	updated := make(map[string]bool, len(p.Achievements)+4)
	for id, v := range p.Achievements {
		updated[id] = v
	}

	unlocked := []string{}
	for _, a := range catalog {
		if updated[a.ID] {
			continue
		}
		if p.satisfies(a) {
			updated[a.ID] = true
			unlocked = append(unlocked, a.ID)
		}
	}

	return Result{Achievements: updated, Unlocked: unlocked}, nil
}

func (p UserProgress) validate() error {
	switch {
	case p.MessageCount < 0:
		return &ValidationError{Field: "message_count", Reason: "must not be negative"}
	case p.CheckInCount < 0:
		return &ValidationError{Field: "check_in_count", Reason: "must not be negative"}
	case p.FuelUsed < 0:
		return &ValidationError{Field: "fuel_used", Reason: "must not be negative"}
	}
	return nil
}

func (p UserProgress) satisfies(a Achievement) bool {
	for _, c := range a.Criteria {
		if !p.meets(c) {
			return false
		}
	}
	return len(a.Criteria) > 0
}

func (p UserProgress) meets(c Criterion) bool {
	switch c.Type {
	case CriteriaMessages:
		return p.MessageCount >= c.Value
	case CriteriaCheckIns:
		return p.CheckInCount >= c.Value
	case CriteriaFuelUsed:
		return p.FuelUsed >= c.Value
	case CriteriaAccountAgeDays:
		return p.DaysSinceSignup() >= c.Value
	case CriteriaCheckedInToday:
		return p.CheckedInToday()
	}
	return false
}

// DaysSinceSignup counts whole elapsed days up to AsOf. A missing creation
// time or a zero AsOf counts as zero.
func (p UserProgress) DaysSinceSignup() int {
	if p.AccountCreatedAt.IsZero() || p.AsOf.IsZero() {
		return 0
	}
	d := p.AsOf.Sub(p.AccountCreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// CheckedInToday compares UTC calendar dates. It is false when AsOf is zero.
func (p UserProgress) CheckedInToday() bool {
	if p.LastCheckInAt == nil || p.LastCheckInAt.IsZero() || p.AsOf.IsZero() {
		return false
	}
	y1, m1, d1 := p.LastCheckInAt.UTC().Date()
	y2, m2, d2 := p.AsOf.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ParseProgress converts a loosely typed document (for instance a decoded JSON
// body) into a UserProgress. Missing or null counters become zero.
func ParseProgress(raw map[string]any) (UserProgress, error) {
	var p UserProgress
	var err error

	if p.MessageCount, err = counter(raw, "message_count"); err != nil {
		return UserProgress{}, err
	}
	if p.CheckInCount, err = counter(raw, "check_in_count"); err != nil {
		return UserProgress{}, err
	}
	if p.FuelUsed, err = counter(raw, "fuel_used"); err != nil {
		return UserProgress{}, err
	}
	if p.AccountCreatedAt, err = timestamp(raw, "account_created_at"); err != nil {
		return UserProgress{}, err
	}
	last, err := timestamp(raw, "last_check_in_at")
	if err != nil {
		return UserProgress{}, err
	}
	if !last.IsZero() {
		p.LastCheckInAt = &last
	}

	p.Achievements = map[string]bool{}
	switch m := raw["achievements"].(type) {
	case nil:
	case map[string]bool:
		for k, v := range m {
			p.Achievements[k] = v
		}
	case map[string]any:
		for k, v := range m {
			switch b := v.(type) {
			case bool:
				p.Achievements[k] = b
			case nil:
			default:
				return UserProgress{}, &ValidationError{Field: "achievements." + k, Reason: "must be a boolean"}
			}
		}
	default:
		return UserProgress{}, &ValidationError{Field: "achievements", Reason: "must be an object"}
	}

	return p, nil
}

func counter(raw map[string]any, key string) (int, error) {
	var f float64
	switch v := raw[key].(type) {
	case nil:
		return 0, nil
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, &ValidationError{Field: key, Reason: "must be a number"}
		}
		f = n
	default:
		return 0, &ValidationError{Field: key, Reason: "must be a number"}
	}

	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, &ValidationError{Field: key, Reason: "must be finite"}
	case f != math.Trunc(f):
		return 0, &ValidationError{Field: key, Reason: "must be a whole number"}
	case f < 0:
		return 0, &ValidationError{Field: key, Reason: "must not be negative"}
	case f > math.MaxInt32:
		return 0, &ValidationError{Field: key, Reason: "out of range"}
	}
	return int(f), nil
}

func timestamp(raw map[string]any, key string) (time.Time, error) {
	switch v := raw[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, &ValidationError{Field: key, Reason: "must be an RFC 3339 timestamp"}
		}
		return t, nil
	default:
		return time.Time{}, &ValidationError{Field: key, Reason: "must be an RFC 3339 timestamp"}
	}
}
