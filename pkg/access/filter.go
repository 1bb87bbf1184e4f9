package access

import (
	"fmt"
	"strings"

	"github.com/curaious/ors/pkg/fleet"
)

// All disables a grade, band or role filter.
const All = "all"

type ScoreBand string

const (
	BandAll    ScoreBand = All
	BandHigh   ScoreBand = "high"
	BandMedium ScoreBand = "medium"
	BandLow    ScoreBand = "low"
)

func ParseScoreBand(s string) (ScoreBand, error) {
	switch b := ScoreBand(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BandAll:
		return BandAll, nil
	case BandHigh, BandMedium, BandLow:
		return b, nil
	}
	return "", fmt.Errorf("unknown score band %q", s)
}

// ScoreBandOf places a score: high >= 80, medium in [60, 80), low < 60.
func ScoreBandOf(score int) ScoreBand {
	switch {
	case score >= 80:
		return BandHigh
	case score >= 60:
		return BandMedium
	default:
		return BandLow
	}
}

func (b ScoreBand) Matches(score int) bool {
	if b == "" || b == BandAll {
		return true
	}
	return ScoreBandOf(score) == b
}

// PlanFilter narrows a plan list. Zero values match everything and the
// criteria are AND-ed.
type PlanFilter struct {
	Search    string
	Grade     string
	ScoreBand ScoreBand
}

func (f PlanFilter) Matches(plan fleet.OrsPlan) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(plan.Vehicle), strings.ToLower(f.Search)) {
		return false
	}
	if f.Grade != "" && f.Grade != All && string(plan.OverallTrafficScore) != f.Grade {
		return false
	}
	return f.ScoreBand.Matches(plan.Score())
}

func FilterPlans(plans []fleet.OrsPlan, f PlanFilter) []fleet.OrsPlan {
	out := make([]fleet.OrsPlan, 0, len(plans))
	for _, plan := range plans {
		if f.Matches(plan) {
			out = append(out, plan)
		}
	}
	return out
}

// UserFilter narrows the user list by username/email text and role.
type UserFilter struct {
	Search string
	Role   string
}

func (f UserFilter) Matches(u fleet.User) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Username), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			return false
		}
	}
	return f.Role == "" || f.Role == All || string(u.Role) == f.Role
}

func FilterUsers(users []fleet.User, f UserFilter) []fleet.User {
	out := make([]fleet.User, 0, len(users))
	for _, u := range users {
		if f.Matches(u) {
			out = append(out, u)
		}
	}
	return out
}
