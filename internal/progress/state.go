package progress

import (
	"errors"
	"time"
)

const (
	stateKeyPrefix = "progress_state:"
	dateLayout     = "2006-01-02"

	// XPPerLevel drives the level function: level = totalXP/XPPerLevel + 1
	XPPerLevel = 100

	OnboardingBonusXP = 50
	WorkoutXP         = 25
	PremiumBonusXP    = 100

	DefaultWeeklyGoal = 3
)

var (
	ErrStateNotFound = errors.New("progress state not found")
	ErrValidation    = errors.New("invalid progress request")
)

// streak values that get announced, exactly once per crossing
var streakMilestones = map[int]bool{
	7:   true,
	30:  true,
	100: true,
	365: true,
}

// State is the per-user gamification record: monotone XP/level counters,
// the calendar streak and the weekly goal progress. Persisted as a single
// JSON value after every mutation; the in-memory copy stays authoritative
// when a write fails.
type State struct {
	UserID         string `json:"userId"`
	TotalXP        int    `json:"totalXP"`
	Level          int    `json:"level"`
	StreakDays     int    `json:"streakDays"`
	WeeklyGoal     int    `json:"weeklyGoal"`
	WeeklyProgress int    `json:"weeklyProgress"`
	// WeekStart is the ISO date of the Monday of the week that
	// WeeklyProgress counts; progress resets when the week rolls over
	WeekStart string `json:"weekStart"`
	// Unlocked holds the names of unlocked achievements, so unlocking
	// is idempotent without trusting the caller
	Unlocked []string `json:"unlockedAchievements"`
	// LastActivityDate is an ISO date string, re-hydrated into a
	// calendar day on load
	LastActivityDate string `json:"lastActivityDate"`
}

// LevelForXP is the deterministic, non-decreasing level function.
func LevelForXP(totalXP int) int {
	return totalXP/XPPerLevel + 1
}

func (s *State) AchievementsUnlocked() int {
	return len(s.Unlocked)
}

func (s *State) hasUnlocked(name string) bool {
	for _, unlocked := range s.Unlocked {
		if unlocked == name {
			return true
		}
	}
	return false
}

// lastActivity re-hydrates the persisted ISO date string.
func (s *State) lastActivity() (time.Time, bool) {
	if s.LastActivityDate == "" {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, s.LastActivityDate)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func copyState(s *State) *State {
	cp := *s
	cp.Unlocked = make([]string, len(s.Unlocked))
	copy(cp.Unlocked, s.Unlocked)
	return &cp
}

func stateKey(userID string) string {
	return stateKeyPrefix + userID
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isoDate(t time.Time) string {
	return t.Format(dateLayout)
}

// weekStartOf truncates a day to the Monday of its ISO week.
func weekStartOf(day time.Time) time.Time {
	day = dateOnly(day)
	daysSinceMonday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -daysSinceMonday)
}
