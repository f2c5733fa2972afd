package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const sessionKeyPrefix = "exercise_session:"

var (
	ErrValidation      = errors.New("invalid session")
	ErrSessionNotFound = errors.New("session not found")
)

// ExerciseSession is an immutable fact: one completed session of one
// exercise. Created when a workout completes, never mutated afterwards.
type ExerciseSession struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ExerciseID      string    `json:"exerciseId"`
	Weight          float64   `json:"weight"`
	Reps            int       `json:"reps"`
	Sets            int       `json:"sets"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
	CaloriesBurned  int       `json:"caloriesBurned,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Date            time.Time `json:"date"`
}

// Volume is weight x reps x sets for this session.
func (s ExerciseSession) Volume() float64 {
	return s.Weight * float64(s.Reps) * float64(s.Sets)
}

type SessionInput struct {
	UserID          string    `json:"userId"`
	ExerciseID      string    `json:"exerciseId"`
	Weight          float64   `json:"weight"`
	Reps            int       `json:"reps"`
	Sets            int       `json:"sets"`
	DurationSeconds int       `json:"durationSeconds"`
	CaloriesBurned  int       `json:"caloriesBurned"`
	Notes           string    `json:"notes"`
	Date            time.Time `json:"date"`
}

func (in SessionInput) Validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: user id empty", ErrValidation)
	}
	if strings.TrimSpace(in.ExerciseID) == "" {
		return fmt.Errorf("%w: exercise id empty", ErrValidation)
	}
	if in.Weight < 0 {
		return fmt.Errorf("%w: weight negative", ErrValidation)
	}
	if in.Reps < 0 {
		return fmt.Errorf("%w: reps negative", ErrValidation)
	}
	if in.Sets < 0 {
		return fmt.Errorf("%w: sets negative", ErrValidation)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date not set", ErrValidation)
	}
	return nil
}

func sessionKey(userID, sessionID string) string {
	return sessionKeyPrefix + userID + ":" + sessionID
}

func userSessionsPrefix(userID string) string {
	return sessionKeyPrefix + userID + ":"
}
