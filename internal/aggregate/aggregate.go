package aggregate

import (
	"time"

	"github.com/2beens/gymprogress/internal/ledger"
)

const statsKeyPrefix = "exercise_stats:"

// PersonalRecord is the best-ever (weight, reps) pair for one exercise.
// A session replaces it only when it strictly dominates: higher weight,
// or equal weight with more reps.
type PersonalRecord struct {
	Weight float64   `json:"weight"`
	Reps   int       `json:"reps"`
	Date   time.Time `json:"date"`
}

func (pr PersonalRecord) dominatedBy(s ledger.ExerciseSession) bool {
	return s.Weight > pr.Weight || (s.Weight == pr.Weight && s.Reps > pr.Reps)
}

// Aggregate is the running summary for one (user, exercise) pair,
// rebuilt incrementally on every new session.
type Aggregate struct {
	ExerciseID     string         `json:"exerciseId"`
	TotalSessions  int            `json:"totalSessions"`
	MaxWeight      float64        `json:"maxWeight"`
	MaxReps        int            `json:"maxReps"`
	TotalVolume    float64        `json:"totalVolume"`
	LastPerformed  time.Time      `json:"lastPerformed"`
	PersonalRecord PersonalRecord `json:"personalRecord"`
}

// apply folds one session into the aggregate and reports whether it set
// a new personal record.
func (a *Aggregate) apply(s ledger.ExerciseSession) (newRecord bool) {
	newRecord = a.PersonalRecord.dominatedBy(s)

	a.TotalSessions++
	if s.Weight > a.MaxWeight {
		a.MaxWeight = s.Weight
	}
	if s.Reps > a.MaxReps {
		a.MaxReps = s.Reps
	}
	a.TotalVolume += s.Volume()
	a.LastPerformed = s.Date

	if newRecord {
		a.PersonalRecord = PersonalRecord{
			Weight: s.Weight,
			Reps:   s.Reps,
			Date:   s.Date,
		}
	}
	return newRecord
}

// RecordView is the per-exercise projection returned by PersonalRecords.
type RecordView struct {
	Weight  float64   `json:"weight"`
	MaxReps int       `json:"maxReps"`
	Date    time.Time `json:"date"`
}

func statsKey(userID, exerciseID string) string {
	return statsKeyPrefix + userID + ":" + exerciseID
}

func userStatsPrefix(userID string) string {
	return statsKeyPrefix + userID + ":"
}
