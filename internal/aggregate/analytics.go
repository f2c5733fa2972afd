package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/2beens/gymprogress/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

const analyticsCacheTTLSeconds = 60

// WeeklyBucket sums one ISO week (Monday start, UTC) of activity.
type WeeklyBucket struct {
	WeekStart time.Time `json:"weekStart"`
	Volume    float64   `json:"volume"`
	Workouts  int       `json:"workouts"`
}

type Analytics struct {
	TotalWorkouts     int            `json:"totalWorkouts"`
	TotalVolume       float64        `json:"totalVolume"`
	TotalCalories     int            `json:"totalCalories"`
	ExerciseBreakdown map[string]int `json:"exerciseBreakdown"`
	// WeeklyProgress is ordered oldest week first; weeks with no
	// sessions are absent, not zero-filled
	WeeklyProgress []WeeklyBucket `json:"weeklyProgress"`
}

// Analytics re-scans the user's ledger entries in [now - windowDays, now]
// and aggregates them. A pure read-side computation: the per-exercise
// aggregates are not touched. Results are cached for a short while.
func (e *Engine) Analytics(ctx context.Context, userID string, windowDays int) (_ *Analytics, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregate.analytics")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := []byte(fmt.Sprintf("analytics:%s:%d", userID, windowDays))
	if e.cache != nil {
		if data, err := e.cache.Get(cacheKey); err == nil {
			var cached Analytics
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
			log.Warnf("malformed analytics cache entry for user %s, recomputing", userID)
		}
	}

	now := time.Now().UTC()
	sessions, err := e.sessions.SessionsInWindow(ctx, userID, now.AddDate(0, 0, -windowDays), now)
	if err != nil {
		return nil, fmt.Errorf("list sessions in window: %w", err)
	}

	analytics := &Analytics{
		ExerciseBreakdown: make(map[string]int),
	}
	weeks := make(map[time.Time]*WeeklyBucket)
	for _, s := range sessions {
		analytics.TotalWorkouts++
		analytics.TotalVolume += s.Volume()
		analytics.TotalCalories += s.CaloriesBurned
		analytics.ExerciseBreakdown[s.ExerciseID]++

		ws := WeekStart(s.Date)
		bucket, ok := weeks[ws]
		if !ok {
			bucket = &WeeklyBucket{WeekStart: ws}
			weeks[ws] = bucket
		}
		bucket.Workouts++
		bucket.Volume += s.Volume()
	}

	analytics.WeeklyProgress = make([]WeeklyBucket, 0, len(weeks))
	for _, bucket := range weeks {
		analytics.WeeklyProgress = append(analytics.WeeklyProgress, *bucket)
	}
	sort.Slice(analytics.WeeklyProgress, func(i, j int) bool {
		return analytics.WeeklyProgress[i].WeekStart.Before(analytics.WeeklyProgress[j].WeekStart)
	})

	if e.cache != nil {
		if data, err := json.Marshal(analytics); err == nil {
			if err := e.cache.Set(cacheKey, data, analyticsCacheTTLSeconds); err != nil {
				log.Warnf("failed to cache analytics for user %s: %s", userID, err)
			}
		}
	}
	return analytics, nil
}

// WeekStart truncates a timestamp to the Monday 00:00 UTC of its ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// Weekday is Sunday==0, ISO weeks start on Monday
	daysSinceMonday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -daysSinceMonday)
}
