package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/2beens/gymprogress/internal/aggregate"
	"github.com/2beens/gymprogress/internal/ledger"

	"github.com/coocood/freecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	// 2024-01-01 was a Monday
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday morning maps to itself",
			in:   time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
			want: monday,
		},
		{
			name: "wednesday maps back to monday",
			in:   time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC),
			want: monday,
		},
		{
			name: "sunday still belongs to the same week",
			in:   time.Date(2024, 1, 7, 1, 0, 0, 0, time.UTC),
			want: monday,
		},
		{
			name: "next monday starts a new week",
			in:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
			want: monday.AddDate(0, 0, 7),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, aggregate.WeekStart(tc.in))
		})
	}
}

func TestEngine_Analytics(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	now := time.Now().UTC()

	record := func(s ledger.ExerciseSession) {
		_, _, err := env.engine.RecordSession(ctx, s)
		require.NoError(t, err)
	}

	thisWeek1 := env.addSession(t, "u1", "bench-press", 60, 8, now)
	thisWeek2 := env.addSession(t, "u1", "squat", 100, 5, now.Add(-time.Hour))
	twoWeeksAgo := env.addSession(t, "u1", "bench-press", 55, 8, now.AddDate(0, 0, -14))
	outOfWindow := env.addSession(t, "u1", "squat", 90, 5, now.AddDate(0, 0, -60))
	for _, s := range []ledger.ExerciseSession{thisWeek1, thisWeek2, twoWeeksAgo, outOfWindow} {
		record(s)
	}

	analytics, err := env.engine.Analytics(ctx, "u1", 30)
	require.NoError(t, err)

	assert.Equal(t, 3, analytics.TotalWorkouts)
	assert.Equal(t, thisWeek1.Volume()+thisWeek2.Volume()+twoWeeksAgo.Volume(), analytics.TotalVolume)
	assert.Equal(t, map[string]int{"bench-press": 2, "squat": 1}, analytics.ExerciseBreakdown)

	// one bucket per active week, ascending, the empty week in between absent
	require.Len(t, analytics.WeeklyProgress, 2)
	assert.Equal(t, aggregate.WeekStart(twoWeeksAgo.Date), analytics.WeeklyProgress[0].WeekStart)
	assert.Equal(t, aggregate.WeekStart(now), analytics.WeeklyProgress[1].WeekStart)
	assert.Equal(t, 1, analytics.WeeklyProgress[0].Workouts)
	assert.Equal(t, 2, analytics.WeeklyProgress[1].Workouts)
	assert.Equal(t, thisWeek1.Volume()+thisWeek2.Volume(), analytics.WeeklyProgress[1].Volume)
}

func TestEngine_Analytics_EmptyWindow(t *testing.T) {
	env := newTestEnv()

	analytics, err := env.engine.Analytics(context.Background(), "u1", 30)
	require.NoError(t, err)
	assert.Zero(t, analytics.TotalWorkouts)
	assert.Zero(t, analytics.TotalVolume)
	assert.Empty(t, analytics.WeeklyProgress)
}

func TestEngine_Analytics_Cached(t *testing.T) {
	ctx := context.Background()
	kv := newTestEnv()
	engine := aggregate.NewEngine(kv.kv, kv.ledger, freecache.NewCache(1024*1024))

	s := kv.addSession(t, "u1", "bench-press", 60, 8, time.Now().UTC())
	_, _, err := engine.RecordSession(ctx, s)
	require.NoError(t, err)

	first, err := engine.Analytics(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalWorkouts)

	// a session landing after the first computation is invisible until
	// the cache entry expires
	s2 := kv.addSession(t, "u1", "bench-press", 65, 8, time.Now().UTC())
	_, _, err = engine.RecordSession(ctx, s2)
	require.NoError(t, err)

	second, err := engine.Analytics(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalWorkouts)
}
