package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/2beens/gymprogress/internal/ledger"
	"github.com/2beens/gymprogress/internal/store"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput(userID, exerciseID string, date time.Time) ledger.SessionInput {
	return ledger.SessionInput{
		UserID:     userID,
		ExerciseID: exerciseID,
		Weight:     gofakeit.Float64Range(20, 150),
		Reps:       gofakeit.Number(1, 15),
		Sets:       gofakeit.Number(1, 5),
		Date:       date,
	}
}

func TestSessionInput_Validate(t *testing.T) {
	now := time.Now()
	testCases := []struct {
		name    string
		input   ledger.SessionInput
		wantErr string
	}{
		{
			name:  "valid",
			input: ledger.SessionInput{UserID: "u1", ExerciseID: "bench-press", Weight: 60, Reps: 8, Sets: 3, Date: now},
		},
		{
			name:    "missing user",
			input:   ledger.SessionInput{ExerciseID: "bench-press", Weight: 60, Reps: 8, Sets: 3, Date: now},
			wantErr: "user id empty",
		},
		{
			name:    "missing exercise",
			input:   ledger.SessionInput{UserID: "u1", Weight: 60, Reps: 8, Sets: 3, Date: now},
			wantErr: "exercise id empty",
		},
		{
			name:    "negative weight",
			input:   ledger.SessionInput{UserID: "u1", ExerciseID: "bench-press", Weight: -1, Reps: 8, Sets: 3, Date: now},
			wantErr: "weight negative",
		},
		{
			name:    "negative reps",
			input:   ledger.SessionInput{UserID: "u1", ExerciseID: "bench-press", Weight: 60, Reps: -8, Sets: 3, Date: now},
			wantErr: "reps negative",
		},
		{
			name:    "no date",
			input:   ledger.SessionInput{UserID: "u1", ExerciseID: "bench-press", Weight: 60, Reps: 8, Sets: 3},
			wantErr: "date not set",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrValidation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLedger_AppendAndList(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.NewMemory())

	now := time.Now().UTC()
	s1, err := l.Append(ctx, validInput("u1", "bench-press", now.Add(-2*time.Hour)))
	require.NoError(t, err)
	s2, err := l.Append(ctx, validInput("u1", "squat", now.Add(-time.Hour)))
	require.NoError(t, err)
	s3, err := l.Append(ctx, validInput("u1", "bench-press", now))
	require.NoError(t, err)
	_, err = l.Append(ctx, validInput("other-user", "bench-press", now))
	require.NoError(t, err)

	assert.NotEmpty(t, s1.ID)
	assert.NotEqual(t, s1.ID, s2.ID)

	all, err := l.ListByUser(ctx, "u1", "", 100)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// most recent first
	assert.Equal(t, s3.ID, all[0].ID)
	assert.Equal(t, s2.ID, all[1].ID)
	assert.Equal(t, s1.ID, all[2].ID)

	benchOnly, err := l.ListByUser(ctx, "u1", "bench-press", 100)
	require.NoError(t, err)
	require.Len(t, benchOnly, 2)
	for _, s := range benchOnly {
		assert.Equal(t, "bench-press", s.ExerciseID)
	}

	limited, err := l.ListByUser(ctx, "u1", "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := l.ListByUser(ctx, "nobody", "", 100)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLedger_Append_Invalid(t *testing.T) {
	l := ledger.New(store.NewMemory())
	_, err := l.Append(context.Background(), ledger.SessionInput{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestLedger_Delete(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.NewMemory())

	s, err := l.Append(ctx, validInput("u1", "deadlift", time.Now()))
	require.NoError(t, err)

	deleted, err := l.Delete(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, deleted.ID)
	assert.Equal(t, "deadlift", deleted.ExerciseID)

	_, err = l.Delete(ctx, "u1", s.ID)
	assert.ErrorIs(t, err, ledger.ErrSessionNotFound)

	// another user's session id looks like a missing one
	s2, err := l.Append(ctx, validInput("u2", "deadlift", time.Now()))
	require.NoError(t, err)
	_, err = l.Delete(ctx, "u1", s2.ID)
	assert.ErrorIs(t, err, ledger.ErrSessionNotFound)
}

func TestLedger_SessionsForExercise(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.NewMemory())

	now := time.Now().UTC()
	newest, err := l.Append(ctx, validInput("u1", "squat", now))
	require.NoError(t, err)
	oldest, err := l.Append(ctx, validInput("u1", "squat", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = l.Append(ctx, validInput("u1", "bench-press", now))
	require.NoError(t, err)

	squats, err := l.SessionsForExercise(ctx, "u1", "squat")
	require.NoError(t, err)
	require.Len(t, squats, 2)
	// oldest first
	assert.Equal(t, oldest.ID, squats[0].ID)
	assert.Equal(t, newest.ID, squats[1].ID)
}

func TestLedger_SessionsInWindow(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.NewMemory())

	now := time.Now().UTC()
	inWindow, err := l.Append(ctx, validInput("u1", "squat", now.Add(-24*time.Hour)))
	require.NoError(t, err)
	_, err = l.Append(ctx, validInput("u1", "squat", now.Add(-40*24*time.Hour)))
	require.NoError(t, err)

	sessions, err := l.SessionsInWindow(ctx, "u1", now.Add(-30*24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, inWindow.ID, sessions[0].ID)
}

func TestExerciseSession_Volume(t *testing.T) {
	s := ledger.ExerciseSession{Weight: 60, Reps: 8, Sets: 3}
	assert.Equal(t, float64(60*8*3), s.Volume())

	bodyweight := ledger.ExerciseSession{Weight: 0, Reps: 12, Sets: 3}
	assert.Zero(t, bodyweight.Volume())
}
