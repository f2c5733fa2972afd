// Package ledger is the append-only record of completed exercise sessions.
// Sessions are stored as single JSON values in the KV store, keyed by
// user and a process-unique session id; listing is a prefix scan sorted
// by date, an accepted O(n) cost for per-user data volumes.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/2beens/gymprogress/internal/store"
	"github.com/2beens/gymprogress/internal/telemetry/tracing"
	"github.com/2beens/gymprogress/pkg"

	log "github.com/sirupsen/logrus"
)

const sessionIDLength = 16

type Ledger struct {
	kv store.KV
}

func New(kv store.KV) *Ledger {
	return &Ledger{
		kv: kv,
	}
}

// Append validates the input, assigns a session id and persists the new
// immutable session fact.
func (l *Ledger) Append(ctx context.Context, in SessionInput) (_ *ExerciseSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.append")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	id, err := pkg.GenerateRandomString(sessionIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	session := &ExerciseSession{
		ID:              id,
		UserID:          in.UserID,
		ExerciseID:      in.ExerciseID,
		Weight:          in.Weight,
		Reps:            in.Reps,
		Sets:            in.Sets,
		DurationSeconds: in.DurationSeconds,
		CaloriesBurned:  in.CaloriesBurned,
		Notes:           in.Notes,
		Date:            in.Date.UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := l.kv.Set(ctx, sessionKey(session.UserID, session.ID), data); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	log.Debugf("new session appended: [%s] [%s]: %s", session.UserID, session.ExerciseID, session.ID)
	return session, nil
}

// ListByUser returns the user's sessions, most recent first. An empty
// exerciseID means all exercises. The scan is restartable: every call
// re-reads the store.
func (l *Ledger) ListByUser(ctx context.Context, userID, exerciseID string, limit int) (_ []ExerciseSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.listByUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sessions, err := l.scanUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if exerciseID != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.ExerciseID == exerciseID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Date.After(sessions[j].Date)
	})

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Delete removes a session fact and returns it, so callers can rebuild
// the affected aggregate. A session id belonging to another user is
// indistinguishable from a missing one: both return ErrSessionNotFound.
func (l *Ledger) Delete(ctx context.Context, userID, sessionID string) (_ *ExerciseSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := sessionKey(userID, sessionID)
	data, err := l.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session ExerciseSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := l.kv.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return &session, nil
}

// SessionsForExercise returns all of a user's sessions of one exercise,
// oldest first. Used for aggregate rebuilds.
func (l *Ledger) SessionsForExercise(ctx context.Context, userID, exerciseID string) (_ []ExerciseSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.sessionsForExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sessions, err := l.scanUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := make([]ExerciseSession, 0, len(sessions))
	for _, s := range sessions {
		if s.ExerciseID == exerciseID {
			filtered = append(filtered, s)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})
	return filtered, nil
}

// SessionsInWindow returns the user's sessions with a date in [from, to].
func (l *Ledger) SessionsInWindow(ctx context.Context, userID string, from, to time.Time) (_ []ExerciseSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.sessionsInWindow")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sessions, err := l.scanUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	inWindow := make([]ExerciseSession, 0, len(sessions))
	for _, s := range sessions {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		inWindow = append(inWindow, s)
	}
	return inWindow, nil
}

func (l *Ledger) scanUser(ctx context.Context, userID string) ([]ExerciseSession, error) {
	values, err := l.kv.ScanPrefix(ctx, userSessionsPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}

	sessions := make([]ExerciseSession, 0, len(values))
	for _, data := range values {
		var s ExerciseSession
		if err := json.Unmarshal(data, &s); err != nil {
			log.Warnf("skipping malformed session entry for user %s: %s", userID, err)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
