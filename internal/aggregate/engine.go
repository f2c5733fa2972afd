// Package aggregate maintains per (user, exercise) summary statistics
// derived from the session ledger: counters, maxes, total volume and the
// personal record, plus read-side analytics over a day window.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/gymprogress/internal/ledger"
	"github.com/2beens/gymprogress/internal/store"
	"github.com/2beens/gymprogress/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

var ErrAggregateNotFound = errors.New("aggregate not found")

type sessionSource interface {
	SessionsForExercise(ctx context.Context, userID, exerciseID string) ([]ledger.ExerciseSession, error)
	SessionsInWindow(ctx context.Context, userID string, from, to time.Time) ([]ledger.ExerciseSession, error)
}

type Engine struct {
	kv       store.KV
	sessions sessionSource
	cache    *freecache.Cache

	// the store has no compare-and-swap, so the read-modify-write cycle
	// for each stats key runs under its own in-process mutex: single
	// logical writer per (user, exercise)
	locksMutex sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

func NewEngine(kv store.KV, sessions sessionSource, cache *freecache.Cache) *Engine {
	return &Engine{
		kv:       kv,
		sessions: sessions,
		cache:    cache,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) keyLock(key string) *sync.Mutex {
	e.locksMutex.Lock()
	defer e.locksMutex.Unlock()

	l, ok := e.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		e.keyLocks[key] = l
	}
	return l
}

// RecordSession folds one freshly appended session into the aggregate of
// its (user, exercise) pair. Returns whether the session set a new
// personal record, and the updated total session count.
func (e *Engine) RecordSession(ctx context.Context, s ledger.ExerciseSession) (newRecord bool, totalSessions int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregate.recordSession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := statsKey(s.UserID, s.ExerciseID)
	lock := e.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	agg, err := e.loadAggregate(ctx, key)
	if err != nil && !errors.Is(err, ErrAggregateNotFound) {
		return false, 0, err
	}
	if agg == nil {
		agg = &Aggregate{ExerciseID: s.ExerciseID}
	}

	newRecord = agg.apply(s)

	if err := e.storeAggregate(ctx, key, agg); err != nil {
		return false, 0, err
	}

	log.Debugf("aggregate updated: [%s] [%s]: %d sessions, new record: %t",
		s.UserID, s.ExerciseID, agg.TotalSessions, newRecord)
	return newRecord, agg.TotalSessions, nil
}

// Rebuild recomputes the aggregate for one (user, exercise) pair from
// the remaining ledger entries. Called after a session delete so the
// summary never overstates reality. With no sessions left, the stats key
// is removed entirely.
func (e *Engine) Rebuild(ctx context.Context, userID, exerciseID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregate.rebuild")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := statsKey(userID, exerciseID)
	lock := e.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	sessions, err := e.sessions.SessionsForExercise(ctx, userID, exerciseID)
	if err != nil {
		return fmt.Errorf("list sessions for rebuild: %w", err)
	}

	if len(sessions) == 0 {
		if err := e.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete empty aggregate: %w", err)
		}
		return nil
	}

	// sessions come oldest first, so personal records are re-detected in
	// the same order they originally happened
	agg := &Aggregate{ExerciseID: exerciseID}
	for _, s := range sessions {
		agg.apply(s)
	}
	return e.storeAggregate(ctx, key, agg)
}

// Get returns the current aggregate for one (user, exercise) pair.
func (e *Engine) Get(ctx context.Context, userID, exerciseID string) (_ *Aggregate, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregate.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	return e.loadAggregate(ctx, statsKey(userID, exerciseID))
}

// PersonalRecords projects all of the user's per-exercise aggregates to
// their record view: PR weight, all-time max reps, PR date.
func (e *Engine) PersonalRecords(ctx context.Context, userID string) (_ map[string]RecordView, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregate.personalRecords")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	values, err := e.kv.ScanPrefix(ctx, userStatsPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("scan aggregates: %w", err)
	}

	records := make(map[string]RecordView, len(values))
	for _, data := range values {
		var agg Aggregate
		if err := json.Unmarshal(data, &agg); err != nil {
			log.Warnf("skipping malformed aggregate entry for user %s: %s", userID, err)
			continue
		}
		records[agg.ExerciseID] = RecordView{
			Weight:  agg.PersonalRecord.Weight,
			MaxReps: agg.MaxReps,
			Date:    agg.PersonalRecord.Date,
		}
	}
	return records, nil
}

func (e *Engine) loadAggregate(ctx context.Context, key string) (*Aggregate, error) {
	data, err := e.kv.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrAggregateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate: %w", err)
	}

	var agg Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	return &agg, nil
}

func (e *Engine) storeAggregate(ctx context.Context, key string, agg *Aggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}
	if err := e.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("persist aggregate: %w", err)
	}
	return nil
}
