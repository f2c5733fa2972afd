// Package progress keeps the per-user gamification state machine: XP and
// levels, calendar streaks, weekly workout goals and achievements. All
// mutations funnel through the Tracker, which owns the authoritative
// in-memory states and persists them best-effort after every change.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/gymprogress/internal/store"
	"github.com/2beens/gymprogress/internal/telemetry/metrics"
	"github.com/2beens/gymprogress/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

type Tracker struct {
	kv       store.KV
	notifier Notifier
	catalog  []Achievement

	weeklyGoal int
	metrics    *metrics.Manager

	// NowFunc is the tracker's clock, swappable in tests
	NowFunc func() time.Time

	mutex  sync.Mutex
	states map[string]*State
}

type Option func(*Tracker)

func WithWeeklyGoal(goal int) Option {
	return func(t *Tracker) {
		t.weeklyGoal = goal
	}
}

func WithCatalog(catalog []Achievement) Option {
	return func(t *Tracker) {
		t.catalog = catalog
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func NewTracker(kv store.KV, notifier Notifier, opts ...Option) *Tracker {
	t := &Tracker{
		kv:         kv,
		notifier:   notifier,
		catalog:    DefaultCatalog(),
		weeklyGoal: DefaultWeeklyGoal,
		NowFunc:    time.Now,
		states:     make(map[string]*State),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize creates the user's progress state and seeds it with the
// onboarding bonus. Idempotent: an existing state is returned untouched,
// so the bonus can never be claimed twice.
func (t *Tracker) Initialize(ctx context.Context, userID string) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.initialize")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrValidation)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if st, err := t.loadLocked(ctx, userID); err == nil {
		return copyState(st), nil
	} else if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}

	today := dateOnly(t.NowFunc())
	st := &State{
		UserID:     userID,
		TotalXP:    OnboardingBonusXP,
		Level:      LevelForXP(OnboardingBonusXP),
		WeeklyGoal: t.weeklyGoal,
		WeekStart:  isoDate(weekStartOf(today)),
		Unlocked:   []string{},
	}
	t.notifier.NotifyXPGain(userID, OnboardingBonusXP, "onboarding completed")
	if t.metrics != nil {
		t.metrics.CounterXPGranted.Add(float64(OnboardingBonusXP))
	}

	t.states[userID] = st
	t.persistLocked(ctx, st)

	log.Debugf("progress state initialized for user %s", userID)
	return copyState(st), nil
}

// Get returns a copy of the user's current progress state.
func (t *Tracker) Get(ctx context.Context, userID string) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return copyState(st), nil
}

// GrantXP adds XP for the given reason and announces level crossings.
// XP and levels only ever go up.
func (t *Tracker) GrantXP(ctx context.Context, userID string, amount int, reason string) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.grantXP")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if amount < 0 {
		return nil, fmt.Errorf("%w: negative xp amount", ErrValidation)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	t.applyXPLocked(st, amount, reason)
	t.persistLocked(ctx, st)
	return copyState(st), nil
}

// RecordActivity registers a qualifying workout day: advances or resets
// the calendar streak and counts towards the weekly goal.
func (t *Tracker) RecordActivity(ctx context.Context, userID string, day time.Time) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.recordActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	t.applyActivityLocked(st, dateOnly(day))
	t.persistLocked(ctx, st)
	return copyState(st), nil
}

// UnlockAchievement unlocks the named achievement directly. Returns
// false without side effects when it is already unlocked.
func (t *Tracker) UnlockAchievement(ctx context.Context, userID, name string) (unlocked bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.unlockAchievement")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if name == "" {
		return false, fmt.Errorf("%w: empty achievement name", ErrValidation)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return false, err
	}

	if st.hasUnlocked(name) {
		return false, nil
	}
	t.unlockLocked(st, name)
	t.persistLocked(ctx, st)
	return true, nil
}

// EvaluateAchievements re-checks the catalog against the user's current
// state and the given facts, unlocking anything newly satisfied.
func (t *Tracker) EvaluateAchievements(ctx context.Context, userID string, facts Facts) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.evaluateAchievements")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	t.evaluateAchievementsLocked(st, facts)
	t.persistLocked(ctx, st)
	return copyState(st), nil
}

// OnOnboardingFinished is the domain-event alias for Initialize.
func (t *Tracker) OnOnboardingFinished(ctx context.Context, userID string) (*State, error) {
	return t.Initialize(ctx, userID)
}

// OnWorkoutCompleted is the single entry point the session pipeline
// calls after a session lands in the ledger: one activity day, the
// workout XP and an achievement evaluation, all under one lock and one
// persist.
func (t *Tracker) OnWorkoutCompleted(ctx context.Context, userID string, day time.Time, facts Facts) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.onWorkoutCompleted")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	t.applyActivityLocked(st, dateOnly(day))
	t.applyXPLocked(st, WorkoutXP, "workout completed")
	t.evaluateAchievementsLocked(st, facts)

	t.persistLocked(ctx, st)
	return copyState(st), nil
}

// OnSubscriptionChanged grants the premium bonus when a user upgrades.
// A downgrade changes nothing, XP is never taken back.
func (t *Tracker) OnSubscriptionChanged(ctx context.Context, userID string, premium bool) (_ *State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.onSubscriptionChanged")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	st, err := t.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	if premium {
		t.applyXPLocked(st, PremiumBonusXP, "premium subscription")
		t.persistLocked(ctx, st)
	}
	return copyState(st), nil
}

// Flush persists every in-memory state. Called on shutdown to give
// states that failed an earlier write one last chance to land.
func (t *Tracker) Flush(ctx context.Context) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, st := range t.states {
		t.persistLocked(ctx, st)
	}
	log.Debugf("flushed %d progress states", len(t.states))
}

func (t *Tracker) applyXPLocked(st *State, amount int, reason string) {
	if amount == 0 {
		return
	}

	st.TotalXP += amount
	t.notifier.NotifyXPGain(st.UserID, amount, reason)
	if t.metrics != nil {
		t.metrics.CounterXPGranted.Add(float64(amount))
	}

	if newLevel := LevelForXP(st.TotalXP); newLevel > st.Level {
		st.Level = newLevel
		t.notifier.NotifyLevelUp(st.UserID, newLevel)
		if t.metrics != nil {
			t.metrics.CounterLevelUps.Inc()
		}
	}
}

func (t *Tracker) applyActivityLocked(st *State, day time.Time) {
	last, hadActivity := st.lastActivity()
	sameDay := hadActivity && day.Equal(last)

	switch {
	case sameDay:
		// second workout today, streak already counted
	case hadActivity && day.Equal(last.AddDate(0, 0, 1)):
		st.StreakDays++
		if streakMilestones[st.StreakDays] {
			t.notifier.NotifyStreakMilestone(st.UserID, st.StreakDays)
		}
	default:
		st.StreakDays = 1
	}

	if ws := isoDate(weekStartOf(day)); st.WeekStart != ws {
		st.WeekStart = ws
		st.WeeklyProgress = 0
	}
	if st.WeeklyProgress < st.WeeklyGoal {
		st.WeeklyProgress++
		if st.WeeklyProgress == st.WeeklyGoal {
			t.notifier.NotifyWeeklyGoalReached(st.UserID, st.WeeklyGoal)
		}
	}

	st.LastActivityDate = isoDate(day)
}

func (t *Tracker) evaluateAchievementsLocked(st *State, facts Facts) {
	for _, a := range t.catalog {
		if st.hasUnlocked(a.Name) {
			continue
		}
		if a.Condition(st, facts) {
			t.unlockLocked(st, a.Name)
		}
	}
}

func (t *Tracker) unlockLocked(st *State, name string) {
	st.Unlocked = append(st.Unlocked, name)
	t.notifier.NotifyAchievementUnlocked(st.UserID, name)
	if t.metrics != nil {
		t.metrics.CounterAchievements.Inc()
	}
}

func (t *Tracker) loadLocked(ctx context.Context, userID string) (*State, error) {
	if st, ok := t.states[userID]; ok {
		return st, nil
	}

	data, err := t.kv.Get(ctx, stateKey(userID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal progress state: %w", err)
	}
	if st.Unlocked == nil {
		st.Unlocked = []string{}
	}

	t.states[userID] = &st
	return &st, nil
}

// persistLocked writes the state best-effort. A failed write is logged
// and swallowed: the in-memory state stays authoritative and the next
// mutation retries the write.
func (t *Tracker) persistLocked(ctx context.Context, st *State) {
	data, err := json.Marshal(st)
	if err != nil {
		log.Errorf("failed to marshal progress state for user %s: %s", st.UserID, err)
		return
	}
	if err := t.kv.Set(ctx, stateKey(st.UserID), data); err != nil {
		log.Errorf("failed to persist progress state for user %s, keeping in-memory copy: %s", st.UserID, err)
	}
}
