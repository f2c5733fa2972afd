// Package exercises keeps the per-user catalog of custom exercises,
// stored alongside the built-in ones the mobile apps ship with. Catalog
// entries are metadata only: removing one leaves the session ledger and
// the aggregates untouched.
package exercises

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

const (
	customExerciseKeyPrefix = "custom_exercise:"
	exerciseIDLength        = 16
)

var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrValidation       = errors.New("invalid exercise")
)

type CustomExercise struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscleGroup,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CustomExerciseInput struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	MuscleGroup string `json:"muscleGroup,omitempty"`
}

func (in CustomExerciseInput) Validate() error {
	if in.UserID == "" {
		return fmt.Errorf("%w: empty user id", ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: empty exercise name", ErrValidation)
	}
	return nil
}

type Catalog struct {
	kv store.KV
}

func NewCatalog(kv store.KV) *Catalog {
	return &Catalog{kv: kv}
}

func (c *Catalog) Save(ctx context.Context, in CustomExerciseInput) (_ *CustomExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	id, err := pkg.GenerateRandomString(exerciseIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate exercise id: %w", err)
	}

	exercise := &CustomExercise{
		ID:          id,
		UserID:      in.UserID,
		Name:        in.Name,
		MuscleGroup: in.MuscleGroup,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(exercise)
	if err != nil {
		return nil, fmt.Errorf("marshal exercise: %w", err)
	}
	if err := c.kv.Set(ctx, exerciseKey(in.UserID, id), data); err != nil {
		return nil, fmt.Errorf("persist exercise: %w", err)
	}

	log.Debugf("custom exercise saved: [%s] %s", in.UserID, in.Name)
	return exercise, nil
}

func (c *Catalog) List(ctx context.Context, userID string) (_ []CustomExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	values, err := c.kv.ScanPrefix(ctx, userExercisesPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("scan exercises: %w", err)
	}

	all := make([]CustomExercise, 0, len(values))
	for _, data := range values {
		var exercise CustomExercise
		if err := json.Unmarshal(data, &exercise); err != nil {
			log.Warnf("skipping malformed exercise entry for user %s: %s", userID, err)
			continue
		}
		all = append(all, exercise)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func (c *Catalog) Delete(ctx context.Context, userID, exerciseID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := exerciseKey(userID, exerciseID)
	if _, err := c.kv.Get(ctx, key); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return ErrExerciseNotFound
		}
		return fmt.Errorf("get exercise: %w", err)
	}
	return c.kv.Delete(ctx, key)
}

func exerciseKey(userID, exerciseID string) string {
	return customExerciseKeyPrefix + userID + ":" + exerciseID
}

func userExercisesPrefix(userID string) string {
	return customExerciseKeyPrefix + userID + ":"
}
