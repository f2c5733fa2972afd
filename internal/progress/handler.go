package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/gymprogress/internal/telemetry/tracing"
	"github.com/2beens/gymprogress/pkg"
)

const (
	EventWorkoutCompleted    = "workout_completed"
	EventOnboardingFinished  = "onboarding_finished"
	EventSubscriptionChanged = "subscription_changed"
)

type progressTracker interface {
	Initialize(ctx context.Context, userID string) (*State, error)
	Get(ctx context.Context, userID string) (*State, error)
	OnWorkoutCompleted(ctx context.Context, userID string, day time.Time, facts Facts) (*State, error)
	OnSubscriptionChanged(ctx context.Context, userID string, premium bool) (*State, error)
}

type InitializeRequest struct {
	UserID string `json:"userId"`
}

type EventRequest struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
	// Premium only matters for subscription_changed events
	Premium bool `json:"premium"`
}

type Handler struct {
	tracker progressTracker
}

func NewHandler(tracker progressTracker) *Handler {
	return &Handler{tracker: tracker}
}

func (handler *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.initialize")
	defer span.End()

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("initialize progress, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	state, err := handler.tracker.Initialize(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to initialize progress for user [%s]: %s", req.UserID, err)
		pkg.WriteJSONError(w, "failed to initialize progress", http.StatusInternalServerError)
		return
	}

	handler.writeState(w, state, http.StatusCreated)
}

func (handler *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.event")
	defer span.End()

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("progress event, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		pkg.WriteJSONError(w, "userId missing", http.StatusBadRequest)
		return
	}

	var (
		state *State
		err   error
	)
	switch req.Type {
	case EventWorkoutCompleted:
		state, err = handler.tracker.OnWorkoutCompleted(ctx, req.UserID, time.Now(), Facts{})
	case EventOnboardingFinished:
		state, err = handler.tracker.Initialize(ctx, req.UserID)
	case EventSubscriptionChanged:
		state, err = handler.tracker.OnSubscriptionChanged(ctx, req.UserID, req.Premium)
	default:
		pkg.WriteJSONError(w, "unknown event type", http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			pkg.WriteJSONError(w, "progress state not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to handle progress event [%s] for user [%s]: %s", req.Type, req.UserID, err)
		pkg.WriteJSONError(w, "failed to handle progress event", http.StatusInternalServerError)
		return
	}

	handler.writeState(w, state, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.get")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	state, err := handler.tracker.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			pkg.WriteJSONError(w, "progress state not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get progress for user [%s]: %s", userID, err)
		pkg.WriteJSONError(w, "failed to get progress", http.StatusInternalServerError)
		return
	}

	handler.writeState(w, state, http.StatusOK)
}

func (handler *Handler) writeState(w http.ResponseWriter, state *State, status int) {
	resp, err := json.Marshal(state)
	if err != nil {
		log.Errorf("failed to marshal progress state: %s", err)
		pkg.WriteJSONError(w, "failed to get progress", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, status)
}
