// Package gym exposes the workout HTTP surface: the session ledger
// endpoints, analytics and personal records. Creating a session fans out
// to the aggregate engine and the progress tracker; reads go straight to
// the owning service.
package gym

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gymprogress/internal/aggregate"
	"github.com/2beens/gymprogress/internal/ledger"
	"github.com/2beens/gymprogress/internal/progress"
	"github.com/2beens/gymprogress/internal/telemetry/metrics"
	"github.com/2beens/gymprogress/internal/telemetry/tracing"
	"github.com/2beens/gymprogress/pkg"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

type sessionLedger interface {
	Append(ctx context.Context, in ledger.SessionInput) (*ledger.ExerciseSession, error)
	ListByUser(ctx context.Context, userID, exerciseID string, limit int) ([]ledger.ExerciseSession, error)
	Delete(ctx context.Context, userID, sessionID string) (*ledger.ExerciseSession, error)
}

type statsEngine interface {
	RecordSession(ctx context.Context, s ledger.ExerciseSession) (newRecord bool, totalSessions int, err error)
	Rebuild(ctx context.Context, userID, exerciseID string) error
	Analytics(ctx context.Context, userID string, windowDays int) (*aggregate.Analytics, error)
	PersonalRecords(ctx context.Context, userID string) (map[string]aggregate.RecordView, error)
}

type progressTracker interface {
	OnWorkoutCompleted(ctx context.Context, userID string, day time.Time, facts progress.Facts) (*progress.State, error)
}

type NewSessionResponse struct {
	Session       ledger.ExerciseSession `json:"session"`
	NewRecord     bool                   `json:"newRecord"`
	TotalSessions int                    `json:"totalSessions"`
}

type ListSessionsResponse struct {
	Sessions []ledger.ExerciseSession `json:"sessions"`
	Total    int                      `json:"total"`
}

type DeleteSessionResponse struct {
	DeletedID string `json:"deletedId"`
}

type RecordsResponse struct {
	Records map[string]aggregate.RecordView `json:"records"`
}

type Handler struct {
	ledger  sessionLedger
	stats   statsEngine
	tracker progressTracker
	metrics *metrics.Manager
}

func NewHandler(
	sessions sessionLedger,
	stats statsEngine,
	tracker progressTracker,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		ledger:  sessions,
		stats:   stats,
		tracker: tracker,
		metrics: metricsManager,
	}
}

func (handler *Handler) HandleNewSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gym.newSession")
	defer span.End()

	var input ledger.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Tracef("new session, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := handler.ledger.Append(ctx, input)
	if err != nil {
		if errors.Is(err, ledger.ErrValidation) {
			pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to append session for user [%s]: %s", input.UserID, err)
		pkg.WriteJSONError(w, "failed to store session", http.StatusInternalServerError)
		return
	}

	newRecord, totalSessions, err := handler.stats.RecordSession(ctx, *session)
	if err != nil {
		log.Errorf("failed to update aggregate for [%s] [%s]: %s", session.UserID, session.ExerciseID, err)
		pkg.WriteJSONError(w, "failed to update exercise stats", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSessions.Inc()

	// gamification is downstream of the facts, a tracker error must not
	// fail the request that already persisted the session
	if _, err := handler.tracker.OnWorkoutCompleted(ctx, session.UserID, session.Date, progress.Facts{
		TotalSessions: totalSessions,
		NewRecord:     newRecord,
	}); err != nil {
		log.Warnf("failed to track workout for user [%s]: %s", session.UserID, err)
	}

	resp, err := json.Marshal(NewSessionResponse{
		Session:       *session,
		NewRecord:     newRecord,
		TotalSessions: totalSessions,
	})
	if err != nil {
		log.Errorf("failed to marshal new session response: %s", err)
		pkg.WriteJSONError(w, "failed to store session", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusCreated)
}

func (handler *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gym.listSessions")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			pkg.WriteJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	sessions, err := handler.ledger.ListByUser(ctx, userID, r.URL.Query().Get("exercise_id"), limit)
	if err != nil {
		log.Errorf("failed to list sessions for user [%s]: %s", userID, err)
		pkg.WriteJSONError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(ListSessionsResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
	if err != nil {
		log.Errorf("failed to marshal sessions response: %s", err)
		pkg.WriteJSONError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gym.deleteSession")
	defer span.End()

	sessionID := mux.Vars(r)["id"]
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	deleted, err := handler.ledger.Delete(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, ledger.ErrSessionNotFound) {
			pkg.WriteJSONError(w, "session not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete session [%s] for user [%s]: %s", sessionID, userID, err)
		pkg.WriteJSONError(w, "failed to delete session", http.StatusInternalServerError)
		return
	}

	if err := handler.stats.Rebuild(ctx, userID, deleted.ExerciseID); err != nil {
		log.Errorf("failed to rebuild aggregate for [%s] [%s]: %s", userID, deleted.ExerciseID, err)
		pkg.WriteJSONError(w, "failed to rebuild exercise stats", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(DeleteSessionResponse{DeletedID: sessionID})
	if err != nil {
		log.Errorf("failed to marshal delete session response: %s", err)
		pkg.WriteJSONError(w, "failed to delete session", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gym.analytics")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	days := defaultAnalyticsDays
	if timeframeStr := r.URL.Query().Get("timeframe"); timeframeStr != "" {
		parsed, err := strconv.Atoi(timeframeStr)
		if err != nil || parsed < 1 || parsed > maxAnalyticsDays {
			pkg.WriteJSONError(w, "invalid timeframe", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	analytics, err := handler.stats.Analytics(ctx, userID, days)
	if err != nil {
		log.Errorf("failed to compute analytics for user [%s]: %s", userID, err)
		pkg.WriteJSONError(w, "failed to compute analytics", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(analytics)
	if err != nil {
		log.Errorf("failed to marshal analytics response: %s", err)
		pkg.WriteJSONError(w, "failed to compute analytics", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gym.records")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	records, err := handler.stats.PersonalRecords(ctx, userID)
	if err != nil {
		log.Errorf("failed to get records for user [%s]: %s", userID, err)
		pkg.WriteJSONError(w, "failed to get records", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(RecordsResponse{Records: records})
	if err != nil {
		log.Errorf("failed to marshal records response: %s", err)
		pkg.WriteJSONError(w, "failed to get records", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}
