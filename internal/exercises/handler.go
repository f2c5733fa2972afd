package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gymprogress/internal/telemetry/tracing"
	"github.com/2beens/gymprogress/pkg"
)

type exercisesCatalog interface {
	Save(ctx context.Context, in CustomExerciseInput) (*CustomExercise, error)
	List(ctx context.Context, userID string) ([]CustomExercise, error)
	Delete(ctx context.Context, userID, exerciseID string) error
}

type ListResponse struct {
	Exercises []CustomExercise `json:"exercises"`
	Total     int              `json:"total"`
}

type DeleteResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	catalog exercisesCatalog
}

func NewHandler(catalog exercisesCatalog) *Handler {
	return &Handler{catalog: catalog}
}

func (handler *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.save")
	defer span.End()

	var input CustomExerciseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Tracef("save exercise, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	exercise, err := handler.catalog.Save(ctx, input)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to save exercise [%s] for user [%s]: %s", input.Name, input.UserID, err)
		pkg.WriteJSONError(w, "failed to save exercise", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("failed to marshal exercise response: %s", err)
		pkg.WriteJSONError(w, "failed to save exercise", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.list")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	all, err := handler.catalog.List(ctx, userID)
	if err != nil {
		log.Errorf("failed to list exercises for user [%s]: %s", userID, err)
		pkg.WriteJSONError(w, "failed to list exercises", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(ListResponse{
		Exercises: all,
		Total:     len(all),
	})
	if err != nil {
		log.Errorf("failed to marshal exercises response: %s", err)
		pkg.WriteJSONError(w, "failed to list exercises", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.delete")
	defer span.End()

	exerciseID := mux.Vars(r)["id"]
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		pkg.WriteJSONError(w, "user_id missing", http.StatusBadRequest)
		return
	}

	if err := handler.catalog.Delete(ctx, userID, exerciseID); err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			pkg.WriteJSONError(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete exercise [%s] for user [%s]: %s", exerciseID, userID, err)
		pkg.WriteJSONError(w, "failed to delete exercise", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(DeleteResponse{DeletedID: exerciseID})
	if err != nil {
		log.Errorf("failed to marshal delete exercise response: %s", err)
		pkg.WriteJSONError(w, "failed to delete exercise", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}
