package exercises_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/gymprogress/internal/exercises"
	"github.com/2beens/gymprogress/internal/store"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerTestRouter() *mux.Router {
	handler := exercises.NewHandler(exercises.NewCatalog(store.NewMemory()))

	r := mux.NewRouter()
	r.HandleFunc("/gym/exercises", handler.HandleSave).Methods("POST")
	r.HandleFunc("/gym/exercises", handler.HandleList).Methods("GET")
	r.HandleFunc("/gym/exercises/{id}", handler.HandleDelete).Methods("DELETE")
	return r
}

func saveExercise(t *testing.T, router *mux.Router, input exercises.CustomExerciseInput) exercises.CustomExercise {
	t.Helper()

	body, err := json.Marshal(input)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/gym/exercises", bytes.NewReader(body))
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var saved exercises.CustomExercise
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))
	return saved
}

func TestHandler_SaveAndList(t *testing.T) {
	router := newHandlerTestRouter()

	saved := saveExercise(t, router, exercises.CustomExerciseInput{
		UserID:      "u1",
		Name:        "zercher squat",
		MuscleGroup: "legs",
	})
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	saveExercise(t, router, exercises.CustomExerciseInput{UserID: "u1", Name: "arnold press"})
	saveExercise(t, router, exercises.CustomExerciseInput{UserID: "u2", Name: "pistol squat"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/gym/exercises?user_id=u1", nil)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp exercises.ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	// sorted by name
	assert.Equal(t, "arnold press", resp.Exercises[0].Name)
	assert.Equal(t, "zercher squat", resp.Exercises[1].Name)
}

func TestHandler_Save_Invalid(t *testing.T) {
	router := newHandlerTestRouter()

	body, err := json.Marshal(exercises.CustomExerciseInput{UserID: "u1"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/gym/exercises", bytes.NewReader(body))
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestHandler_Delete(t *testing.T) {
	router := newHandlerTestRouter()

	saved := saveExercise(t, router, exercises.CustomExerciseInput{UserID: "u1", Name: "landmine row"})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", fmt.Sprintf("/gym/exercises/%s?user_id=u1", saved.ID), nil)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp exercises.DeleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, saved.ID, resp.DeletedID)

	// gone now
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", fmt.Sprintf("/gym/exercises/%s?user_id=u1", saved.ID), nil)
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
