package progress_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/gymprogress/internal/progress"
	"github.com/2beens/gymprogress/internal/store"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerTestRouter() (*mux.Router, *progress.Tracker) {
	tracker := progress.NewTracker(store.NewMemory(), &spyNotifier{})
	handler := progress.NewHandler(tracker)

	r := mux.NewRouter()
	r.HandleFunc("/progress/initialize", handler.HandleInitialize).Methods("POST")
	r.HandleFunc("/progress/events", handler.HandleEvent).Methods("POST")
	r.HandleFunc("/progress", handler.HandleGet).Methods("GET")
	return r, tracker
}

func postJSON(t *testing.T, router *mux.Router, url string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", url, bytes.NewReader(body))
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Initialize(t *testing.T) {
	router, _ := newHandlerTestRouter()

	rr := postJSON(t, router, "/progress/initialize", progress.InitializeRequest{UserID: "u1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var st progress.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, progress.OnboardingBonusXP, st.TotalXP)
	assert.Equal(t, 1, st.Level)

	rr = postJSON(t, router, "/progress/initialize", progress.InitializeRequest{UserID: ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_GetProgress(t *testing.T) {
	router, _ := newHandlerTestRouter()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/progress?user_id=ghost", nil)
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/progress", nil)
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	postJSON(t, router, "/progress/initialize", progress.InitializeRequest{UserID: "u1"})

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/progress?user_id=u1", nil)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var st progress.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "u1", st.UserID)
}

func TestHandler_Events(t *testing.T) {
	router, _ := newHandlerTestRouter()

	postJSON(t, router, "/progress/initialize", progress.InitializeRequest{UserID: "u1"})

	rr := postJSON(t, router, "/progress/events", progress.EventRequest{
		UserID: "u1",
		Type:   progress.EventWorkoutCompleted,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var st progress.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, progress.OnboardingBonusXP+progress.WorkoutXP, st.TotalXP)
	assert.Equal(t, 1, st.StreakDays)

	rr = postJSON(t, router, "/progress/events", progress.EventRequest{
		UserID:  "u1",
		Type:    progress.EventSubscriptionChanged,
		Premium: true,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, progress.OnboardingBonusXP+progress.WorkoutXP+progress.PremiumBonusXP, st.TotalXP)
}

func TestHandler_Events_BadRequest(t *testing.T) {
	router, _ := newHandlerTestRouter()

	rr := postJSON(t, router, "/progress/events", progress.EventRequest{UserID: "u1", Type: "made-up"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, router, "/progress/events", progress.EventRequest{Type: progress.EventWorkoutCompleted})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Events_UntrackedUser(t *testing.T) {
	router, _ := newHandlerTestRouter()

	rr := postJSON(t, router, "/progress/events", progress.EventRequest{
		UserID: "ghost",
		Type:   progress.EventWorkoutCompleted,
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
