package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/feedback"
	"github.com/rcliao/calmcompass/internal/model"
	"github.com/rcliao/calmcompass/internal/recommender"
	"github.com/rcliao/calmcompass/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	loader := artifact.FileLoader{Paths: artifact.DefaultPaths(filepath.Join(t.TempDir(), "none"))}
	gate := recommender.NewGate(loader, false, nil)
	s := New(recommender.New(gate, nil), gate, st, nil)
	s.now = func() time.Time { return time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC) }
	return s, st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRecommendFallsBackWithoutModel(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/v1/recommend", `{"phq2_score":5,"gad2_score":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res RecommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, model.SourceRuleBased, res.Source)
	assert.True(t, action.Valid(res.RecommendedAction))
	assert.Equal(t, res.RecommendedAction, res.Action.ID)
	assert.NotEmpty(t, res.Action.Label)
	assert.Equal(t, model.ReasonUnavailable, res.Reason)
}

func TestRecommendBadJSON(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/v1/recommend", `{"phq2_score":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fixedRecommender struct{ got model.CheckInRecord }

func (f *fixedRecommender) Recommend(rec model.CheckInRecord) model.InferenceResult {
	f.got = rec
	return model.InferenceResult{RecommendedAction: action.ShortWalk, Confidence: 0.8, Source: model.SourceModel, ModelVersion: "v9"}
}

type fixedStatus recommender.Status

func (f fixedStatus) Status() recommender.Status { return recommender.Status(f) }

func TestRecommendClipsScores(t *testing.T) {
	rec := &fixedRecommender{}
	s := New(rec, fixedStatus{}, nil, nil)
	w := do(t, s, http.MethodPost, "/api/v1/recommend", `{"phq2_score":9,"gad2_score":-2,"feeling_today":"Stressed","date":"2026-01-02"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, rec.got.PHQ2)
	assert.Equal(t, 6, *rec.got.PHQ2)
	assert.Equal(t, 0, *rec.got.GAD2)
	assert.Equal(t, "Stressed", rec.got.FeelingToday)
	assert.Equal(t, 2026, rec.got.Date.Year())
	assert.Contains(t, w.Body.String(), `"model_version":"v9"`)
}

func TestRecommendLabelsFeelingText(t *testing.T) {
	rec := &fixedRecommender{}
	s := New(rec, fixedStatus{}, nil, nil)
	w := do(t, s, http.MethodPost, "/api/v1/recommend", `{"feeling_text":"so tired, no energy"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "fatigue", rec.got.TextEmotionLabel)
	var res RecommendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "fatigue", res.EmotionLabel)
	assert.NotEmpty(t, res.Explanation)

	w = do(t, s, http.MethodPost, "/api/v1/recommend", `{"feeling_text":"so tired","text_emotion_label":"joy"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "joy", rec.got.TextEmotionLabel)
}

func TestFeedbackAndExport(t *testing.T) {
	s, st := newTestServer(t)

	body := `{"phq2_score":2,"gad2_score":4,"feeling_today":"Anxious","action_suggested":"breathing_60s",
		"action_taken":"breathing","helped":"yes","ml_used":true,"confidence":0.612345}`
	w := do(t, s, http.MethodPost, "/api/v1/feedback", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	recs, err := st.ExportAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, action.Breathing60s, recs[0].ActionTaken)
	assert.Equal(t, model.Yes, recs[0].Helped)
	assert.Equal(t, 0.6123, recs[0].Confidence)
	assert.Equal(t, "2026-04-05", recs[0].Date.Format("2006-01-02"))

	w = do(t, s, http.MethodGet, "/api/v1/feedback/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	b, err := feedback.ReadCSV(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, b.Records, 1)
	assert.Equal(t, action.Breathing60s, b.Records[0].ActionTaken)
}

func TestFeedbackRejectsUnknownAction(t *testing.T) {
	s, _ := newTestServer(t)
	for _, body := range []string{
		`{"action_taken":"meditate","helped":"yes"}`,
		`{"action_taken":"tiny_task","action_suggested":"nap"}`,
		`{"helped":"yes"}`,
	} {
		w := do(t, s, http.MethodPost, "/api/v1/feedback", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

type failingStore struct{}

func (failingStore) AddFeedback(context.Context, model.FeedbackRecord) (*model.FeedbackRecord, error) {
	return nil, errors.New("disk full")
}

func (failingStore) ExportAll(context.Context) ([]model.FeedbackRecord, error) {
	return nil, errors.New("disk full")
}

func TestStoreFailures(t *testing.T) {
	s := New(&fixedRecommender{}, fixedStatus{}, failingStore{}, nil)

	w := do(t, s, http.MethodPost, "/api/v1/feedback", `{"action_taken":"tiny_task"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")

	w = do(t, s, http.MethodGet, "/api/v1/feedback/export", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestModelInfoAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/model", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st recommender.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Enabled)
	assert.False(t, st.Loaded)
	assert.Equal(t, recommender.MinConfidence, st.Threshold)
	assert.NotEmpty(t, st.Error)

	w = do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"model_loaded":false`)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(&fixedRecommender{}, fixedStatus{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
