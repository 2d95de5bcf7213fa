package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/emotion"
	"github.com/rcliao/calmcompass/internal/feedback"
	"github.com/rcliao/calmcompass/internal/model"
	"github.com/rcliao/calmcompass/internal/store"
)

const dateLayout = "2006-01-02"

// CheckInRequest is the JSON form of a check-in. Scores outside 0-6 are
// clipped. FeelingText is labelled into TextEmotionLabel when no label is given.
type CheckInRequest struct {
	Date             string `json:"date"`
	FeelingText      string `json:"feeling_text"`
	PHQ2             *int   `json:"phq2_score"`
	GAD2             *int   `json:"gad2_score"`
	FeelingToday     string `json:"feeling_today"`
	WorkloadStress   string `json:"workload_stress"`
	NeedMost         string `json:"need_most"`
	TextEmotionLabel string `json:"text_emotion_label"`
}

func (r CheckInRequest) record() model.CheckInRecord {
	c := model.CheckInRecord{
		FeelingToday:     r.FeelingToday,
		WorkloadStress:   r.WorkloadStress,
		NeedMost:         r.NeedMost,
		TextEmotionLabel: r.TextEmotionLabel,
	}
	if r.PHQ2 != nil {
		c.PHQ2 = model.Score(model.ClipScore(*r.PHQ2))
	}
	if r.GAD2 != nil {
		c.GAD2 = model.Score(model.ClipScore(*r.GAD2))
	}
	if t, err := time.Parse(dateLayout, r.Date); err == nil {
		c.Date = t
	}
	if c.TextEmotionLabel == "" {
		if l, ok := emotion.Detect(r.FeelingText); ok {
			c.TextEmotionLabel = string(l)
		}
	}
	return c
}

// RecommendResponse is the result plus the display form of the action.
type RecommendResponse struct {
	model.InferenceResult
	Action       action.Action `json:"action"`
	EmotionLabel string        `json:"text_emotion_label,omitempty"`
	Explanation  string        `json:"explanation,omitempty"`
}

// FeedbackRequest records what was done after a recommendation.
type FeedbackRequest struct {
	CheckInRequest
	ActionSuggested string  `json:"action_suggested"`
	ActionTaken     string  `json:"action_taken" binding:"required"`
	Helped          string  `json:"helped"`
	MLUsed          bool    `json:"ml_used"`
	Confidence      float64 `json:"confidence"`
}

// Recommend handles POST /api/v1/recommend.
func (s *Server) Recommend(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := req.record()
	res := s.rec.Recommend(rec)
	a, _ := action.Lookup(res.RecommendedAction)
	out := RecommendResponse{InferenceResult: res, Action: a}
	if rec.TextEmotionLabel != "" {
		out.EmotionLabel = rec.TextEmotionLabel
		out.Explanation = emotion.Explain(emotion.Label(rec.TextEmotionLabel))
	}
	c.JSON(http.StatusOK, out)
}

// AddFeedback handles POST /api/v1/feedback.
func (s *Server) AddFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taken, err := action.Parse(req.ActionTaken)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var suggested action.ID
	if req.ActionSuggested != "" {
		if suggested, err = action.Parse(req.ActionSuggested); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	checkIn := req.record()
	date := checkIn.Date
	if date.IsZero() {
		date = s.now()
	}
	row := feedback.BuildRow(checkIn, suggested, taken, req.Helped, req.MLUsed, req.Confidence, date)

	saved, err := s.store.AddFeedback(c.Request.Context(), row)
	if errors.Is(err, store.ErrInvalidFeedback) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("failed to store feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store feedback"})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// ExportFeedback streams every stored record in the training CSV layout.
func (s *Server) ExportFeedback(c *gin.Context) {
	recs, err := s.store.ExportAll(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to export feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=coping_feedback.csv")
	if err := feedback.WriteCSV(c.Writer, recs); err != nil {
		s.logger.Error("failed to write feedback csv", zap.Error(err))
	}
}

// ModelInfo handles GET /api/v1/model.
func (s *Server) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Status())
}

// HealthCheck always succeeds: a missing model only means rule-based answers.
func (s *Server) HealthCheck(c *gin.Context) {
	st := s.status.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"ml_enabled":   st.Enabled,
		"model_loaded": st.Loaded,
	})
}
