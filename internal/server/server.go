// Package server exposes the recommender and feedback capture over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/model"
	"github.com/rcliao/calmcompass/internal/recommender"
)

// Recommender resolves an action for a check-in.
type Recommender interface {
	Recommend(rec model.CheckInRecord) model.InferenceResult
}

// ModelStatus reports what model, if any, is being served.
type ModelStatus interface {
	Status() recommender.Status
}

// FeedbackStore persists and exports feedback.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, r model.FeedbackRecord) (*model.FeedbackRecord, error)
	ExportAll(ctx context.Context) ([]model.FeedbackRecord, error)
}

// Server wires the HTTP handlers onto a gin engine.
type Server struct {
	rec    Recommender
	status ModelStatus
	store  FeedbackStore
	logger *zap.Logger
	engine *gin.Engine
	now    func() time.Time
}

// New builds a Server with its routes registered.
func New(rec Recommender, status ModelStatus, store FeedbackStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		rec:    rec,
		status: status,
		store:  store,
		logger: logger,
		now:    time.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(s.engine)
	return s
}

// RegisterRoutes registers all API routes.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/recommend", s.Recommend)
		api.POST("/feedback", s.AddFeedback)
		api.GET("/feedback/export", s.ExportFeedback)
		api.GET("/model", s.ModelInfo)
	}
	r.GET("/health", s.HealthCheck)
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
