// Package api serves n-gram scoring over HTTP.
package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

type Server struct {
	service *ScoringService
	limiter *rate.Limiter
}

// ServerConfig tunes request admission. A zero RequestsPerSecond disables
// rate limiting.
type ServerConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func NewServer(service *ScoringService, cfg ServerConfig) *Server {
	s := &Server{service: service}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(int(cfg.RequestsPerSecond), 1)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	v1 := e.Group("/v1", s.rateLimit)
	v1.POST("/score", s.handleScore)
	v1.POST("/score/batch", s.handleScoreBatch)
	v1.GET("/models", s.handleListModels)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many requests", "", "rate_limited")
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScore(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "scoring service not configured", "", "")
	}
	req, err := decodeJSON[ScoreRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}
	if len(req.Words) == 0 && req.Text == "" {
		return writeBadRequest(c, "words or text is required", "words")
	}
	resp, err := s.service.Score(c.Request().Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleScoreBatch(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "scoring service not configured", "", "")
	}
	req, err := decodeJSON[BatchScoreRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}
	resp, err := s.service.ScoreBatch(c.Request().Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListModels(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "scoring service not configured", "", "")
	}
	names, err := s.service.ListModels()
	if err != nil {
		return writeServiceError(c, err)
	}
	list := ModelList{Object: "list", Data: make([]ModelObject, 0, len(names))}
	for _, name := range names {
		list.Data = append(list.Data, ModelObject{ID: name, Object: "model"})
	}
	return c.JSON(http.StatusOK, list)
}
