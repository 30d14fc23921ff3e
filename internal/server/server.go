// Package server exposes the engine over a small JSON API. Requests never
// reach a human: fallbacks that need one resolve to UNAVAILABLE.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/answers"
	"github.com/spigell/formfill/internal/engine"
	"github.com/spigell/formfill/internal/logger"
	"github.com/spigell/formfill/internal/profile"
	"github.com/spigell/formfill/internal/prompt"
)

const shutdownTimeout = 10 * time.Second

// Reloader re-reads the vocabulary and hands it to the engine.
type Reloader func() error

type Server struct {
	engine   *engine.Engine
	profiles *profile.Set
	reload   Reloader
	logger   *zap.Logger
	echo     *echo.Echo
	started  time.Time
}

// New wires the routes. profiles and reload may be nil.
func New(eng *engine.Engine, profiles *profile.Set, reload Reloader, log *zap.Logger) *Server {
	s := &Server{
		engine:   eng,
		profiles: profiles,
		reload:   reload,
		logger:   logger.WithFields(log, zap.String("component", "server")),
		echo:     echo.New(),
		started:  time.Now(),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Debug("request handled", fields...)
			return nil
		},
	}))

	s.echo.POST("/resolve", s.handleResolve)
	s.echo.GET("/answers/:category", s.handleListAnswers)
	s.echo.DELETE("/answers/:category", s.handleClearAnswers)
	s.echo.POST("/admin/reload", s.handleReload)
	s.echo.GET("/health", s.handleHealth)

	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errs := make(chan error, 1)
	go func() {
		errs <- s.echo.Start(addr)
	}()

	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

type resolveRequest struct {
	Category string   `json:"category"`
	Question string   `json:"question"`
	Profile  string   `json:"profile"`
	Options  []string `json:"options"`
}

type resolveResponse struct {
	engine.Result
	Category  answers.Category `json:"category"`
	RequestID string           `json:"request_id"`
}

func (s *Server) handleResolve(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	category, err := answers.ParseCategory(req.Category)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	active, err := s.selectProfile(req.Profile)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := s.engine.Resolve(c.Request().Context(), engine.Request{
		Category: category,
		Question: req.Question,
		Profile:  active,
		Options:  req.Options,
		Prompter: prompt.None{},
	})
	switch {
	case errors.Is(err, engine.ErrEmptyQuestion), errors.Is(err, answers.ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}

	return c.JSON(http.StatusOK, resolveResponse{
		Result:    result,
		Category:  category,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	})
}

// selectProfile returns nil when no profile is configured and none was asked for.
func (s *Server) selectProfile(name string) (*profile.Profile, error) {
	if s.profiles == nil || s.profiles.Len() == 0 {
		if name == "" {
			return nil, nil
		}
		return nil, profile.ErrNoProfiles
	}
	return s.profiles.Select(name)
}

func (s *Server) store(c echo.Context) (*answers.Store, error) {
	category, err := answers.ParseCategory(c.Param("category"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	store, err := s.engine.Store(category)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return store, nil
}

func (s *Server) handleListAnswers(c echo.Context) error {
	store, err := s.store(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"category": store.Category(),
		"answers":  store.Records(),
	})
}

func (s *Server) handleClearAnswers(c echo.Context) error {
	store, err := s.store(c)
	if err != nil {
		return err
	}

	cleared := store.Len()
	if err := store.Clear(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "clearing answers failed").SetInternal(err)
	}

	s.logger.Info("answers cleared", zap.String(logger.FieldCategory, string(store.Category())), zap.Int("count", cleared))

	return c.JSON(http.StatusOK, map[string]any{
		"category": store.Category(),
		"cleared":  cleared,
	})
}

func (s *Server) handleReload(c echo.Context) error {
	if s.reload == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "vocabulary reload is not configured")
	}

	if err := s.reload(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":     "vocabulary reloaded",
		"reloaded_at": time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}
