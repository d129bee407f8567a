// Package server exposes the run's progress over HTTP so external
// consumers (TUIs, dashboards) can poll without touching the orchestrator.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nordlicht-labs/corpusgraph/internal/pipeline"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
)

// ProgressServer serves the latest pipeline progress snapshot.
//
// A ProgressServer should be created using NewProgressServer.
type ProgressServer struct {
	echo    *echo.Echo
	tracker *pipeline.Tracker
	addr    string
}

// NewProgressServer builds the server around a tracker that the pipeline
// publishes into.
func NewProgressServer(tracker *pipeline.Tracker, addr string) *ProgressServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &ProgressServer{
		echo:    e,
		tracker: tracker,
		addr:    addr,
	}

	e.GET("/progress", s.getProgress)
	e.GET("/healthz", s.getHealth)

	return s
}

func (s *ProgressServer) getProgress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.Latest())
}

func (s *ProgressServer) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start serves in the background until the context is cancelled, then
// shuts down gracefully.
func (s *ProgressServer) Start(ctx context.Context) {
	go func() {
		logger.Info("Progress endpoint listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Progress endpoint failed", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			logger.Error("Progress endpoint shutdown failed", "err", err)
		}
	}()
}
