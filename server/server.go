package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/captain/internal/profile"
	apiv1 "github.com/hrygo/captain/server/router/api/v1"
)

// maxBodySize caps /analyze payloads; tasks are short chat messages.
const maxBodySize = "1M"

type Server struct {
	Profile *profile.Profile
	Runtime *apiv1.Runtime

	echoServer *echo.Echo
	listener   net.Listener
}

func NewServer(_ context.Context, profile *profile.Profile, rt *apiv1.Runtime) (*Server, error) {
	s := &Server{
		Profile: profile,
		Runtime: rt,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.ErrorContext(c.Request().Context(), "HTTP request", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.InfoContext(c.Request().Context(), "HTTP request", attrs...)
			return nil
		},
	}))
	echoServer.Use(middleware.BodyLimit(maxBodySize))
	s.echoServer = echoServer

	apiV1Service := apiv1.NewAPIV1Service(profile, rt)
	apiV1Service.RegisterRoutes(echoServer)

	return s, nil
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	address := s.Profile.ListenAddr()
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()

	slog.Info("Analysis service listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	// Waits for in-flight analyze requests up to the deadline.
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("captain stopped properly")
}
