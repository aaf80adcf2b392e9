package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/TsubakiDev/btr/internal/captcha"
	"github.com/TsubakiDev/btr/internal/manager"
	"github.com/TsubakiDev/btr/internal/observability"
	"github.com/TsubakiDev/btr/internal/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	manager    manager.Manager

	// sessions maps account UID to its shared handle; populated at startup
	// by whatever acquired the cookies.
	sessions map[int64]*session.Handle
	resolver captcha.Resolver
}

type Config struct {
	Port string
}

func NewServer(cfg Config, logger *zap.Logger, mgr manager.Manager, sessions map[int64]*session.Handle, resolver captcha.Resolver) *Server {
	r := mux.NewRouter()

	routeName := func(r *http.Request) string {
		if rt := mux.CurrentRoute(r); rt != nil {
			if tpl, err := rt.GetPathTemplate(); err == nil && tpl != "" {
				return tpl
			}
		}
		return r.URL.Path
	}

	// Middlewares (order matters)
	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware(routeName))
	r.Use(observability.HTTPMetricsMiddleware(routeName))
	r.Use(observability.AccessLogMiddleware(logger, routeName))

	srv := &Server{
		logger:   logger,
		manager:  mgr,
		sessions: sessions,
		resolver: resolver,
	}

	// Metrics
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Health
	r.HandleFunc("/api/v1/health", srv.handleHealth).Methods(http.MethodGet)

	// Tasks
	r.HandleFunc("/api/v1/tasks", srv.handleSubmitGrab).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/tasks", srv.handleListTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tasks/{id}", srv.handleGetTask).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tasks/{id}/cancel", srv.handleCancelTask).Methods(http.MethodPost)

	// Notifications
	r.HandleFunc("/api/v1/notifications", srv.handleSubmitNotify).Methods(http.MethodPost)

	s := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv.httpServer = s
	return srv
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
