package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Config struct {
	Server string
	IsDev  bool
}

type HandlerFunc func(*Context) error

type Server struct {
	Router *mux.Router
	Config *Config
	Log    *zap.Logger
	srv    *http.Server
}

// NewServer creates the router with the built-in middleware and lets
// register add the application routes.
func NewServer(cfg *Config, logger *zap.Logger, register func(*Server)) *Server {
	r := mux.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware())

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := &Context{Context: r.Context(), Request: r, Response: w, logger: logger}
		_ = ctx.Error(http.StatusNotFound, MsgNotFound, nil)
	})

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := &Context{Context: r.Context(), Request: r, Response: w, logger: logger}
		_ = ctx.Error(http.StatusMethodNotAllowed, MsgNotAllowed, nil)
	})

	registerDefaultRoutes(r)

	srv := &Server{
		Router: r,
		Config: cfg,
		Log: logger.With(
			zap.String("component", "transport.rest"),
			zap.String("action", "server"),
		),
	}

	if register != nil {
		register(srv)
	}

	if cfg.IsDev {
		srv.logRoutes()
	}

	return srv
}

// Start serves until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.Config.Server,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.Log.Info("REST/SERVER STARTED", zap.String("addr", s.Config.Server))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			s.Log.Error("REST/SERVER", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.Shutdown(shutdownCtx)
}

// Shutdown stops a started server gracefully, it is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	s.Log.Debug("REST/SERVER Shutting Down")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.Log.Error("REST/SERVER shutdown error", zap.Error(err))
		return err
	}

	s.Log.Debug("REST/SERVER server shut down cleanly")
	return nil
}

func (s *Server) handle(method, path string, handler HandlerFunc, mws []func(http.Handler) http.Handler) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := &Context{
			Context:  r.Context(),
			Request:  r,
			Response: w,
			logger:   s.Log,
		}

		if err := handler(ctx); err != nil {
			_ = ctx.Respond(nil, err)
		}
	})

	s.Router.Handle(path, chainMiddleware(h, mws)).Methods(method)
}

func (s *Server) GET(path string, handler HandlerFunc, mws ...func(http.Handler) http.Handler) {
	s.handle(http.MethodGet, path, handler, mws)
}
func (s *Server) POST(path string, handler HandlerFunc, mws ...func(http.Handler) http.Handler) {
	s.handle(http.MethodPost, path, handler, mws)
}
func (s *Server) PATCH(path string, handler HandlerFunc, mws ...func(http.Handler) http.Handler) {
	s.handle(http.MethodPatch, path, handler, mws)
}
func (s *Server) DELETE(path string, handler HandlerFunc, mws ...func(http.Handler) http.Handler) {
	s.handle(http.MethodDelete, path, handler, mws)
}

func (s *Server) logRoutes() {
	_ = s.Router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		path, _ := route.GetPathTemplate()
		methods, _ := route.GetMethods()

		for _, m := range methods {
			s.Log.Debug("REST/ROUTE", zap.String("method", m), zap.String("path", path))
		}
		return nil
	})
}

func registerDefaultRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}
