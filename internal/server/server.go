package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bentoauthz/internal/constants"
)

// Server owns the HTTP listener and the graceful-shutdown lifecycle, with
// signal-driven shutdown and a go-chi/chi router whose URLParam support
// fits the id-addressed grant/group routes.
type Server struct {
	app        *App
	httpServer *http.Server
}

// NewServer builds the router and wires every route of the HTTP surface.
func NewServer(app *App, addr string) *Server {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(middleware.Timeout(constants.DefaultRequestTimeout))
	r.Use(app.CORS)
	r.Use(app.Authenticate)

	r.Post("/policy/evaluate", app.handleEvaluate)
	r.Post("/policy/evaluate_one", app.handleEvaluateOne)
	r.Post("/policy/permissions", app.handlePermissions)

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", app.handleListGroups)
		r.Post("/", app.handleCreateGroup)
		r.Get("/{id}", app.handleGetGroup)
		r.Put("/{id}", app.handleUpdateGroup)
		r.Delete("/{id}", app.handleDeleteGroup)
	})

	r.Route("/grants", func(r chi.Router) {
		r.Get("/", app.handleListGrants)
		r.Post("/", app.handleCreateGrant)
		r.Get("/{id}", app.handleGetGrant)
		r.Delete("/{id}", app.handleDeleteGrant)
	})

	r.Get("/all_permissions", app.handleAllPermissions)
	r.Get("/service-info", app.handleServiceInfo)

	return &Server{
		app: app,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

// Start runs the HTTP server until a SIGINT/SIGTERM is received, then
// drains in-flight requests and closes the store before returning. The
// JWKS cache and the decision logger's database handle are not closed here.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.app.Logger.Info("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.app.Logger.Info("received signal %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeoutSecs*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := s.app.Store.Close(); err != nil {
		s.app.Logger.Warn("error closing store: %v", err)
	}
	return nil
}
