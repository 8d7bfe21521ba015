// Package server implements the HTTP surface: request parsing,
// authentication wiring, and response shaping over the policy core. Keeps
// an App/Server split with a chi middleware stack (Router.Use), serving
// the grant/group/policy surface.
package server

import (
	"time"

	"bentoauthz/internal/config"
	"bentoauthz/internal/decisionlog"
	"bentoauthz/internal/logging"
	"bentoauthz/internal/policy"
	"bentoauthz/internal/registry"
	"bentoauthz/internal/store"
	"bentoauthz/internal/token"
)

// App holds every dependency a handler might need, constructed once at
// startup and passed by reference into the router.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Store     store.Store
	Registry  *registry.Registry
	Engine    *policy.Engine
	Verifier  *token.Verifier
	Decisions *decisionlog.Logger
	StartedAt time.Time
}

// NewApp wires the dependency graph. verifier may be nil when
// DisableTokenVerification is set, in which case requests carry trusted
// claims straight from the decoded (unverified) token.
func NewApp(cfg *config.Config, log *logging.Logger, st store.Store, reg *registry.Registry, verifier *token.Verifier, decisions *decisionlog.Logger) *App {
	return &App{
		Config:    cfg,
		Logger:    log,
		Store:     st,
		Registry:  reg,
		Engine:    policy.New(st, reg, nil, cfg.IsSuperuser),
		Verifier:  verifier,
		Decisions: decisions,
		StartedAt: time.Now(),
	}
}
