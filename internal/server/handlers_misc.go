package server

import (
	"net/http"
	"time"

	"bentoauthz/internal/version"
)

// handleAllPermissions serves GET /all_permissions — the registry is
// loaded once at startup and is immutable, so this is a cheap in-memory
// read with no store round-trip.
func (a *App) handleAllPermissions(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, a.Registry.All())
}

// ServiceInfo mirrors the GA4GH service-info convention: one document
// aggregating identity, version, and subsystem health.
type ServiceInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           ServiceType `json:"type"`
	Description    string `json:"description"`
	Organization   Organization `json:"organization"`
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	StoreReachable bool   `json:"store_reachable"`
}

type ServiceType struct {
	Group    string `json:"group"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

type Organization struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// handleServiceInfo serves GET /service-info.
func (a *App) handleServiceInfo(w http.ResponseWriter, r *http.Request) {
	storeReachable := true
	if _, err := a.Store.Snapshot(r.Context(), time.Now()); err != nil {
		a.Logger.Warn("service-info: store snapshot failed: %v", err)
		storeReachable = false
	}

	info := ServiceInfo{
		ID:          "org.ga4gh.bentoauthz",
		Name:        "Bento Authorization Service",
		Description: "Centralized authorization decision service for a multi-service research platform",
		Type: ServiceType{
			Group:    "org.ga4gh",
			Artifact: "service-registry",
			Version:  "1.0.0",
		},
		Organization: Organization{
			Name: "Bento",
			URL:  a.Config.AuthzServiceURL,
		},
		Version:        version.Version,
		UptimeSeconds:  int64(time.Since(a.StartedAt).Seconds()),
		StoreReachable: storeReachable,
	}
	WriteJSON(w, http.StatusOK, info)
}
