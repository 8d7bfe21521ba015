package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bentoauthz/internal/apierr"
	"bentoauthz/internal/model"
	"bentoauthz/internal/store"
)

type createGrantRequest struct {
	SubjectPattern  model.SubjectPattern  `json:"subject_pattern"`
	ResourcePattern model.ResourcePattern `json:"resource_pattern"`
	Permission      model.Permission      `json:"permission"`
	Extra           json.RawMessage       `json:"extra,omitempty"`
	Expiry          *time.Time            `json:"expiry,omitempty"`
	Negated         bool                  `json:"negated"`
}

// handleListGrants serves GET /grants.
func (a *App) handleListGrants(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:permissions"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	grants, err := a.Store.ListGrants(r.Context())
	if err != nil {
		WriteError(w, apierr.Wrap(apierr.StoreUnavailable, "list grants", err), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, grants)
}

// handleCreateGrant serves POST /grants.
func (a *App) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:permissions"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	var req createGrantRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	if err := req.SubjectPattern.Validate(); err != nil {
		WriteError(w, apierr.Wrap(apierr.Validation, "invalid subject pattern", err), a.Config.Debug)
		return
	}
	if err := req.ResourcePattern.Validate(); err != nil {
		WriteError(w, apierr.Wrap(apierr.Validation, "invalid resource pattern", err), a.Config.Debug)
		return
	}
	if err := a.Registry.ValidateGrant(req.Permission, req.ResourcePattern); err != nil {
		WriteError(w, apierr.Wrap(apierr.Validation, "grant rejected by registry", err), a.Config.Debug)
		return
	}

	grant := model.Grant{
		SubjectPattern:  req.SubjectPattern,
		ResourcePattern: req.ResourcePattern,
		Permission:      req.Permission,
		Extra:           req.Extra,
		Expiry:          req.Expiry,
		Negated:         req.Negated,
	}

	created, err := a.Store.CreateGrant(r.Context(), grant)
	if err != nil {
		WriteError(w, mapStoreErr(err, "create grant"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, created)
}

// handleGetGrant serves GET /grants/{id}.
func (a *App) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:permissions"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	grant, err := a.Store.GetGrant(r.Context(), id)
	if err != nil {
		WriteError(w, mapStoreErr(err, "get grant"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, grant)
}

// handleDeleteGrant serves DELETE /grants/{id}.
func (a *App) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:permissions"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	if err := a.Store.DeleteGrant(r.Context(), id); err != nil {
		WriteError(w, mapStoreErr(err, "delete grant"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, id)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apierr.Wrap(apierr.Validation, "malformed id", err)
	}
	return id, nil
}

func mapStoreErr(err error, action string) error {
	switch {
	case err == store.ErrNotFound:
		return apierr.Wrap(apierr.NotFound, action, err)
	case err == store.ErrConflict:
		return apierr.Wrap(apierr.Conflict, action, err)
	default:
		return apierr.Wrap(apierr.StoreUnavailable, action, err)
	}
}
