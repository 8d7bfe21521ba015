package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bentoauthz/internal/apierr"
	"bentoauthz/internal/model"
)

type groupRequest struct {
	Name       string           `json:"name"`
	Membership model.Membership `json:"membership"`
	Expiry     *time.Time       `json:"expiry,omitempty"`
}

// handleListGroups serves GET /groups.
func (a *App) handleListGroups(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:groups"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	groups, err := a.Store.ListGroups(r.Context())
	if err != nil {
		WriteError(w, mapStoreErr(err, "list groups"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, groups)
}

// handleCreateGroup serves POST /groups.
func (a *App) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:groups"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	if req.Name == "" {
		WriteError(w, apierr.New(apierr.Validation, "group name must not be empty"), a.Config.Debug)
		return
	}
	if err := req.Membership.Validate(); err != nil {
		WriteError(w, apierr.Wrap(apierr.Validation, "invalid membership", err), a.Config.Debug)
		return
	}

	created, err := a.Store.CreateGroup(r.Context(), model.Group{
		Name:       req.Name,
		Membership: req.Membership,
		Expiry:     req.Expiry,
	})
	if err != nil {
		WriteError(w, mapStoreErr(err, "create group"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, created)
}

// handleGetGroup serves GET /groups/{id}.
func (a *App) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:groups"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	group, err := a.Store.GetGroup(r.Context(), id)
	if err != nil {
		WriteError(w, mapStoreErr(err, "get group"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, group)
}

// handleUpdateGroup serves PUT /groups/{id} — groups, unlike grants, may
// be renamed or have membership edited in place.
func (a *App) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:groups"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	if req.Name == "" {
		WriteError(w, apierr.New(apierr.Validation, "group name must not be empty"), a.Config.Debug)
		return
	}
	if err := req.Membership.Validate(); err != nil {
		WriteError(w, apierr.Wrap(apierr.Validation, "invalid membership", err), a.Config.Debug)
		return
	}

	updated, err := a.Store.UpdateGroup(r.Context(), model.Group{
		ID:         id,
		Name:       req.Name,
		Membership: req.Membership,
		Expiry:     req.Expiry,
	})
	if err != nil {
		WriteError(w, mapStoreErr(err, "update group"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, updated)
}

// handleDeleteGroup serves DELETE /groups/{id}. Referential integrity
// (invariant 4) is enforced by the store: deletion fails with Conflict if
// any grant still references the group.
func (a *App) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if err := a.authorize(r.Context(), subject, everythingResource, "edit:groups"); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	if err := a.Store.DeleteGroup(r.Context(), id); err != nil {
		WriteError(w, mapStoreErr(err, "delete group"), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, id)
}
