package server

import (
	"encoding/json"
	"net/http"
	"time"

	"bentoauthz/internal/apierr"
	"bentoauthz/internal/decisionlog"
	"bentoauthz/internal/model"
)

type evaluateRequest struct {
	Resources   []model.ResourcePattern `json:"resources"`
	Permissions []model.Permission      `json:"permissions"`
}

// handleEvaluate serves POST /policy/evaluate.
func (a *App) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	for _, res := range req.Resources {
		if !res.IsRequestable() {
			WriteError(w, apierr.New(apierr.Validation, "requested resource must not be Everything"), a.Config.Debug)
			return
		}
	}

	subject := SubjectFromContext(r.Context())
	decisions, err := a.Engine.Evaluate(r.Context(), subject, req.Resources, req.Permissions)
	if err != nil {
		WriteError(w, apierr.Wrap(apierr.StoreUnavailable, "evaluation failed", err), a.Config.Debug)
		return
	}

	result := make([][]bool, len(decisions))
	matched := make([][][]int64, len(decisions))
	for i, row := range decisions {
		result[i] = make([]bool, len(row))
		matched[i] = make([][]int64, len(row))
		for j, d := range row {
			result[i][j] = d.Allowed
			matched[i][j] = d.MatchedGrants
		}
	}

	a.logDecision(r, subject, req.Resources, req.Permissions, result, matched)
	WriteSuccess(w, http.StatusOK, result)
}

type evaluateOneRequest struct {
	Resource   model.ResourcePattern `json:"resource"`
	Permission model.Permission      `json:"permission"`
}

// handleEvaluateOne serves POST /policy/evaluate_one.
func (a *App) handleEvaluateOne(w http.ResponseWriter, r *http.Request) {
	var req evaluateOneRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	if !req.Resource.IsRequestable() {
		WriteError(w, apierr.New(apierr.Validation, "requested resource must not be Everything"), a.Config.Debug)
		return
	}

	subject := SubjectFromContext(r.Context())
	decision, err := a.Engine.EvaluateOne(r.Context(), subject, req.Resource, req.Permission)
	if err != nil {
		WriteError(w, apierr.Wrap(apierr.StoreUnavailable, "evaluation failed", err), a.Config.Debug)
		return
	}

	a.logDecision(r, subject,
		[]model.ResourcePattern{req.Resource}, []model.Permission{req.Permission},
		[][]bool{{decision.Allowed}}, [][][]int64{{decision.MatchedGrants}})
	WriteSuccess(w, http.StatusOK, decision.Allowed)
}

type permissionsRequest struct {
	Resources []model.ResourcePattern `json:"resources"`
}

// handlePermissions serves POST /policy/permissions.
func (a *App) handlePermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, a.Config.Debug)
		return
	}
	for _, res := range req.Resources {
		if !res.IsRequestable() {
			WriteError(w, apierr.New(apierr.Validation, "requested resource must not be Everything"), a.Config.Debug)
			return
		}
	}

	subject := SubjectFromContext(r.Context())
	result, err := a.Engine.PermissionsFor(r.Context(), subject, req.Resources)
	if err != nil {
		WriteError(w, apierr.Wrap(apierr.StoreUnavailable, "evaluation failed", err), a.Config.Debug)
		return
	}
	WriteSuccess(w, http.StatusOK, result)
}

func (a *App) logDecision(r *http.Request, subject model.ResolvedSubject, resources []model.ResourcePattern, permissions []model.Permission, result [][]bool, matched [][][]int64) {
	a.Decisions.Log(r.Context(), decisionlog.Record{
		Timestamp:            time.Now(),
		CallerIssuer:         subject.Issuer,
		CallerSubject:        subject.Subject,
		Anonymous:            subject.Anonymous,
		RequestedResources:   resources,
		RequestedPermissions: permissions,
		Decision:             result,
		MatchedGrantIDs:      matched,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierr.Wrap(apierr.Validation, "malformed request body", err)
	}
	return nil
}
