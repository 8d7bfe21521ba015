package server

import (
	"context"

	"bentoauthz/internal/apierr"
	"bentoauthz/internal/model"
)

// authorize self-evaluates whether subject holds permission on resource,
// using the same policy engine write endpoints are themselves gated by.
// Configured superusers bypass the store entirely, which is what makes
// the bootstrap problem — nobody holds edit:permissions before any grant
// exists — solvable.
func (a *App) authorize(ctx context.Context, subject model.ResolvedSubject, resource model.ResourcePattern, permission model.Permission) error {
	if !subject.Anonymous && a.Config.IsSuperuser(subject.Issuer, subject.Subject) {
		return nil
	}

	decision, err := a.Engine.EvaluateOne(ctx, subject, resource, permission)
	if err != nil {
		return apierr.Wrap(apierr.StoreUnavailable, "policy evaluation failed", err)
	}
	if !decision.Allowed {
		return apierr.New(apierr.Authorization, "caller lacks "+string(permission))
	}
	return nil
}

// everythingResource is the concrete, fully-qualified resource
// administrative permissions (edit:permissions, edit:groups, view:audit)
// are checked against. Evaluate requires a requestable resource —
// Everything is a grant-side-only pattern — but these permissions are not
// scoped to any particular project, so a reserved sentinel triple stands
// in for "the whole service"; it is matched by an Everything-scoped grant,
// and otherwise only by a grant whose own project (and, where the grant
// names them, dataset and data type) is literally "*".
var everythingResource = model.ResourcePattern{
	Kind:      model.ResourceProjectDatasetDataType,
	ProjectID: "*",
	DatasetID: "*",
	DataType:  "*",
}
