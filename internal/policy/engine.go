// Package policy implements the policy evaluation engine (component F):
// selecting applicable grants, ordering them by specificity, applying
// negation, and deriving either a decision matrix or a permission set.
package policy

import (
	"context"
	"time"

	"bentoauthz/internal/cascade"
	"bentoauthz/internal/model"
	"bentoauthz/internal/registry"
	"bentoauthz/internal/store"
	"bentoauthz/internal/subjectmatch"
)

// Engine is the pure, deterministic-given-its-inputs policy evaluator. It
// holds no mutable state of its own; everything it needs for one
// evaluation comes from a fresh store.Snapshot.
type Engine struct {
	st         store.Store
	registry   *registry.Registry
	now        func() time.Time
	isSuperuser func(issuer, subject string) bool
}

// New builds an Engine. now defaults to time.Now when nil, and exists as a
// seam for deterministic tests. isSuperuser may be nil, in which case no
// subject is treated as a superuser; otherwise a subject it reports true
// for implicitly holds every permission on every resource, bypassing
// stored grants entirely.
func New(st store.Store, reg *registry.Registry, now func() time.Time, isSuperuser func(issuer, subject string) bool) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{st: st, registry: reg, now: now, isSuperuser: isSuperuser}
}

func (e *Engine) subjectIsSuperuser(subject model.ResolvedSubject) bool {
	return e.isSuperuser != nil && !subject.Anonymous && e.isSuperuser(subject.Issuer, subject.Subject)
}

// Decision is one evaluated cell: the allow/deny outcome plus the grant
// IDs that produced it, for the decision logger.
type Decision struct {
	Allowed       bool
	MatchedGrants []int64
}

// Evaluate computes the decision matrix for every (resource, permission)
// pair. Rows are resources, columns are permissions. A configured
// superuser is allowed on every cell without consulting the store.
func (e *Engine) Evaluate(ctx context.Context, subject model.ResolvedSubject, resources []model.ResourcePattern, permissions []model.Permission) ([][]Decision, error) {
	superuser := e.subjectIsSuperuser(subject)

	var snap store.Snapshot
	if !superuser {
		var err error
		snap, err = e.st.Snapshot(ctx, e.now())
		if err != nil {
			return nil, err
		}
	}

	out := make([][]Decision, len(resources))
	for i := range resources {
		out[i] = make([]Decision, len(permissions))
		for j, perm := range permissions {
			if superuser {
				out[i][j] = Decision{Allowed: true}
				continue
			}
			out[i][j] = decide(snap, subject, resources[i], perm, e.registry, e.now())
		}
	}
	return out, nil
}

// EvaluateOne evaluates a single (resource, permission) cell.
func (e *Engine) EvaluateOne(ctx context.Context, subject model.ResolvedSubject, resource model.ResourcePattern, permission model.Permission) (Decision, error) {
	if e.subjectIsSuperuser(subject) {
		return Decision{Allowed: true}, nil
	}

	snap, err := e.st.Snapshot(ctx, e.now())
	if err != nil {
		return Decision{}, err
	}
	return decide(snap, subject, resource, permission, e.registry, e.now()), nil
}

// PermissionsFor computes, per resource, the set of permissions that
// resolve to allow across the whole registry.
func (e *Engine) PermissionsFor(ctx context.Context, subject model.ResolvedSubject, resources []model.ResourcePattern) ([][]model.Permission, error) {
	superuser := e.subjectIsSuperuser(subject)

	if superuser {
		out := make([][]model.Permission, len(resources))
		all := e.registry.All()
		for i := range resources {
			allowed := make([]model.Permission, len(all))
			for k, entry := range all {
				allowed[k] = entry.Permission
			}
			out[i] = allowed
		}
		return out, nil
	}

	snap, err := e.st.Snapshot(ctx, e.now())
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([][]model.Permission, len(resources))
	for i, res := range resources {
		var allowed []model.Permission
		for _, entry := range e.registry.All() {
			d := decide(snap, subject, res, entry.Permission, e.registry, now)
			if d.Allowed {
				allowed = append(allowed, entry.Permission)
			}
		}
		out[i] = allowed
	}
	return out, nil
}

// decide resolves one (resource, permission) cell for a non-superuser
// subject by scanning applicable grants.
//
// Conceptually this buckets filtered grants by specificity and walks
// from most specific to least specific, but that walk reduces to a
// simpler comparison: collect, across every matching grant, the highest
// override rank carrying a positive grant and the highest override rank
// carrying a negation. Allow iff a positive bucket exists and no negation
// sits at the same or a higher rank — "a negation in a strictly more
// specific bucket overrides less-specific positive grants" and "tie: deny
// wins" are exactly the statements maxNegRank >= maxPosRank captures, for
// every pairing of buckets, not just the topmost one: a negation below the
// highest positive rank can never flip an allow, because nothing stops the
// positive grant at the higher rank from standing on its own.
func decide(snap store.Snapshot, subject model.ResolvedSubject, resource model.ResourcePattern, permission model.Permission, reg *registry.Registry, now time.Time) Decision {
	maxPosRank := -1
	maxNegRank := -1
	var posAtMax []int64

	for _, g := range snap.Grants {
		if g.Permission != permission {
			continue
		}
		if entry, ok := reg.Lookup(g.Permission); !ok || cascade.Specificity(g.ResourcePattern) < entry.MinSpecificity {
			// Registry check: treat as inactive rather than erroring.
			continue
		}
		if !cascade.Matches(g.ResourcePattern, resource) {
			continue
		}
		if !subjectmatch.Matches(g.SubjectPattern, subject, snap.LookupGroup, now) {
			continue
		}

		rank := cascade.OverrideRank(g.ResourcePattern)
		if g.Negated {
			if rank > maxNegRank {
				maxNegRank = rank
			}
			continue
		}
		if rank > maxPosRank {
			maxPosRank = rank
			posAtMax = []int64{g.ID}
		} else if rank == maxPosRank {
			posAtMax = append(posAtMax, g.ID)
		}
	}

	allowed := maxPosRank != -1 && maxNegRank < maxPosRank
	if !allowed {
		return Decision{Allowed: false}
	}
	return Decision{Allowed: true, MatchedGrants: posAtMax}
}
