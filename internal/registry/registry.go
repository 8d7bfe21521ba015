// Package registry holds the fixed table of recognized permissions and the
// minimum resource specificity each may be granted at. It is loaded once at
// startup and is immutable thereafter — the only module-level state the
// service carries besides the JWKS cache.
package registry

import (
	"fmt"

	"bentoauthz/internal/cascade"
	"bentoauthz/internal/model"
)

// Entry describes one registered permission.
type Entry struct {
	Permission      model.Permission
	MinSpecificity  int
	Description     string
}

// Registry is the immutable, fixed set of recognized permissions.
type Registry struct {
	byName map[model.Permission]Entry
	all    []Entry
}

// Default returns the built-in permission set for the research-platform
// authorization surface. Administrative and portal permissions may be
// granted at any scope, Everything included; project permissions need at
// least a project scope; data permissions need at least a dataset or
// data-type scope. Every permission may also be granted at any narrower
// scope, down to a single dataset/data-type pair.
func Default() *Registry {
	return New([]Entry{
		{Permission: "edit:permissions", MinSpecificity: cascade.SpecificityEverything, Description: "create, delete and inspect grants"},
		{Permission: "edit:groups", MinSpecificity: cascade.SpecificityEverything, Description: "create, rename, delete and edit group membership"},
		{Permission: "view:audit", MinSpecificity: cascade.SpecificityEverything, Description: "read decision log records"},
		{Permission: "delete:project", MinSpecificity: cascade.SpecificityProject, Description: "delete a project and everything under it"},
		{Permission: "edit:project", MinSpecificity: cascade.SpecificityProject, Description: "modify project-level metadata"},
		{Permission: "query:data", MinSpecificity: cascade.SpecificityProjectDataset, Description: "run queries against a dataset/data-type"},
		{Permission: "download:data", MinSpecificity: cascade.SpecificityProjectDataset, Description: "download raw data"},
		{Permission: "view:private_portal", MinSpecificity: cascade.SpecificityEverything, Description: "view the non-public research portal"},
	})
}

// New builds a Registry from an explicit entry set, letting deployments or
// tests substitute their own fixed permission list.
func New(entries []Entry) *Registry {
	r := &Registry{byName: make(map[model.Permission]Entry, len(entries)), all: entries}
	for _, e := range entries {
		r.byName[e.Permission] = e
	}
	return r
}

// Lookup returns the registered entry for a permission, or false if it is
// not in the registry.
func (r *Registry) Lookup(p model.Permission) (Entry, bool) {
	e, ok := r.byName[p]
	return e, ok
}

// All returns every registered permission, in registration order.
func (r *Registry) All() []Entry {
	out := make([]Entry, len(r.all))
	copy(out, r.all)
	return out
}

// ValidateGrant checks invariant 3 of the data model: the grant's
// permission must be registered, and its resource specificity must be at
// least the permission's minimum.
func (r *Registry) ValidateGrant(permission model.Permission, resource model.ResourcePattern) error {
	entry, ok := r.Lookup(permission)
	if !ok {
		return fmt.Errorf("permission %q is not in the registry", permission)
	}
	if cascade.Specificity(resource) < entry.MinSpecificity {
		return fmt.Errorf("permission %q requires resource specificity >= %d, got %d", permission, entry.MinSpecificity, cascade.Specificity(resource))
	}
	return nil
}
