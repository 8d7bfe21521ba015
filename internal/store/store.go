// Package store defines the persistence interface for grants, groups,
// resources and subjects (component A), plus a Postgres-backed
// implementation storing pattern documents as JSONB.
package store

import (
	"context"
	"errors"
	"time"

	"bentoauthz/internal/model"
)

// ErrNotFound is returned by Get/Delete operations for a missing id.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a create or update would violate a
// uniqueness invariant, or when deleting a group that grants still
// reference would violate referential integrity.
var ErrConflict = errors.New("store: conflict")

// Store is the abstract persistence interface every component above it
// depends on. All operations are transactional; ListGrants/Snapshot must
// yield a stable, read-consistent view for the duration of one evaluation.
type Store interface {
	ListGrants(ctx context.Context) ([]model.Grant, error)
	GetGrant(ctx context.Context, id int64) (model.Grant, error)
	CreateGrant(ctx context.Context, g model.Grant) (model.Grant, error)
	DeleteGrant(ctx context.Context, id int64) error

	ListGroups(ctx context.Context) ([]model.Group, error)
	GetGroup(ctx context.Context, id int64) (model.Group, error)
	CreateGroup(ctx context.Context, g model.Group) (model.Group, error)
	UpdateGroup(ctx context.Context, g model.Group) (model.Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	// Snapshot returns a consistent view of every active grant and every
	// group (active or not — groups referenced by still-active grants may
	// themselves be expired, at which point subjectmatch treats them as
	// non-matching rather than erroring) as of now, for one evaluation.
	Snapshot(ctx context.Context, now time.Time) (Snapshot, error)

	// Close releases the underlying connection pool.
	Close() error
}

// Snapshot is the read-consistent view the policy engine evaluates
// against.
type Snapshot struct {
	Grants []model.Grant
	Groups map[int64]model.Group
}

// LookupGroup adapts a Snapshot into the subjectmatch.GroupLookup shape.
func (s Snapshot) LookupGroup(id int64) (model.Group, bool) {
	g, ok := s.Groups[id]
	return g, ok
}
