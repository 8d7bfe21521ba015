package model

import (
	"encoding/json"
	"time"
)

// Permission is a "verb:noun" string drawn from the fixed registry, e.g.
// "query:data" or "edit:permissions".
type Permission string

// Grant binds a subject pattern to a resource pattern and a permission,
// optionally negated, optionally time-bounded. Grants are immutable apart
// from deletion.
type Grant struct {
	ID              int64           `json:"id"`
	SubjectPattern  SubjectPattern  `json:"subject_pattern"`
	ResourcePattern ResourcePattern `json:"resource_pattern"`
	Permission      Permission      `json:"permission"`
	Extra           json.RawMessage `json:"extra,omitempty"`
	Created         time.Time       `json:"created"`
	Expiry          *time.Time      `json:"expiry,omitempty"`
	Negated         bool            `json:"negated"`
}

// Active reports whether the grant applies at instant now: created <= now
// and, if set, now < expiry (half-open interval per the data model).
func (g Grant) Active(now time.Time) bool {
	if g.Created.After(now) {
		return false
	}
	if g.Expiry != nil && !now.Before(*g.Expiry) {
		return false
	}
	return true
}
