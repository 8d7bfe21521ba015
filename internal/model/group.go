package model

import "time"

// Group is a named, reusable subject pattern. Unlike grants, groups may be
// renamed or have their membership edited in place.
type Group struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Membership Membership `json:"membership"`
	Created    time.Time  `json:"created"`
	Expiry     *time.Time `json:"expiry,omitempty"`
}

// Active reports whether the group is visible to evaluation at instant now.
func (g Group) Active(now time.Time) bool {
	return g.Expiry == nil || now.Before(*g.Expiry)
}
