package model

// Claims is the verified set of JWT claims produced by the token verifier,
// keyed by the registered claim names plus whatever the issuer attached.
type Claims map[string]interface{}

// ResolvedSubject is the pure, I/O-free output of subject resolution: a
// verified claim set collapsed into the fields the rest of the system
// matches against. Anonymous is the only field guaranteed populated for an
// unauthenticated caller.
type ResolvedSubject struct {
	Anonymous bool
	Issuer    string
	Subject   string
	ClientID  string
	Claims    Claims
}

// Get looks up a dotted claim path (e.g. "address.country") inside the
// resolved subject's claim set, returning (nil, false) if any segment is
// missing or not a nested object.
func (s ResolvedSubject) Get(path string) (interface{}, bool) {
	if s.Claims == nil {
		return nil, false
	}
	return getDotted(s.Claims, path)
}

func getDotted(m map[string]interface{}, path string) (interface{}, bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			head, rest := path[:i], path[i+1:]
			next, ok := m[head]
			if !ok {
				return nil, false
			}
			nested, ok := next.(map[string]interface{})
			if !ok {
				return nil, false
			}
			return getDotted(nested, rest)
		}
	}
	v, ok := m[path]
	return v, ok
}
