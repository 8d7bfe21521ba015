// Package subjectmatch implements the pure subject-matching rules: whether
// a grant's subject pattern applies to a resolved subject, including group
// membership expansion.
package subjectmatch

import (
	"reflect"
	"strings"
	"time"

	"bentoauthz/internal/model"
)

// GroupLookup resolves a group reference to its current definition. The
// policy engine supplies this backed by a consistent store snapshot.
type GroupLookup func(groupID int64) (model.Group, bool)

// Matches reports whether pattern applies to resolved. now is used to
// treat expired groups as if they did not exist.
func Matches(pattern model.SubjectPattern, resolved model.ResolvedSubject, lookupGroup GroupLookup, now time.Time) bool {
	switch pattern.Kind {
	case model.SubjectEveryone:
		return true
	case model.SubjectAnonymous:
		return resolved.Anonymous
	case model.SubjectIssuerClientSubject:
		return !resolved.Anonymous &&
			resolved.Issuer == pattern.Issuer &&
			resolved.ClientID == pattern.ClientID &&
			resolved.Subject == pattern.Subject
	case model.SubjectIssuerClient:
		return !resolved.Anonymous &&
			resolved.Issuer == pattern.Issuer &&
			resolved.ClientID == pattern.ClientID
	case model.SubjectIssuerSubject:
		return !resolved.Anonymous &&
			resolved.Issuer == pattern.Issuer &&
			resolved.Subject == pattern.Subject
	case model.SubjectGroup:
		group, ok := lookupGroup(pattern.GroupID)
		if !ok || !group.Active(now) {
			return false
		}
		return matchesMembership(group.Membership, resolved, lookupGroup, now)
	default:
		return false
	}
}

func matchesMembership(m model.Membership, resolved model.ResolvedSubject, lookupGroup GroupLookup, now time.Time) bool {
	switch m.Kind {
	case model.MembershipExpr:
		if m.Expr == nil {
			return false
		}
		return evalExpr(*m.Expr, resolved)
	case model.MembershipList:
		for _, member := range m.Members {
			// Member patterns are restricted to the two fully-qualified
			// variants at write time; group references cannot appear here,
			// which is what keeps this resolution acyclic.
			if Matches(member, resolved, lookupGroup, now) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// evalExpr walks a membership expression tree against a resolved
// subject's claims, short-circuiting and treating missing claims as false
// rather than erroring.
func evalExpr(e model.Expr, resolved model.ResolvedSubject) bool {
	switch e.Kind {
	case model.ExprLeaf:
		return evalLeaf(e, resolved)
	case model.ExprAnd:
		for _, child := range e.Nodes {
			if !evalExpr(child, resolved) {
				return false
			}
		}
		return true
	case model.ExprOr:
		for _, child := range e.Nodes {
			if evalExpr(child, resolved) {
				return true
			}
		}
		return false
	case model.ExprNot:
		if e.Node == nil {
			return false
		}
		return !evalExpr(*e.Node, resolved)
	default:
		return false
	}
}

func evalLeaf(e model.Expr, resolved model.ResolvedSubject) bool {
	actual, ok := resolved.Get(e.Claim)
	if !ok {
		return false
	}
	switch e.Op {
	case model.OpEq:
		return equalValues(actual, e.Value)
	case model.OpNe:
		return !equalValues(actual, e.Value)
	case model.OpIn:
		values, ok := e.Value.([]interface{})
		if !ok {
			return false
		}
		for _, v := range values {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	case model.OpContains:
		switch coll := actual.(type) {
		case []interface{}:
			for _, v := range coll {
				if equalValues(v, e.Value) {
					return true
				}
			}
			return false
		case string:
			target, ok := e.Value.(string)
			return ok && strings.Contains(coll, target)
		default:
			return false
		}
	default:
		return false
	}
}

// equalValues compares a claim value against a configured expression value
// by concrete kind, so "42" never equals 42: strings compare to strings,
// numbers to numbers (regardless of which Go numeric type each arrived
// as — JSON decoding always yields float64, but a directly-constructed
// Expr may carry an int), booleans to booleans, and everything else
// falls back to a structural comparison.
func equalValues(a, b interface{}) bool {
	if av, ok := a.(string); ok {
		bv, ok := b.(string)
		return ok && av == bv
	}
	if av, ok := a.(bool); ok {
		bv, ok := b.(bool)
		return ok && av == bv
	}
	if av, ok := asFloat64(a); ok {
		bv, ok := asFloat64(b)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
