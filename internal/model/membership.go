package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ClaimOp is the comparison applied by a membership expression leaf.
type ClaimOp string

const (
	OpEq       ClaimOp = "eq"
	OpNe       ClaimOp = "ne"
	OpIn       ClaimOp = "in"
	OpContains ClaimOp = "contains"
)

// ExprKind is the discriminator tag for an Expr node.
type ExprKind string

const (
	ExprLeaf ExprKind = "leaf"
	ExprAnd  ExprKind = "and"
	ExprOr   ExprKind = "or"
	ExprNot  ExprKind = "not"
)

// Expr is a boolean expression tree over claim predicates, evaluated
// against a resolved subject's claims to decide group membership. Only one
// of {Claim/Op/Value}, Nodes, or Node is populated, selected by Kind.
type Expr struct {
	Kind  ExprKind    `json:"kind"`
	Claim string      `json:"claim,omitempty"`
	Op    ClaimOp     `json:"op,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Nodes []Expr      `json:"nodes,omitempty"`
	Node  *Expr       `json:"node,omitempty"`
}

// Validate rejects unknown kinds and kind/field mismatches, recursing into
// child nodes.
func (e Expr) Validate() error {
	switch e.Kind {
	case ExprLeaf:
		if e.Claim == "" || len(e.Nodes) != 0 || e.Node != nil {
			return fmt.Errorf("leaf expression requires claim and no child nodes")
		}
		switch e.Op {
		case OpEq, OpNe, OpIn, OpContains:
		default:
			return fmt.Errorf("unknown claim op %q", e.Op)
		}
	case ExprAnd, ExprOr:
		if len(e.Nodes) == 0 || e.Node != nil || e.Claim != "" {
			return fmt.Errorf("%q expression requires a non-empty nodes list", e.Kind)
		}
		for _, n := range e.Nodes {
			if err := n.Validate(); err != nil {
				return err
			}
		}
	case ExprNot:
		if e.Node == nil || len(e.Nodes) != 0 || e.Claim != "" {
			return fmt.Errorf("not expression requires exactly one child node")
		}
		if err := e.Node.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown expression kind %q", e.Kind)
	}
	return nil
}

// UnmarshalJSON rejects unrecognized fields at every level of the tree.
func (e *Expr) UnmarshalJSON(data []byte) error {
	type alias Expr
	var aux alias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return fmt.Errorf("membership expression: %w", err)
	}
	*e = Expr(aux)
	return e.Validate()
}

// MembershipKind is the discriminator tag for a Membership value.
type MembershipKind string

const (
	MembershipExpr MembershipKind = "expr"
	MembershipList MembershipKind = "list"
)

// Membership describes who belongs to a Group: either a claim expression
// evaluated against a resolved subject's claims, or an explicit list of
// member subject patterns.
type Membership struct {
	Kind    MembershipKind   `json:"kind"`
	Expr    *Expr            `json:"expr,omitempty"`
	Members []SubjectPattern `json:"members,omitempty"`
}

// Validate rejects unknown kinds, kind/field mismatches, and member
// patterns outside the two variants the data model allows inside a group
// (IssuerAndClientAndSubject or IssuerAndSubject) — group references
// cannot appear here, which is what keeps membership resolution acyclic.
func (m Membership) Validate() error {
	switch m.Kind {
	case MembershipExpr:
		if m.Expr == nil || len(m.Members) != 0 {
			return fmt.Errorf("expr membership requires expr and no members")
		}
		return m.Expr.Validate()
	case MembershipList:
		if len(m.Members) == 0 || m.Expr != nil {
			return fmt.Errorf("list membership requires a non-empty members list")
		}
		for _, member := range m.Members {
			if err := member.Validate(); err != nil {
				return err
			}
			if !member.IsMemberPattern() {
				return fmt.Errorf("member pattern %q is not legal inside a group member list", member.Kind)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown membership kind %q", m.Kind)
	}
}

func (m *Membership) UnmarshalJSON(data []byte) error {
	type alias Membership
	var aux alias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return fmt.Errorf("membership: %w", err)
	}
	*m = Membership(aux)
	return m.Validate()
}
