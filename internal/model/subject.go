package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SubjectKind is the discriminator tag for a SubjectPattern.
type SubjectKind string

const (
	SubjectAnonymous                  SubjectKind = "anonymous"
	SubjectEveryone                   SubjectKind = "everyone"
	SubjectIssuerClientSubject        SubjectKind = "issuer_client_subject"
	SubjectIssuerClient                SubjectKind = "issuer_client"
	SubjectIssuerSubject               SubjectKind = "issuer_subject"
	SubjectGroup                       SubjectKind = "group"
)

// SubjectPattern describes who a grant or group-membership entry applies
// to. GroupID is only meaningful for SubjectGroup.
type SubjectPattern struct {
	Kind     SubjectKind `json:"kind"`
	Issuer   string      `json:"issuer,omitempty"`
	ClientID string      `json:"client_id,omitempty"`
	Subject  string      `json:"subject,omitempty"`
	GroupID  int64       `json:"group_id,omitempty"`
}

// Validate rejects unknown kinds and kind/field mismatches.
func (p SubjectPattern) Validate() error {
	switch p.Kind {
	case SubjectAnonymous, SubjectEveryone:
		if p.Issuer != "" || p.ClientID != "" || p.Subject != "" || p.GroupID != 0 {
			return fmt.Errorf("subject pattern %q carries extra fields", p.Kind)
		}
	case SubjectIssuerClientSubject:
		if p.Issuer == "" || p.ClientID == "" || p.Subject == "" || p.GroupID != 0 {
			return fmt.Errorf("subject pattern %q requires issuer, client_id and subject", p.Kind)
		}
	case SubjectIssuerClient:
		if p.Issuer == "" || p.ClientID == "" || p.Subject != "" || p.GroupID != 0 {
			return fmt.Errorf("subject pattern %q requires issuer and client_id only", p.Kind)
		}
	case SubjectIssuerSubject:
		if p.Issuer == "" || p.Subject == "" || p.ClientID != "" || p.GroupID != 0 {
			return fmt.Errorf("subject pattern %q requires issuer and subject only", p.Kind)
		}
	case SubjectGroup:
		if p.GroupID == 0 || p.Issuer != "" || p.ClientID != "" || p.Subject != "" {
			return fmt.Errorf("subject pattern %q requires group_id only", p.Kind)
		}
	default:
		return fmt.Errorf("unknown subject pattern kind %q", p.Kind)
	}
	return nil
}

// IsMemberPattern reports whether this pattern is legal inside a group's
// member list, which per the data model only admits the two
// fully-qualified member variants (group references inside group
// membership would create cycles, and Anonymous/Everyone make no sense as
// a named member).
func (p SubjectPattern) IsMemberPattern() bool {
	return p.Kind == SubjectIssuerClientSubject || p.Kind == SubjectIssuerSubject
}

// UnmarshalJSON rejects unrecognized fields so malformed pattern documents
// fail at the store boundary rather than silently dropping data.
func (p *SubjectPattern) UnmarshalJSON(data []byte) error {
	type alias SubjectPattern
	var aux alias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return fmt.Errorf("subject pattern: %w", err)
	}
	*p = SubjectPattern(aux)
	return p.Validate()
}
