package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResourceKind is the discriminator tag for a ResourcePattern.
type ResourceKind string

const (
	ResourceEverything             ResourceKind = "everything"
	ResourceProject                ResourceKind = "project"
	ResourceProjectDataset         ResourceKind = "project_dataset"
	ResourceProjectDataType        ResourceKind = "project_data_type"
	ResourceProjectDatasetDataType ResourceKind = "project_dataset_data_type"
)

// ResourcePattern is a tagged variant over the project -> dataset ->
// data-type hierarchy. Fields not used by a given Kind are left zero and
// are rejected by Validate if populated, so stored documents stay
// unambiguous.
type ResourcePattern struct {
	Kind      ResourceKind `json:"kind"`
	ProjectID string       `json:"project_id,omitempty"`
	DatasetID string       `json:"dataset_id,omitempty"`
	DataType  string       `json:"data_type,omitempty"`
}

// Validate rejects unknown kinds and kind/field mismatches.
func (p ResourcePattern) Validate() error {
	switch p.Kind {
	case ResourceEverything:
		if p.ProjectID != "" || p.DatasetID != "" || p.DataType != "" {
			return fmt.Errorf("resource pattern %q carries extra fields", p.Kind)
		}
	case ResourceProject:
		if p.ProjectID == "" || p.DatasetID != "" || p.DataType != "" {
			return fmt.Errorf("resource pattern %q requires project_id only", p.Kind)
		}
	case ResourceProjectDataset:
		if p.ProjectID == "" || p.DatasetID == "" || p.DataType != "" {
			return fmt.Errorf("resource pattern %q requires project_id and dataset_id", p.Kind)
		}
	case ResourceProjectDataType:
		if p.ProjectID == "" || p.DataType == "" || p.DatasetID != "" {
			return fmt.Errorf("resource pattern %q requires project_id and data_type", p.Kind)
		}
	case ResourceProjectDatasetDataType:
		if p.ProjectID == "" || p.DatasetID == "" || p.DataType == "" {
			return fmt.Errorf("resource pattern %q requires project_id, dataset_id and data_type", p.Kind)
		}
	default:
		return fmt.Errorf("unknown resource pattern kind %q", p.Kind)
	}
	return nil
}

// IsRequestable reports whether this pattern may be used as the resource
// being asked about in an evaluation. Everything is only ever a grant-side
// pattern, never a concrete request.
func (p ResourcePattern) IsRequestable() bool {
	return p.Kind != ResourceEverything && p.Kind != ""
}

// UnmarshalJSON rejects unrecognized fields so malformed pattern documents
// fail at the store boundary rather than silently dropping data.
func (p *ResourcePattern) UnmarshalJSON(data []byte) error {
	type alias ResourcePattern
	var aux alias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return fmt.Errorf("resource pattern: %w", err)
	}
	*p = ResourcePattern(aux)
	return p.Validate()
}
