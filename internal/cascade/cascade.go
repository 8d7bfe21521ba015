// Package cascade implements the pure resource-matching rules of the
// hierarchical resource space: whether a grant's resource pattern covers a
// requested resource, and how specific that pattern is.
package cascade

import "bentoauthz/internal/model"

// Specificity levels on the cascade's literal scale. ProjectDataset and
// ProjectDataType are deliberately tied at 2 — that is the scale the
// permission registry's minimum-specificity checks are defined against.
const (
	SpecificityEverything             = 0
	SpecificityProject                = 1
	SpecificityProjectDataset         = 2
	SpecificityProjectDataType        = 2
	SpecificityProjectDatasetDataType = 3
)

// Specificity returns the pattern's height in the cascade lattice on the
// literal 0-3 scale. Use overrideRank, not this, to break ties
// between the two specificity-2 kinds inside the policy engine.
func Specificity(p model.ResourcePattern) int {
	switch p.Kind {
	case model.ResourceEverything:
		return SpecificityEverything
	case model.ResourceProject:
		return SpecificityProject
	case model.ResourceProjectDataset:
		return SpecificityProjectDataset
	case model.ResourceProjectDataType:
		return SpecificityProjectDataType
	case model.ResourceProjectDatasetDataType:
		return SpecificityProjectDatasetDataType
	default:
		return -1
	}
}

// overrideRank is a strict total order used only for policy-engine
// tie-breaking: it separates the two specificity-2 kinds, preferring
// ProjectDataset (dataset scope) over ProjectDataType (data-type scope)
// per the documented cascade behavior. It must never be exposed outside
// the policy engine — registry checks and the public Specificity above
// use the literal scale, where the two are tied.
func overrideRank(p model.ResourcePattern) int {
	switch p.Kind {
	case model.ResourceEverything:
		return 0
	case model.ResourceProject:
		return 1
	case model.ResourceProjectDataType:
		return 2
	case model.ResourceProjectDataset:
		return 3
	case model.ResourceProjectDatasetDataType:
		return 4
	default:
		return -1
	}
}

// OverrideRank exposes overrideRank to the policy package, which is the
// only caller allowed to use it for bucketing and tie-breaks.
func OverrideRank(p model.ResourcePattern) int {
	return overrideRank(p)
}

// Matches reports whether pattern covers the fully-qualified requested
// resource. requested must never be the Everything kind — that is a
// grant-side-only pattern, never a legal request.
func Matches(pattern, requested model.ResourcePattern) bool {
	if !requested.IsRequestable() {
		return false
	}
	switch pattern.Kind {
	case model.ResourceEverything:
		return true
	case model.ResourceProject:
		return requested.ProjectID == pattern.ProjectID
	case model.ResourceProjectDataset:
		return requested.ProjectID == pattern.ProjectID && requested.DatasetID == pattern.DatasetID
	case model.ResourceProjectDataType:
		return requested.ProjectID == pattern.ProjectID && requested.DataType == pattern.DataType
	case model.ResourceProjectDatasetDataType:
		return requested.ProjectID == pattern.ProjectID &&
			requested.DatasetID == pattern.DatasetID &&
			requested.DataType == pattern.DataType
	default:
		return false
	}
}
