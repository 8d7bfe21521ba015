package cascade

import (
	"testing"

	"bentoauthz/internal/model"
)

func TestMatches(t *testing.T) {
	p1 := model.ResourcePattern{Kind: model.ResourceProject, ProjectID: "p1"}
	p1d1 := model.ResourcePattern{Kind: model.ResourceProjectDataset, ProjectID: "p1", DatasetID: "d1"}
	p1d2 := model.ResourcePattern{Kind: model.ResourceProjectDataset, ProjectID: "p1", DatasetID: "d2"}
	p1tA := model.ResourcePattern{Kind: model.ResourceProjectDataType, ProjectID: "p1", DataType: "A"}
	p1d1tA := model.ResourcePattern{Kind: model.ResourceProjectDatasetDataType, ProjectID: "p1", DatasetID: "d1", DataType: "A"}
	everything := model.ResourcePattern{Kind: model.ResourceEverything}

	tests := []struct {
		name    string
		pattern model.ResourcePattern
		request model.ResourcePattern
		want    bool
	}{
		{"everything matches any requestable", everything, p1d1tA, true},
		{"everything cannot be requested", p1, everything, false},
		{"project matches narrower dataset", p1, p1d1, true},
		{"project matches unrelated dataset in same project", p1, p1d2, true},
		{"dataset does not match sibling dataset", p1d1, p1d2, false},
		{"dataset matches exact triple within it", p1d1, p1d1tA, true},
		{"data type matches across datasets", p1tA, p1d1tA, true},
		{"exact triple requires all three", p1d1tA, p1d1tA, true},
		{"exact triple rejects different data type", p1d1tA, model.ResourcePattern{Kind: model.ResourceProjectDatasetDataType, ProjectID: "p1", DatasetID: "d1", DataType: "B"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.pattern, tt.request); got != tt.want {
				t.Errorf("Matches(%+v, %+v) = %v, want %v", tt.pattern, tt.request, got, tt.want)
			}
		})
	}
}

func TestSpecificityTiesProjectDatasetAndDataType(t *testing.T) {
	dataset := model.ResourcePattern{Kind: model.ResourceProjectDataset, ProjectID: "p1", DatasetID: "d1"}
	dataType := model.ResourcePattern{Kind: model.ResourceProjectDataType, ProjectID: "p1", DataType: "A"}

	if Specificity(dataset) != Specificity(dataType) {
		t.Fatalf("expected ProjectDataset and ProjectDataType to tie on the literal specificity scale")
	}
	if OverrideRank(dataset) == OverrideRank(dataType) {
		t.Fatalf("expected override rank to break the tie between ProjectDataset and ProjectDataType")
	}
	if OverrideRank(dataset) <= OverrideRank(dataType) {
		t.Fatalf("expected ProjectDataset to outrank ProjectDataType for override tie-breaking")
	}
}
