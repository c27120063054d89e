package model_test

import (
	"testing"

	"github.com/a11ygate/a11ygate/internal/model"
)

func TestComputeStats_Fold(t *testing.T) {
	t.Parallel()

	violations := []model.Violation{
		{ID: "a", Impact: model.ImpactCritical},
		{ID: "b", Impact: model.ImpactCritical},
		{ID: "c", Impact: model.ImpactSerious},
		{ID: "d", Impact: model.ImpactMinor},
	}

	got := model.ComputeStats(violations)
	want := model.Stats{Total: 4, Critical: 2, Serious: 1, Moderate: 0, Minor: 1}
	if got != want {
		t.Errorf("ComputeStats = %+v, want %+v", got, want)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	t.Parallel()

	if got := model.ComputeStats(nil); got != (model.Stats{}) {
		t.Errorf("ComputeStats(nil) = %+v, want zero stats", got)
	}
}

func TestComputeStats_UnknownImpactCountsTowardTotalOnly(t *testing.T) {
	t.Parallel()

	got := model.ComputeStats([]model.Violation{{ID: "x", Impact: "catastrophic"}})
	if got.Total != 1 {
		t.Errorf("total = %d, want 1", got.Total)
	}
	if got.Critical+got.Serious+got.Moderate+got.Minor != 0 {
		t.Errorf("unknown impact leaked into a class: %+v", got)
	}
}
