package enrich_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/a11ygate/a11ygate/internal/enrich"
	"github.com/a11ygate/a11ygate/internal/model"
	"github.com/a11ygate/a11ygate/internal/testutil"
)

func sampleViolations() []model.Violation {
	return []model.Violation{
		{
			ID:          "image-alt",
			Impact:      model.ImpactCritical,
			Description: "Images must have alternate text",
			Help:        "Images must have an alt attribute",
			HelpURL:     "https://dequeuniversity.com/rules/axe/4.7/image-alt",
			Nodes:       []model.ViolationNode{{HTML: `<img src="logo.png">`, Target: []string{"img"}}},
		},
		{
			ID:          "color-contrast",
			Impact:      model.ImpactSerious,
			Description: "Elements must meet minimum color contrast",
			Help:        "Elements must have sufficient color contrast",
		},
	}
}

// ─── Explanations ──────────────────────────────────────────────────────

func TestExplainAll_UsesGeneratorText(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Text: "generated explanation"}
	e := enrich.NewEnricher(gen, 2, &testutil.DummyLogger{})

	out := e.ExplainAll(context.Background(), sampleViolations())
	for _, v := range out {
		if v.AIExplanation != "generated explanation" {
			t.Errorf("violation %s: explanation = %q", v.ID, v.AIExplanation)
		}
	}
}

func TestExplainAll_FallsBackPerViolation(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Err: errors.New("collaborator down")}
	e := enrich.NewEnricher(gen, 2, &testutil.DummyLogger{})

	out := e.ExplainAll(context.Background(), sampleViolations())

	if !strings.HasPrefix(out[0].AIExplanation, out[0].Help) {
		t.Errorf("fallback must start with help text, got %q", out[0].AIExplanation)
	}
	if !strings.Contains(out[0].AIExplanation, out[0].HelpURL) {
		t.Errorf("fallback must reference helpUrl, got %q", out[0].AIExplanation)
	}
	// violation without a helpUrl points at W3C WAI
	if !strings.Contains(out[1].AIExplanation, "w3.org/WAI") {
		t.Errorf("fallback without helpUrl must reference WAI, got %q", out[1].AIExplanation)
	}
}

func TestExplainAll_PreservesOrderAndInput(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Text: "x"}
	e := enrich.NewEnricher(gen, 4, nil)

	in := sampleViolations()
	out := e.ExplainAll(context.Background(), in)

	if len(out) != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), len(out))
	}
	for i := range in {
		if out[i].ID != in[i].ID {
			t.Errorf("order changed at %d: %s -> %s", i, in[i].ID, out[i].ID)
		}
		if in[i].AIExplanation != "" {
			t.Error("input slice must not be mutated")
		}
	}
}

// ─── Summary & plan ────────────────────────────────────────────────────

func TestSummary_ZeroViolationsShortCircuits(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Text: "should never be used"}
	e := enrich.NewEnricher(gen, 1, nil)

	got := e.Summary(context.Background(), nil)
	if !strings.Contains(got, "No accessibility violations found") {
		t.Errorf("unexpected zero-violation summary: %q", got)
	}
	if gen.CallCount() != 0 {
		t.Errorf("collaborator called %d times for zero violations", gen.CallCount())
	}
}

func TestSummary_FallbackCountsViolations(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Err: errors.New("boom")}
	e := enrich.NewEnricher(gen, 1, &testutil.DummyLogger{})

	got := e.Summary(context.Background(), sampleViolations())
	if !strings.Contains(got, "2 accessibility issues") {
		t.Errorf("fallback summary must count issues, got %q", got)
	}
}

func TestPlan_Fallback(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Err: errors.New("boom")}
	e := enrich.NewEnricher(gen, 1, &testutil.DummyLogger{})

	got := e.Plan(context.Background(), sampleViolations())
	if !strings.Contains(got, "critical severity") {
		t.Errorf("unexpected fallback plan: %q", got)
	}
}

// ─── Enrich (combined) ─────────────────────────────────────────────────

func TestEnrich_AllCallsFailingStillProducesText(t *testing.T) {
	t.Parallel()

	gen := &testutil.FakeGenerator{Err: errors.New("always failing")}
	e := enrich.NewEnricher(gen, 2, &testutil.DummyLogger{})

	violations, summary, plan := e.Enrich(context.Background(), sampleViolations())
	for _, v := range violations {
		if v.AIExplanation == "" {
			t.Errorf("violation %s left without explanation", v.ID)
		}
	}
	if summary == "" || plan == "" {
		t.Error("summary and plan must degrade to fallback text, not empty")
	}
}

func TestEnrich_DegradedModeNeverCallsOut(t *testing.T) {
	t.Parallel()

	e := enrich.NewEnricher(nil, 2, &testutil.DummyLogger{})
	if !e.Degraded() {
		t.Fatal("nil generator must report degraded mode")
	}

	violations, summary, plan := e.Enrich(context.Background(), sampleViolations())
	if violations[0].AIExplanation == "" || summary == "" || plan == "" {
		t.Error("degraded mode must still fill all enrichment fields")
	}
}
