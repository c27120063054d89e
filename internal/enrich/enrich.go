// Package enrich augments raw scan output with natural-language explanations,
// an executive summary, and a remediation plan from an external
// text-generation collaborator. Every call degrades to templated fallback
// text on failure; enrichment can never fail a scan.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
)

const (
	// noViolationsSummary is returned without calling the collaborator.
	noViolationsSummary = "Great! No accessibility violations found. Your website is accessible."

	fallbackPlan = "Create a prioritized plan to fix issues starting with critical severity items, then serious, then moderate issues."

	fallbackHelpURL = "https://www.w3.org/WAI/"

	// summaryDigestSize caps how many violations feed the summary prompt.
	summaryDigestSize = 5

	defaultConcurrency = 4
)

// Enricher fans enrichment calls out to a TextGenerator. A nil generator
// puts it in degraded mode where every call immediately takes its fallback.
type Enricher struct {
	gen         TextGenerator
	logger      logging.Logger
	concurrency int
}

// NewEnricher creates an Enricher. gen may be nil (fallback-only mode).
func NewEnricher(gen TextGenerator, concurrency int, logger logging.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Enricher{gen: gen, logger: logger, concurrency: concurrency}
}

// Degraded reports whether the enricher has no collaborator wired.
func (e *Enricher) Degraded() bool { return e.gen == nil }

// Enrich fills AIExplanation on every violation and produces the summary and
// improvement plan. Explanations run concurrently; summary and plan run
// concurrently with each other once the violation list is final. No
// individual failure cancels the rest.
func (e *Enricher) Enrich(ctx context.Context, violations []model.Violation) (enriched []model.Violation, summary, plan string) {
	enriched = e.ExplainAll(ctx, violations)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		summary = e.Summary(ctx, violations)
	}()
	go func() {
		defer wg.Done()
		plan = e.Plan(ctx, violations)
	}()
	wg.Wait()

	return enriched, summary, plan
}

// ExplainAll requests an explanation per violation, bounded by the
// concurrency limit, substituting fallback text for any individual failure.
func (e *Enricher) ExplainAll(ctx context.Context, violations []model.Violation) []model.Violation {
	out := make([]model.Violation, len(violations))
	copy(out, violations)

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.concurrency)

	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			out[i].AIExplanation = e.Explain(ctx, out[i])
		}(i)
	}
	wg.Wait()

	return out
}

// Explain produces the explanation for one violation, falling back to the
// violation's own help text plus its reference URL.
func (e *Enricher) Explain(ctx context.Context, v model.Violation) string {
	if e.gen != nil {
		text, err := e.gen.Generate(ctx, explainPrompt(v))
		if err == nil && text != "" {
			return text
		}
		if err != nil && e.logger != nil {
			e.logger.Warn("explanation call failed, using fallback",
				logging.Field{Key: "rule", Value: v.ID},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return fallbackExplanation(v)
}

// Summary produces the executive summary. Zero violations short-circuits to
// a fixed message without calling the collaborator.
func (e *Enricher) Summary(ctx context.Context, violations []model.Violation) string {
	if len(violations) == 0 {
		return noViolationsSummary
	}
	if e.gen != nil {
		text, err := e.gen.Generate(ctx, summaryPrompt(violations))
		if err == nil && text != "" {
			return text
		}
		if err != nil && e.logger != nil {
			e.logger.Warn("summary call failed, using fallback",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return fmt.Sprintf("Found %d accessibility issues that need to be addressed for WCAG compliance.", len(violations))
}

// Plan produces the prioritized improvement plan from impact counts.
func (e *Enricher) Plan(ctx context.Context, violations []model.Violation) string {
	if e.gen != nil {
		text, err := e.gen.Generate(ctx, planPrompt(model.ComputeStats(violations)))
		if err == nil && text != "" {
			return text
		}
		if err != nil && e.logger != nil {
			e.logger.Warn("plan call failed, using fallback",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return fallbackPlan
}

func fallbackExplanation(v model.Violation) string {
	helpURL := v.HelpURL
	if helpURL == "" {
		helpURL = fallbackHelpURL
	}
	return fmt.Sprintf("%s\n\nFor more details, visit: %s", v.Help, helpURL)
}

func explainPrompt(v model.Violation) string {
	snippet := "No HTML provided"
	element := ""
	if len(v.Nodes) > 0 && v.Nodes[0].HTML != "" {
		snippet = v.Nodes[0].HTML
		if name := elementName(snippet); name != "" {
			element = fmt.Sprintf(" (a <%s> element)", name)
		}
	}

	return fmt.Sprintf(`You are an expert web accessibility consultant. A website has an accessibility violation that needs to be fixed.

Rule ID: %s
Severity: %s
Description: %s
Help: %s

Affected HTML%s:
%s

Please provide:
1. A brief explanation of why this is an accessibility issue
2. Who is affected (e.g., visually impaired users, keyboard users, etc.)
3. Specific steps to fix this issue with code examples
4. Best practices to prevent this issue in the future

Format your response in clear, actionable paragraphs.`,
		v.ID, v.Impact, v.Description, v.Help, element, snippet)
}

func summaryPrompt(violations []model.Violation) string {
	digest := violations
	if len(digest) > summaryDigestSize {
		digest = digest[:summaryDigestSize]
	}
	var b strings.Builder
	for _, v := range digest {
		fmt.Fprintf(&b, "- %s (%s): %s\n", v.ID, v.Impact, v.Description)
	}

	return fmt.Sprintf(`Provide a brief executive summary (2-3 sentences) of these web accessibility issues found on a website:

%s
The summary should be helpful for developers to understand the priority and impact of these issues.`, b.String())
}

func planPrompt(stats model.Stats) string {
	return fmt.Sprintf(`Create a prioritized improvement plan for this website with accessibility issues:
- Critical issues: %d
- Serious issues: %d
- Moderate issues: %d

Provide a plan in 3-4 bullet points that prioritizes:
1. Quick wins (easy fixes with high impact)
2. Medium-term improvements (moderate effort, significant impact)
3. Long-term strategy (comprehensive accessibility approach)

Be practical and actionable for a developer team.`, stats.Critical, stats.Serious, stats.Moderate)
}

// elementName extracts the tag name of the first element in an HTML snippet,
// giving prompts a readable anchor. Empty on parse failure.
func elementName(snippet string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return ""
	}
	sel := doc.Find("body *").First()
	if sel.Length() == 0 {
		sel = doc.Find("head *").First()
	}
	if sel.Length() == 0 {
		return ""
	}
	return goquery.NodeName(sel)
}
