package model

import "time"

// Impact levels reported by the rule engine, in ascending severity.
const (
	ImpactMinor    = "minor"
	ImpactModerate = "moderate"
	ImpactSerious  = "serious"
	ImpactCritical = "critical"
)

// ViolationNode is one affected DOM node within a violation.
type ViolationNode struct {
	HTML   string   `json:"html"`
	Target []string `json:"target"`
}

// Violation is a single rule failure reported by the rule engine. All fields
// except AIExplanation are carried verbatim from the engine payload.
type Violation struct {
	ID          string          `json:"id"`
	Impact      string          `json:"impact"`
	Description string          `json:"description"`
	Help        string          `json:"help"`
	HelpURL     string          `json:"helpUrl"`
	Nodes       []ViolationNode `json:"nodes"`

	// AIExplanation is appended by the enrichment layer; empty until then.
	AIExplanation string `json:"aiExplanation,omitempty"`
}

// CheckRecord is a passed or incomplete rule check. Kept slim: the API
// surfaces these for completeness but the product only reasons about
// violations.
type CheckRecord struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Help        string `json:"help,omitempty"`
	HelpURL     string `json:"helpUrl,omitempty"`
}

// AxeResults is the raw structured payload extracted from the page context,
// before enrichment.
type AxeResults struct {
	Violations []Violation   `json:"violations"`
	Passes     []CheckRecord `json:"passes"`
	Incomplete []CheckRecord `json:"incomplete"`
}

// Stats aggregates violations by impact class.
type Stats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// Performance carries the scan's wall-clock duration for observability.
type Performance struct {
	Duration int64  `json:"duration"`
	Unit     string `json:"unit"`
}

// ScanResult is the complete report for one successful scan. Immutable once
// assembled by the orchestrator.
type ScanResult struct {
	RequestID       string        `json:"requestId"`
	URL             string        `json:"url"`
	Violations      []Violation   `json:"violations"`
	Passes          []CheckRecord `json:"passes"`
	Incomplete      []CheckRecord `json:"incomplete"`
	Summary         string        `json:"summary"`
	ImprovementPlan string        `json:"improvementPlan"`
	Stats           Stats         `json:"stats"`
	Timestamp       time.Time     `json:"timestamp"`
	Performance     Performance   `json:"performance"`
}

// ComputeStats folds the violation list into impact counts. Impacts outside
// the known classes count toward Total only.
func ComputeStats(violations []Violation) Stats {
	s := Stats{Total: len(violations)}
	for _, v := range violations {
		switch v.Impact {
		case ImpactCritical:
			s.Critical++
		case ImpactSerious:
			s.Serious++
		case ImpactModerate:
			s.Moderate++
		case ImpactMinor:
			s.Minor++
		}
	}
	return s
}
