package domain

import (
	"encoding/json"
	"fmt"
)

// OutcomeItem is a CLO or PLO as sent to the consistency analysis. ID holds
// the human-readable code (e.g. "CLO1"), not the backend identifier.
type OutcomeItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// PlaceholderCLO is substituted for a CLO that could not be fetched so the
// analysis still sees the right number of outcomes.
func PlaceholderCLO(backendID string) OutcomeItem {
	return OutcomeItem{
		ID:          fmt.Sprintf("CLO-%s", backendID),
		Description: "<unavailable>",
	}
}

// CLOCheckPayload is the body submitted for a CLO_CHECK job.
type CLOCheckPayload struct {
	SyllabusID string              `json:"syllabusId"`
	CLOList    []OutcomeItem       `json:"cloList"`
	PLOList    []OutcomeItem       `json:"ploList"`
	Mapping    map[string][]string `json:"mapping"`
}

// IssueSeverity grades a consistency issue.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "CRITICAL"
	SeverityHigh     IssueSeverity = "HIGH"
	SeverityMedium   IssueSeverity = "MEDIUM"
	SeverityLow      IssueSeverity = "LOW"
)

// AssessmentStatus is the overall verdict of a consistency check.
type AssessmentStatus string

const (
	AssessmentGood             AssessmentStatus = "GOOD"
	AssessmentAcceptable       AssessmentStatus = "ACCEPTABLE"
	AssessmentNeedsImprovement AssessmentStatus = "NEEDS_IMPROVEMENT"
	AssessmentCritical         AssessmentStatus = "CRITICAL"
)

// CLOIssue is a single finding of the consistency analysis.
type CLOIssue struct {
	ID             string        `json:"id,omitempty"`
	Type           string        `json:"type,omitempty"`
	Severity       IssueSeverity `json:"severity"`
	RelatedCLO     string        `json:"relatedClo,omitempty"`
	RelatedPLO     string        `json:"relatedPlo,omitempty"`
	Problem        string        `json:"problem"`
	Cause          string        `json:"why,omitempty"`
	Impact         string        `json:"impact,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	HowToFix       string        `json:"howToFix,omitempty"`
	Priority       int           `json:"priority,omitempty"`
}

// MappingAnalysis summarizes CLO/PLO coverage.
type MappingAnalysis struct {
	TotalClos     int      `json:"totalClos"`
	TotalPlos     int      `json:"totalPlos"`
	CoveredClos   int      `json:"coveredClos"`
	CoveredPlos   int      `json:"coveredPlos"`
	Coverage      float64  `json:"coverage,omitempty"`
	UnmappedClos  []string `json:"unmappedClos"`
	UncoveredPlos []string `json:"uncoveredPlos"`
	Suggestions   []string `json:"suggestions,omitempty"`
}

// OverallAssessment is the headline verdict.
type OverallAssessment struct {
	Score         float64          `json:"score"`
	Status        AssessmentStatus `json:"status"`
	Summary       string           `json:"summary"`
	KeyStrengths  []string         `json:"keyStrengths,omitempty"`
	KeyWeaknesses []string         `json:"keyWeaknesses,omitempty"`
	NextSteps     []string         `json:"nextSteps,omitempty"`
}

// CLOCheckResult is the structured output of a CLO_CHECK job.
type CLOCheckResult struct {
	OverallAssessment OverallAssessment `json:"overallAssessment"`
	MappingAnalysis   MappingAnalysis   `json:"mappingAnalysis"`
	Issues            []CLOIssue        `json:"issues"`
}

// DecodeCLOCheckResult parses a normalized job result.
func DecodeCLOCheckResult(raw json.RawMessage) (*CLOCheckResult, error) {
	normalized := NormalizeJobResult(raw)
	if normalized == nil {
		return nil, NewValidationError("result", "empty CLO check result")
	}
	var res CLOCheckResult
	if err := json.Unmarshal(normalized, &res); err != nil {
		return nil, fmt.Errorf("decode CLO check result: %w", err)
	}
	return &res, nil
}
