// Package audit implements the verifier/refiner convergence loop that audits
// generated page code and iteratively repairs it.
package audit

import (
	"encoding/json"
	"strconv"
	"strings"
)

// =============================================================================
// AUDIT REPORT TYPES
// =============================================================================

// Severity classifies a finding.
type Severity string

const (
	SeverityCritical     Severity = "CRITICAL"
	SeverityWarning      Severity = "WARNING"
	SeverityBestPractice Severity = "BEST_PRACTICE"
)

// Deduction is the number of health points a finding of this severity costs.
func (s Severity) Deduction() int {
	switch s {
	case SeverityCritical:
		return 25
	case SeverityWarning:
		return 10
	default:
		return 3
	}
}

// ParseSeverity normalises a model-supplied severity. Matching is
// case-insensitive and tolerates "best practice" / "best-practice";
// anything unrecognised is BEST_PRACTICE.
func ParseSeverity(s string) Severity {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch Severity(norm) {
	case SeverityCritical, SeverityWarning:
		return Severity(norm)
	default:
		return SeverityBestPractice
	}
}

// UnmarshalJSON normalises the decoded value with ParseSeverity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// null or a non-string value
		*s = SeverityBestPractice
		return nil
	}
	*s = ParseSeverity(raw)
	return nil
}

// Location points at the code a finding refers to. Every field is optional.
type Location struct {
	File   string `json:"file,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Line   Line   `json:"line,omitempty"`
}

// Line is a 1-based line number. Models sometimes quote it.
type Line int

// UnmarshalJSON accepts numbers, numeric strings and null.
func (l *Line) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*l = Line(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*l = Line(v)
			return nil
		}
	}
	*l = 0
	return nil
}

// Finding is one defect reported by the verifier.
type Finding struct {
	Category    string    `json:"category"`
	Severity    Severity  `json:"severity"`
	Location    *Location `json:"location,omitempty"`
	Risk        string    `json:"risk,omitempty"`
	Issue       string    `json:"issue"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Remediation string    `json:"remediation,omitempty"`
}

// Summary is the audit_summary block of a report.
type Summary struct {
	HealthScore int    `json:"health_score"`
	Summary     string `json:"summary,omitempty"`
}

// Report is a parsed verifier response.
//
// AuditSummary.HealthScore is recomputed from Findings when the report is
// parsed; ReportedScore keeps whatever the model claimed.
type Report struct {
	AuditSummary  Summary   `json:"audit_summary"`
	Findings      []Finding `json:"findings"`
	ReportedScore int       `json:"reported_score"`
}

// Clean reports whether the verifier found nothing to fix.
func (r *Report) Clean() bool {
	return r != nil && len(r.Findings) == 0
}

// CountBySeverity tallies findings per severity.
func (r *Report) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	if r == nil {
		return counts
	}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// ComputeScore returns max(0, 100 - sum of deductions).
func ComputeScore(findings []Finding) int {
	score := 100
	for _, f := range findings {
		score -= f.Severity.Deduction()
	}
	if score < 0 {
		return 0
	}
	return score
}
