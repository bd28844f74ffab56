package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"pagegen/internal/perception"
	"pagegen/internal/types"
)

var (
	// ErrEmptyBundle is returned when a refiner reply decodes to no code at all.
	ErrEmptyBundle = errors.New("refiner returned an empty code bundle")

	// ErrNotObject is returned when a reply holds JSON that is not an object,
	// such as null or a bare list.
	ErrNotObject = errors.New("response is not a JSON object")
)

// decodeObject extracts the JSON object from a model reply and decodes it
// into v.
func decodeObject(response string, v interface{}) error {
	payload := strings.TrimSpace(perception.ExtractJSON(response))
	if !strings.HasPrefix(payload, "{") {
		return ErrNotObject
	}
	return json.Unmarshal([]byte(payload), v)
}

// reportWire mirrors what verifiers actually send: scores may be floats or
// null, and findings may be null.
type reportWire struct {
	AuditSummary *struct {
		HealthScore *float64 `json:"health_score"`
		Summary     string   `json:"summary"`
	} `json:"audit_summary"`
	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary"`
}

// ParseReport extracts and decodes a verifier response. The returned
// report's health score is recomputed from its findings; the model's own
// value is kept in ReportedScore.
func ParseReport(response string) (*Report, error) {
	var w reportWire
	if err := decodeObject(response, &w); err != nil {
		return nil, fmt.Errorf("failed to parse audit report: %w", err)
	}

	report := &Report{Findings: w.Findings}
	if report.Findings == nil {
		report.Findings = []Finding{}
	}
	for i := range report.Findings {
		if report.Findings[i].Severity == "" {
			report.Findings[i].Severity = SeverityBestPractice
		}
	}

	report.AuditSummary.Summary = w.Summary
	if w.AuditSummary != nil {
		if w.AuditSummary.Summary != "" {
			report.AuditSummary.Summary = w.AuditSummary.Summary
		}
		if w.AuditSummary.HealthScore != nil {
			report.ReportedScore = clampScore(int(math.Round(*w.AuditSummary.HealthScore)))
		}
	}
	report.AuditSummary.HealthScore = ComputeScore(report.Findings)
	return report, nil
}

// ParseBundle extracts and decodes a refiner (or generator) response into a
// code bundle. Both html/css/ts and html_code/scss_code/ts_code are accepted.
func ParseBundle(response string) (types.CodeBundle, error) {
	var bundle types.CodeBundle
	if err := decodeObject(response, &bundle); err != nil {
		return types.CodeBundle{}, fmt.Errorf("failed to parse code bundle: %w", err)
	}
	if bundle.IsEmpty() {
		return types.CodeBundle{}, ErrEmptyBundle
	}
	return bundle, nil
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
