package audit

import (
	"fmt"
	"strings"

	"pagegen/internal/types"
)

// =============================================================================
// PROMPT CONSTRUCTION
// =============================================================================

// VerifierSystemPrompt instructs the verifier model.
const VerifierSystemPrompt = `You are a principal Angular engineer auditing a generated page component.

You receive the component's HTML template, SCSS stylesheet and TypeScript class,
together with the user's original request. Find real defects:
- template bindings that reference properties or methods the class does not define
- TypeScript that would not compile (missing imports, wrong types, bad decorators)
- features the user asked for that are missing or broken
- accessibility, security and Angular best-practice problems

SEVERITIES:
- CRITICAL: the page will not compile, crashes, or misses a requested feature (-25)
- WARNING: visible misbehaviour or a significant quality problem (-10)
- BEST_PRACTICE: style, maintainability or minor accessibility issue (-3)

health_score = max(0, 100 - sum of deductions).

If the code is correct, return an empty findings list. Do not invent issues.

OUTPUT FORMAT:
Return ONLY a JSON object:
` + "```json" + `
{
  "audit_summary": {"health_score": 0-100, "summary": "one paragraph"},
  "findings": [
    {
      "category": "compilation|binding|functional|accessibility|security|style",
      "severity": "CRITICAL|WARNING|BEST_PRACTICE",
      "location": {"file": "html|scss|ts", "symbol": "name or null", "line": N or null},
      "risk": "short risk tag",
      "issue": "what is wrong",
      "reasoning": "why it is wrong",
      "remediation": "how to fix it"
    }
  ]
}
` + "```"

// RefinerSystemPrompt instructs the refiner model.
const RefinerSystemPrompt = `You are an expert Angular developer fixing a page component.

You receive the current HTML, SCSS and TypeScript together with an audit report
listing defects. Fix every finding while keeping the rest of the page intact and
still satisfying the user's request. Do not remove working features.

OUTPUT FORMAT:
Return ONLY a JSON object with the complete corrected files:
` + "```json" + `
{"html": "...", "css": "...", "ts": "..."}
` + "```" + `
Escape newlines and quotes so the JSON is valid. No commentary.`

// FormatVerifierPrompt builds the verifier user message. previous is the
// report from the prior iteration and is omitted when nil.
func FormatVerifierPrompt(code types.CodeBundle, request string, iteration int, previous *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Audit iteration %d\n\n", iteration))
	sb.WriteString("### User request\n")
	sb.WriteString(request)
	sb.WriteString("\n\n")
	writeCode(&sb, code)

	if previous != nil {
		sb.WriteString("### Previous audit\n")
		sb.WriteString(fmt.Sprintf("The previous iteration scored %d and reported %d finding(s). ",
			previous.AuditSummary.HealthScore, len(previous.Findings)))
		sb.WriteString("The code above is the refined version that attempted to fix them.\n\n")
		writeFindings(&sb, previous.Findings)
		sb.WriteString("\nRULES FOR THIS ITERATION:\n")
		sb.WriteString("- Do not re-flag an issue that the refined code has fixed.\n")
		sb.WriteString("- Do not escalate the severity of an issue that was already reported.\n")
		sb.WriteString("- Only report new issues if they are real defects.\n\n")
	}

	sb.WriteString("Audit the code and return the JSON report.\n")
	return sb.String()
}

// FormatRefinerPrompt builds the refiner user message.
func FormatRefinerPrompt(code types.CodeBundle, report *Report, request string) string {
	var sb strings.Builder

	sb.WriteString("### User request\n")
	sb.WriteString(request)
	sb.WriteString("\n\n")
	writeCode(&sb, code)

	sb.WriteString("### Audit report\n")
	if report != nil {
		sb.WriteString(fmt.Sprintf("Health score: %d\n", report.AuditSummary.HealthScore))
		if report.AuditSummary.Summary != "" {
			sb.WriteString(fmt.Sprintf("Summary: %s\n", report.AuditSummary.Summary))
		}
		sb.WriteString("\n")
		writeFindings(&sb, report.Findings)
	}
	if report == nil || len(report.Findings) == 0 {
		sb.WriteString("The audit report could not be read. Review the code yourself and fix any defects.\n")
	}

	sb.WriteString("\nReturn the corrected files as JSON.\n")
	return sb.String()
}

func writeCode(sb *strings.Builder, code types.CodeBundle) {
	sb.WriteString("### HTML\n```html\n")
	sb.WriteString(code.HTML)
	sb.WriteString("\n```\n\n### SCSS\n```scss\n")
	sb.WriteString(code.CSS)
	sb.WriteString("\n```\n\n### TypeScript\n```typescript\n")
	sb.WriteString(code.TS)
	sb.WriteString("\n```\n\n")
}

func writeFindings(sb *strings.Builder, findings []Finding) {
	for i, f := range findings {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, f.Severity, f.Issue))
		if f.Category != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", f.Category))
		}
		sb.WriteString("\n")
		if loc := formatLocation(f.Location); loc != "" {
			sb.WriteString(fmt.Sprintf("   - Location: %s\n", loc))
		}
		if f.Remediation != "" {
			sb.WriteString(fmt.Sprintf("   - Remediation: %s\n", f.Remediation))
		}
	}
}

func formatLocation(loc *Location) string {
	if loc == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if loc.File != "" {
		parts = append(parts, loc.File)
	}
	if loc.Symbol != "" {
		parts = append(parts, "`"+loc.Symbol+"`")
	}
	if loc.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", loc.Line))
	}
	return strings.Join(parts, " ")
}
