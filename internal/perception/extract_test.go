package perception

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```\nThanks", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 2}\n```", `{"a": 2}`},
		{"first fence wins", "```json\n{\"a\": 1}\n```\n```json\n{\"b\": 2}\n```", `{"a": 1}`},
		{"prose around object", `Sure! {"html": "<p></p>"} Hope it helps`, `{"html": "<p></p>"}`},
		{"first brace to last brace", `x {"a": {"b": 1}} y`, `{"a": {"b": 1}}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
		{"no object", "I cannot help with that", "I cannot help with that"},
		{"closing before opening", "} nothing {", "} nothing {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestExtractJSON_Idempotent(t *testing.T) {
	inputs := []string{
		`{"findings": [], "audit_summary": {"health_score": 100}}`,
		"preamble {\"a\": [1, 2, {\"b\": \"}\"}]} trailing",
		"```json\n{\"html\": \"<div>{{ title }}</div>\"}\n```",
	}
	for _, in := range inputs {
		once := ExtractJSON(in)
		assert.Equal(t, once, ExtractJSON(once), "input %q", in)
	}
}

func TestExtractJSON_DecodesVerifierStyleReply(t *testing.T) {
	reply := "Audit complete.\n```json\n{\n  \"audit_summary\": {\"health_score\": 75},\n  \"findings\": [{\"severity\": \"CRITICAL\"}]\n}\n```"

	var out struct {
		AuditSummary struct {
			HealthScore int `json:"health_score"`
		} `json:"audit_summary"`
		Findings []map[string]string `json:"findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(ExtractJSON(reply)), &out))
	assert.Equal(t, 75, out.AuditSummary.HealthScore)
	assert.Len(t, out.Findings, 1)
}
