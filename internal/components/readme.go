package components

import (
	"fmt"
	"strings"

	"pagegen/internal/types"
)

// Readme renders the component catalogue as markdown.
func Readme(components []types.ComponentMetadata) string {
	var sb strings.Builder
	sb.WriteString("# Angular Component Metadata\n\n")
	sb.WriteString(fmt.Sprintf("Total Components: %d\n\n", len(components)))
	sb.WriteString("---\n\n")

	for i, c := range components {
		sb.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, orDefault(c.Name, "Unknown")))
		sb.WriteString(fmt.Sprintf("**Description**: %s\n\n", orNA(c.Description)))
		sb.WriteString(fmt.Sprintf("**Import Path**: `%s`\n\n", orNA(c.ImportPath)))
		sb.WriteString(fmt.Sprintf("**ID/Selector**: `%s`\n\n", orDefault(c.IDName, "null")))
		if len(c.Inputs) > 0 {
			sb.WriteString(fmt.Sprintf("**Inputs**: %s\n\n", strings.Join(c.Inputs, ", ")))
		}
		if len(c.Outputs) > 0 {
			sb.WriteString(fmt.Sprintf("**Outputs**: %s\n\n", strings.Join(c.Outputs, ", ")))
		}
		if c.Required {
			sb.WriteString("**Required**: yes")
			if c.Reasoning != "" {
				sb.WriteString(" (" + c.Reasoning + ")")
			}
			sb.WriteString("\n\n")
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
