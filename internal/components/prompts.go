package components

import (
	"fmt"
	"strings"

	"pagegen/internal/types"
)

// MetadataSystemPrompt instructs the model to describe a single component.
const MetadataSystemPrompt = `You are an expert Angular developer analyzing component code.

Extract metadata about THIS SPECIFIC COMPONENT ONLY. You are analyzing an individual
component, not a module: describe the class carrying the @Component decorator
(e.g. AppButtonComponent), never a module such as AppCommonModule.

Return ONLY a JSON object with this exact structure:
{
  "name": "component class name",
  "description": "what this component does, its inputs and outputs, and when to use it",
  "import_path": "path from the app root used to import this component",
  "id_name": "the component selector (e.g. app-button), or null if none exists"
}

Rules:
1. "name" MUST be the class name with the @Component decorator.
2. "description" covers only this component: purpose, inputs/outputs, where to use it, special behaviours.
3. "import_path" is relative to the app root, e.g. "app/common/components/app-button/app-button.component".
4. "id_name" is what HTML templates use to reference the component.

Return ONLY the JSON object, no additional text.`

// FormatMetadataPrompt builds the metadata user message for one component.
func FormatMetadataPrompt(baseName, ts, html, scss string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analyze this Angular component: %s\n\n", baseName))
	sb.WriteString("Here are the component files:\n\n")
	sb.WriteString(fmt.Sprintf("--- TypeScript ---\n%s\n\n", ts))
	if html != "" {
		sb.WriteString(fmt.Sprintf("--- HTML ---\n%s\n\n", html))
	}
	if scss != "" {
		sb.WriteString(fmt.Sprintf("--- SCSS ---\n%s\n\n", scss))
	}
	sb.WriteString("\nIMPORTANT: Extract metadata for THIS SPECIFIC COMPONENT only. ")
	sb.WriteString("The name must be the component class name (e.g. AppButtonComponent), not a module name.\n\n")
	sb.WriteString("Please provide the component metadata in the specified JSON format.")
	return sb.String()
}

// SelectionSystemPrompt instructs the model to pick components for a page.
const SelectionSystemPrompt = `You are an expert Angular developer analyzing a page generation request.

You have a list of available Angular components (with descriptions and ID/Selectors)
and a user's request for a new page. Decide which components are needed.

Return ONLY a JSON object with this exact structure:
{
  "selected_components": ["component_id_1", "component_id_2"],
  "reasoning": {
    "component_id_1": "how this component will be used in the requested page"
  }
}

Rules:
1. Use the EXACT "ID/Selector" value from the list (e.g. "app-button"), case-sensitive.
2. Never use class names such as "AppButtonComponent".
3. Only select components the request actually needs.
4. Give specific reasoning for every selected component.

Return ONLY the JSON object, no additional text.`

// CatalogueDoc renders the component list shown to the selection model.
func CatalogueDoc(components []types.ComponentMetadata) string {
	var sb strings.Builder
	sb.WriteString("Available Angular Components:\n\n")
	for i, c := range components {
		sb.WriteString(fmt.Sprintf("%d. Component: %s\n", i+1, c.Name))
		sb.WriteString(fmt.Sprintf("   ID/Selector: %s\n", orNA(c.IDName)))
		sb.WriteString(fmt.Sprintf("   Description: %s\n", orNA(c.Description)))
		sb.WriteString("   ---\n\n")
	}
	return sb.String()
}

// FormatSelectionPrompt builds the selection user message.
func FormatSelectionPrompt(pageRequest string, components []types.ComponentMetadata) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Page Generation Request:\n%q\n\n", pageRequest))
	sb.WriteString(CatalogueDoc(components))
	sb.WriteString("\nIMPORTANT: use the EXACT \"ID/Selector\" value shown above (e.g. \"app-button\"), ")
	sb.WriteString("not component class names.\n\n")
	sb.WriteString("Select the components that are appropriate for this request and explain how each will be used.")
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
