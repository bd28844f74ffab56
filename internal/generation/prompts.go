package generation

import (
	"fmt"
	"strings"

	"pagegen/internal/types"
)

// ComponentsDoc describes the selected components to the generation model,
// including which bindings each one accepts.
func ComponentsDoc(components []types.ComponentMetadata) string {
	var sb strings.Builder
	sb.WriteString("Available Angular Components:\n\n")
	for _, c := range components {
		sb.WriteString(fmt.Sprintf("Component: %s\n", c.Name))
		sb.WriteString(fmt.Sprintf("Description: %s\n", c.Description))
		sb.WriteString(fmt.Sprintf("HTML Tag/ID to use: %s\n", c.IDName))
		if len(c.Inputs) > 0 {
			sb.WriteString(fmt.Sprintf("Available Inputs (use with [inputName]): %s\n", strings.Join(c.Inputs, ", ")))
		} else {
			sb.WriteString("Available Inputs: NONE - Do NOT use property binding [] on this component\n")
		}
		if len(c.Outputs) > 0 {
			sb.WriteString(fmt.Sprintf("Available Outputs (use with (outputName)): %s\n", strings.Join(c.Outputs, ", ")))
		} else {
			sb.WriteString("Available Outputs: NONE - Do NOT use event binding () on this component\n")
		}
		if c.Reasoning != "" {
			sb.WriteString(fmt.Sprintf("Reasoning/Usage Note: %s\n", c.Reasoning))
		}
		sb.WriteString("---\n\n")
	}
	if len(components) == 0 {
		sb.WriteString("WARNING: NO REUSABLE COMPONENTS SELECTED/AVAILABLE.\n")
		sb.WriteString("You MUST generate all UI elements (headers, footers, tables, buttons) from scratch using standard HTML/SCSS.\n")
		sb.WriteString("Do not reference any <app-*> components that are not listed above.\n")
	}
	return sb.String()
}

const generationSystemTemplate = `You are an expert Angular developer creating new master pages.

You will be given a page requirement and must generate THREE files: HTML, SCSS and TypeScript.
Build the page from these Angular components:

%s

COMPONENT USAGE:
Unless the user says otherwise, use the components listed above in your HTML
(e.g. a button is <app-button>Text</app-button>). If the user does not want a
listed component but the page needs that element, build it with plain HTML instead.

TYPESCRIPT REQUIREMENTS:
- Import Component and OnInit from '@angular/core'
- Use the @Component decorator with selector, templateUrl and styleUrls
- Export the component class with a constructor and ngOnInit

MOCK DATA:
- Define typed properties (tableData, userList, ...) and fill them in ngOnInit with 3-5 realistic items.
- Bind them in the HTML so the preview is populated. Never leave the page waiting for an API call.

OUTPUT FORMAT:
Respond with a single JSON object and nothing else:
{"component_name":"PascalCaseComponent","path_name":"kebab-case-name","selector":"app-kebab-case-name","html_code":"...","scss_code":"...","ts_code":"..."}

NAMING:
- component_name: PascalCase ending with "Component" (e.g. "WelcomePageComponent")
- path_name: kebab-case (e.g. "welcome-page")
- selector: "app-" + path_name

Escape newlines as \n and quotes as \" so the JSON parses.`

// GenerationSystemPrompt embeds the components doc in the generation
// instructions.
func GenerationSystemPrompt(componentsDoc string) string {
	return fmt.Sprintf(generationSystemTemplate, componentsDoc)
}

// FormatGenerationPrompt builds the generation user message.
func FormatGenerationPrompt(pageRequest string) string {
	return fmt.Sprintf(`Create a new Angular master page for: %s

Generate a complete Angular component with HTML, SCSS and TypeScript files.
Use the available components appropriately.

The page should be well-structured, professional and follow Angular best practices.`, pageRequest)
}

// ChatSystemPrompt instructs the model to edit an existing page.
const ChatSystemPrompt = `You are an expert Angular developer.
You have the current state of an Angular component (HTML, SCSS, TS).
Modify this code according to the user's request.

RULES:
1. Return ONLY the modified code as JSON.
2. Do NOT explain your changes.
3. Keep existing functionality unless asked to change it.
4. Keep the existing component structure.

REQUIRED JSON STRUCTURE:
{"html_code": "modified HTML...", "scss_code": "modified SCSS...", "ts_code": "modified TypeScript..."}`

// FormatChatPrompt builds the chat user message.
func FormatChatPrompt(code types.CodeBundle, message string) string {
	return fmt.Sprintf(`CURRENT CODE:

--- HTML ---
%s

--- SCSS ---
%s

--- TYPESCRIPT ---
%s

USER REQUEST:
%s

Please modify the code to satisfy the user's request.`, code.HTML, code.CSS, code.TS, message)
}
