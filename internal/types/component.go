package types

import (
	"encoding/json"
	"strings"
)

// Flag is a boolean that also decodes from the strings "true"/"false".
// The frontend round-trips the required marker as either form.
type Flag bool

// UnmarshalJSON accepts true, false, "true", "false" and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Flag(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}
	*f = false
	return nil
}

// ComponentMetadata describes one reusable UI component.
type ComponentMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImportPath  string   `json:"import_path"`
	IDName      string   `json:"id_name"`
	Selector    string   `json:"selector,omitempty"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	HTMLCode    string   `json:"html_code"`
	SCSSCode    string   `json:"scss_code"`
	TSCode      string   `json:"ts_code"`
	Required    Flag     `json:"required"`
	Reasoning   string   `json:"reasoning"`
}

// Key returns the identifier used to match selections: id_name, else name.
func (c ComponentMetadata) Key() string {
	if c.IDName != "" {
		return c.IDName
	}
	return c.Name
}

// RequiredComponents filters the catalogue down to components marked required.
func RequiredComponents(all []ComponentMetadata) []ComponentMetadata {
	out := make([]ComponentMetadata, 0, len(all))
	for _, c := range all {
		if c.Required {
			out = append(out, c)
		}
	}
	return out
}
