package types

import (
	"encoding/json"
	"strings"
)

// CodeBundle is one version of a generated page: template, stylesheet and
// component class. Fields are never nil; missing values decode as "".
type CodeBundle struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	TS   string `json:"ts"`
}

// codeBundleWire accepts both spellings the models and the frontend use.
type codeBundleWire struct {
	HTML     *string `json:"html"`
	CSS      *string `json:"css"`
	TS       *string `json:"ts"`
	HTMLCode *string `json:"html_code"`
	SCSSCode *string `json:"scss_code"`
	TSCode   *string `json:"ts_code"`
}

// UnmarshalJSON decodes html/css/ts, falling back to html_code/scss_code/ts_code.
func (b *CodeBundle) UnmarshalJSON(data []byte) error {
	var w codeBundleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.HTML = firstNonNil(w.HTML, w.HTMLCode)
	b.CSS = firstNonNil(w.CSS, w.SCSSCode)
	b.TS = firstNonNil(w.TS, w.TSCode)
	return nil
}

func firstNonNil(vals ...*string) string {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return ""
}

// IsEmpty reports whether the bundle carries no code at all.
func (b CodeBundle) IsEmpty() bool {
	return strings.TrimSpace(b.HTML) == "" &&
		strings.TrimSpace(b.CSS) == "" &&
		strings.TrimSpace(b.TS) == ""
}

// PageState is the persisted spelling of a bundle: the stylesheet is stored
// under "scss".
type PageState struct {
	HTML string `json:"html"`
	SCSS string `json:"scss"`
	TS   string `json:"ts"`
}

// Bundle converts the persisted state back to a CodeBundle.
func (s PageState) Bundle() CodeBundle {
	return CodeBundle{HTML: s.HTML, CSS: s.SCSS, TS: s.TS}
}

// StateOf converts a bundle to its persisted spelling.
func StateOf(b CodeBundle) PageState {
	return PageState{HTML: b.HTML, SCSS: b.CSS, TS: b.TS}
}

// PageContext is the persisted state of the page being worked on.
type PageContext struct {
	LastUpdated     string    `json:"last_updated"`
	CurrentState    PageState `json:"current_state"`
	LastUserRequest string    `json:"last_user_request"`
}

// PageRequest is the persisted natural-language page request.
type PageRequest struct {
	Request string `json:"request"`
}
