package components

import (
	"sort"
	"strings"

	"golang.org/x/net/html"

	"pagegen/internal/types"
)

// UsedSelectors returns the distinct custom element names (tags containing
// a hyphen, e.g. app-button) in an Angular template, sorted.
func UsedSelectors(template string) []string {
	seen := make(map[string]bool)
	z := html.NewTokenizer(strings.NewReader(template))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			out := make([]string, 0, len(seen))
			for s := range seen {
				out = append(out, s)
			}
			sort.Strings(out)
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if strings.Contains(tag, "-") {
				seen[tag] = true
			}
		}
	}
}

// UnknownSelectors returns the app-* elements used in template that no
// catalogue component provides.
func UnknownSelectors(template string, known []types.ComponentMetadata) []string {
	provided := make(map[string]bool, len(known)*2)
	for _, c := range known {
		if c.IDName != "" {
			provided[strings.ToLower(c.IDName)] = true
		}
		if c.Selector != "" {
			provided[strings.ToLower(c.Selector)] = true
		}
	}

	var unknown []string
	for _, tag := range UsedSelectors(template) {
		if strings.HasPrefix(tag, "app-") && !provided[tag] {
			unknown = append(unknown, tag)
		}
	}
	return unknown
}
