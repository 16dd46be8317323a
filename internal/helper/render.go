package helper

import (
	"regexp"
	"strings"
)

var templateMarker = regexp.MustCompile(`<([^<>\n]+)>`)

// RenderTemplate substitutes <key> markers from values. Markers without a
// value are left as they are. Spintax and dynamic variables are expanded
// afterwards.
func RenderTemplate(content string, values map[string]string) string {
	out := templateMarker.ReplaceAllStringFunc(content, func(marker string) string {
		key := strings.TrimSpace(marker[1 : len(marker)-1])
		if v, ok := values[key]; ok {
			return v
		}
		return marker
	})
	return RenderSpintax(out)
}
