// Package filter implements the name search applied to inventory rows.
package filter

import (
	"strings"

	"appwatch/internal/shared"
)

// Placeholder is the hint shown in an empty search box. Searching for it is
// the same as not searching.
const Placeholder = "Search Program..."

// Normalize maps the placeholder to "".
func Normalize(text string) string {
	if text == Placeholder {
		return ""
	}
	return text
}

// Match reports whether name contains text, ignoring case.
// An empty text matches everything.
func Match(name, text string) bool {
	text = Normalize(text)
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(text))
}

// Rows returns the rows whose name matches text, in their original order.
func Rows(rows []shared.DisplayRow, text string) []shared.DisplayRow {
	if Normalize(text) == "" {
		return rows
	}
	out := make([]shared.DisplayRow, 0, len(rows))
	for _, r := range rows {
		if Match(r.Name, text) {
			out = append(out, r)
		}
	}
	return out
}
