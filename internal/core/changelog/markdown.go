// Package changelog checks changelog documents for release entries and
// extracts release notes from them.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// A release entry is a Markdown ATX heading whose first word is a version,
// optionally prefixed with "v" or wrapped in brackets:
//
//	## 1.2.0
//	## v1.2.0 - 2024-05-01
//	## [1.2.0] - 2024-05-01
//
// Lines inside fenced code blocks are never headings.
package changelog

import (
	"strings"

	"github.com/artpar/autorelease/internal/core/domain"
)

// Heading is a version heading found in a document.
type Heading struct {
	Level   int
	Version string
	Line    int // zero-based line index
}

// line is a classified source line.
type line struct {
	text    string
	level   int // heading level, 0 when not a heading
	content string
}

// scan splits text into lines and marks ATX headings outside code fences.
func scan(text string) []line {
	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	var fence string
	for i, r := range raw {
		r = strings.TrimSuffix(r, "\r")
		lines[i].text = r
		trimmed := strings.TrimSpace(r)

		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(trimmed, fence):
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}

		level, content, ok := parseHeading(trimmed)
		if ok {
			lines[i].level = level
			lines[i].content = content
		}
	}
	return lines
}

func fenceMarker(trimmed string) string {
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, m) {
			return m
		}
	}
	return ""
}

// parseHeading recognizes "#... text". At least one blank must follow the
// hashes unless the heading is empty.
func parseHeading(trimmed string) (int, string, bool) {
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 {
		return 0, "", false
	}
	rest := trimmed[level:]
	if rest == "" {
		return level, "", true
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	return level, strings.TrimSpace(rest), true
}

// headingVersion returns the version a heading's first word names.
func headingVersion(content string) (string, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", false
	}
	token := fields[0]
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		token = token[1 : len(token)-1]
	}
	token = strings.TrimPrefix(token, "v")
	if !domain.IsValidVersion(token) {
		return "", false
	}
	return token, true
}

// Headings returns every version heading in text, in document order.
func Headings(text string) []Heading {
	var out []Heading
	for i, l := range scan(text) {
		if l.level == 0 {
			continue
		}
		if v, ok := headingVersion(l.content); ok {
			out = append(out, Heading{Level: l.level, Version: v, Line: i})
		}
	}
	return out
}

// HasEntry reports whether text has a heading for version.
func HasEntry(text, version string) bool {
	for _, h := range Headings(text) {
		if domain.VersionsEqual(h.Version, version) {
			return true
		}
	}
	return false
}

// Extract returns the text under the first heading for version, up to the
// next heading of the same or higher level. Leading and trailing whitespace
// is trimmed. The second return is false when there is no such heading.
//
// Example:
//
//	## 1.1.0
//	### Added
//	- x
//	## 1.0.0
//
//	Extract(doc, "1.1.0")  // "### Added\n- x"
func Extract(text, version string) (string, bool) {
	lines := scan(text)
	start, level := -1, 0
	for i, l := range lines {
		if l.level == 0 {
			continue
		}
		if start >= 0 {
			if l.level <= level {
				return section(lines[start:i]), true
			}
			continue
		}
		if v, ok := headingVersion(l.content); ok && domain.VersionsEqual(v, version) {
			start, level = i+1, l.level
		}
	}
	if start < 0 {
		return "", false
	}
	return section(lines[start:]), true
}

func section(lines []line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
