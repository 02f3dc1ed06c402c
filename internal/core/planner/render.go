package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/autorelease/internal/core/domain"
)

// Format is a plan output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ValidFormats lists the accepted output formats.
var ValidFormats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range ValidFormats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format %q: must be one of text, json, yaml", s)
}

// Render serializes plan. Identical plans render to identical bytes.
func Render(plan domain.Plan, format Format) ([]byte, error) {
	switch format {
	case FormatText, "":
		return []byte(Text(plan)), nil
	case FormatJSON:
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal plan: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(plan)
		if err != nil {
			return nil, fmt.Errorf("marshal plan: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("invalid format %q", format)
	}
}

// Text renders plan for humans.
//
//	changelogs: workspace
//	publish order:
//	  1. core@0.2.0
//	  2. cli@0.2.0
//	releases:
//	  v0.2.0 (workspace: core, cli)
//	    - notes line
func Text(plan domain.Plan) string {
	if plan.IsEmpty() {
		return "no packages need publishing\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "changelogs: %s\n", plan.Changelogs)

	b.WriteString("publish order:\n")
	for i, g := range plan.Publish {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, g.ID())
	}

	b.WriteString("releases:\n")
	for _, r := range plan.Releases {
		if r.Scope == domain.ScopeGlobal {
			fmt.Fprintf(&b, "  %s (%s: %s)\n", r.Tag, r.Package, strings.Join(r.Packages, ", "))
		} else {
			fmt.Fprintf(&b, "  %s\n", r.Tag)
		}

		if r.Notes == "" {
			b.WriteString("    (no release notes)\n")
			continue
		}
		for _, line := range strings.Split(r.Notes, "\n") {
			if line == "" {
				b.WriteString("\n")
				continue
			}
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return b.String()
}
