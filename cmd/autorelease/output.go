package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/artpar/autorelease/internal/core/planner"
)

// writeValue writes v as JSON or YAML. Text output is command-specific and
// handled by the caller.
func writeValue(w io.Writer, format planner.Format, v any) error {
	switch format {
	case planner.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case planner.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
