package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Format is how CLI commands print the records they receive.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts the --output flag values.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("invalid output format %q: want yaml or json", s)
}

// The root command configures where endpoint commands print.
var out = struct {
	sync.Mutex
	format Format
	w      io.Writer
}{format: FormatYAML}

// SetOutput sets the format and destination used by Output. A nil writer
// means stdout.
func SetOutput(f Format, w io.Writer) {
	out.Lock()
	defer out.Unlock()
	out.format, out.w = f, w
}

// CurrentFormat returns the format set by SetOutput.
func CurrentFormat() Format {
	out.Lock()
	defer out.Unlock()
	return out.format
}

// Output prints v in the configured format.
func Output(v any) error {
	out.Lock()
	f, w := out.format, out.w
	out.Unlock()
	if w == nil {
		w = os.Stdout
	}
	return Print(w, f, v)
}

// Print writes v to w as f.
func Print(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", f)
}
